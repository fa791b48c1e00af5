package matherr

// ErrorIR is the canonical, serializable form of an engine failure
// (RFC 7807 problem shape with an engine extension block).
type ErrorIR struct {
	Type     string    `json:"type"`
	Title    string    `json:"title"`
	Detail   string    `json:"detail"`
	Instance string    `json:"instance"`
	QFS      IRDetails `json:"qfs"`
}

type IRDetails struct {
	ErrorCode      string            `json:"error_code"`
	Kind           Kind              `json:"kind"`
	Classification string            `json:"classification"`
	Operation      string            `json:"operation"`
	Operands       map[string]string `json:"operands"`
	LogIndex       int               `json:"log_index"`
	Digest         string            `json:"digest"`
}

// Classification constants
const (
	ClassificationHalt   = "HALT"
	ClassificationReject = "REJECT"
)

// Standard error codes
const (
	CodeOverflow            = "QFS/CORE/MATH/OVERFLOW"
	CodeUnderflow           = "QFS/CORE/MATH/UNDERFLOW"
	CodeDivisionByZero      = "QFS/CORE/MATH/DIVISION_BY_ZERO"
	CodeDomain              = "QFS/CORE/MATH/DOMAIN"
	CodeIterationLimit      = "QFS/CORE/MATH/ITERATION_LIMIT"
	CodeMissingAuditContext = "QFS/CORE/AUDIT/MISSING_CONTEXT"
)

// CodeFor maps a kind to its stable code.
func CodeFor(k Kind) string {
	switch k {
	case KindOverflow:
		return CodeOverflow
	case KindUnderflow:
		return CodeUnderflow
	case KindDivisionByZero:
		return CodeDivisionByZero
	case KindDomain:
		return CodeDomain
	case KindIterationLimit:
		return CodeIterationLimit
	case KindMissingAuditContext:
		return CodeMissingAuditContext
	}
	return "QFS/CORE/UNKNOWN"
}

// IR renders e in canonical form. Operands is never nil so the serialized
// form is stable.
func (e *Error) IR() ErrorIR {
	operands := make(map[string]string, len(e.Operands))
	for k, v := range e.Operands {
		operands[k] = v
	}
	code := e.Code()
	return ErrorIR{
		Type:     "urn:qfs:error:" + code,
		Title:    string(e.Kind),
		Detail:   e.Detail,
		Instance: e.Op,
		QFS: IRDetails{
			ErrorCode:      code,
			Kind:           e.Kind,
			Classification: e.Classification(),
			Operation:      e.Op,
			Operands:       operands,
			LogIndex:       e.LogIndex,
			Digest:         e.Digest,
		},
	}
}
