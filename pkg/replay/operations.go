package replay

import (
	"strconv"

	"github.com/RealDaniG/QFS-sub007/pkg/auditlog"
	"github.com/RealDaniG/QFS-sub007/pkg/certmath"
)

type yield int

const (
	yieldsValue yield = iota
	yieldsBool
	yieldsText
)

type (
	fp       = certmath.FixedPoint128
	opt      = certmath.CallOption
	unaryFn  func(*auditlog.LogContext, fp, ...opt) (fp, error)
	binaryFn func(*auditlog.LogContext, fp, fp, ...opt) (fp, error)
	cmpFn    func(*auditlog.LogContext, fp, fp, ...opt) (bool, error)
)

// outcome is what one call produced.
type outcome struct {
	value fp
	text  string
}

type operation struct {
	arity   int
	yields  yield
	literal bool // the argument is passed through unparsed
	call    func(log *auditlog.LogContext, args []fp, raw []string, opts []opt) (outcome, error)
}

func valueOutcome(v fp, err error) (outcome, error) {
	return outcome{value: v, text: v.String()}, err
}

func unaryOp(f unaryFn) operation {
	return operation{arity: 1, yields: yieldsValue, call: func(log *auditlog.LogContext, a []fp, _ []string, o []opt) (outcome, error) {
		return valueOutcome(f(log, a[0], o...))
	}}
}

func binaryOp(f binaryFn) operation {
	return operation{arity: 2, yields: yieldsValue, call: func(log *auditlog.LogContext, a []fp, _ []string, o []opt) (outcome, error) {
		return valueOutcome(f(log, a[0], a[1], o...))
	}}
}

func cmpOp(f cmpFn) operation {
	return operation{arity: 2, yields: yieldsBool, call: func(log *auditlog.LogContext, a []fp, _ []string, o []opt) (outcome, error) {
		b, err := f(log, a[0], a[1], o...)
		return outcome{text: strconv.FormatBool(b)}, err
	}}
}

var operations = map[string]operation{
	certmath.OpFromString: {arity: 1, yields: yieldsValue, literal: true,
		call: func(log *auditlog.LogContext, _ []fp, raw []string, o []opt) (outcome, error) {
			return valueOutcome(certmath.FromString(log, raw[0], o...))
		}},
	certmath.OpToString: {arity: 1, yields: yieldsText,
		call: func(log *auditlog.LogContext, a []fp, _ []string, o []opt) (outcome, error) {
			s, err := certmath.ToString(log, a[0], o...)
			return outcome{text: s}, err
		}},
	certmath.OpCopy: unaryOp(certmath.Copy),
	certmath.OpAdd:  binaryOp(certmath.Add),
	certmath.OpSub:  binaryOp(certmath.Sub),
	certmath.OpMul:  binaryOp(certmath.Mul),
	certmath.OpDiv:  binaryOp(certmath.Div),
	certmath.OpEq:   cmpOp(certmath.Eq),
	certmath.OpNe:   cmpOp(certmath.Ne),
	certmath.OpLt:   cmpOp(certmath.Lt),
	certmath.OpLte:  cmpOp(certmath.Lte),
	certmath.OpGt:   cmpOp(certmath.Gt),
	certmath.OpGte:  cmpOp(certmath.Gte),
	certmath.OpSqrt: unaryOp(certmath.Sqrt),
	certmath.OpExp:  unaryOp(certmath.Exp),
	certmath.OpLn:   unaryOp(certmath.Ln),
	certmath.OpPhi:  unaryOp(certmath.Phi),
	certmath.OpPow:  binaryOp(certmath.Pow),
	certmath.OpExp2: unaryOp(certmath.Exp2),
}
