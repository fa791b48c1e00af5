// Package matherr defines the typed failure signals raised by the certified
// arithmetic engine.
//
// Every failure carries one Kind. Kinds are never recovered locally: the
// engine records the failed call in the audit chain and hands the error to
// the caller, which decides whether to reject, quarantine or halt.
package matherr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind names a failure class. The string values appear verbatim in audit
// entries and halt reports.
type Kind string

const (
	KindOverflow            Kind = "OverflowError"
	KindUnderflow           Kind = "UnderflowError"
	KindDivisionByZero      Kind = "DivisionByZeroError"
	KindDomain              Kind = "DomainError"
	KindIterationLimit      Kind = "IterationLimitExceededError"
	KindMissingAuditContext Kind = "MissingAuditContextError"
)

// Sentinels for errors.Is.
var (
	ErrOverflow            = errors.New("result exceeds the maximum representable magnitude")
	ErrUnderflow           = errors.New("result is below the minimal representable unit")
	ErrDivisionByZero      = errors.New("division by zero")
	ErrDomain              = errors.New("input outside the defined domain")
	ErrIterationLimit      = errors.New("iteration limit exceeded")
	ErrMissingAuditContext = errors.New("audit log context is required")
)

var sentinels = map[Kind]error{
	KindOverflow:            ErrOverflow,
	KindUnderflow:           ErrUnderflow,
	KindDivisionByZero:      ErrDivisionByZero,
	KindDomain:              ErrDomain,
	KindIterationLimit:      ErrIterationLimit,
	KindMissingAuditContext: ErrMissingAuditContext,
}

// Error is a typed engine failure.
//
// The kernel fills Kind and Detail. The public API layer adds the operation
// name, canonical operand strings, the index of the audit entry that
// recorded the failure, and the log digest through that entry.
type Error struct {
	Kind     Kind
	Op       string
	Operands map[string]string
	Detail   string
	LogIndex int
	Digest   string
}

// New returns an Error of the given kind. LogIndex starts at -1 (unlogged).
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, LogIndex: -1}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("certmath")
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Operands) > 0 {
		keys := make([]string, 0, len(e.Operands))
		for k := range e.Operands {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(e.Operands[k])
		}
		b.WriteString("]")
	}
	return b.String()
}

// Unwrap exposes the kind sentinel so errors.Is(err, ErrOverflow) works.
func (e *Error) Unwrap() error {
	return sentinels[e.Kind]
}

// Fatal reports whether the failure indicates an engine defect or a broken
// calling contract rather than bad data.
func (e *Error) Fatal() bool {
	return e.Kind == KindIterationLimit || e.Kind == KindMissingAuditContext
}

// Code returns the stable error code, e.g. QFS/CORE/MATH/OVERFLOW.
func (e *Error) Code() string {
	return CodeFor(e.Kind)
}

// Classification returns ClassificationHalt for fatal kinds and
// ClassificationReject otherwise.
func (e *Error) Classification() string {
	if e.Fatal() {
		return ClassificationHalt
	}
	return ClassificationReject
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var me *Error
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// KindOf returns the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	if me, ok := As(err); ok {
		return me.Kind, true
	}
	return "", false
}

// Kinds lists every failure kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindOverflow,
		KindUnderflow,
		KindDivisionByZero,
		KindDomain,
		KindIterationLimit,
		KindMissingAuditContext,
	}
}
