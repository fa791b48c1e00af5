package certmath

import (
	"github.com/RealDaniG/QFS-sub007/pkg/auditlog"
	"github.com/RealDaniG/QFS-sub007/pkg/certmath/internal/kernel"
)

// Operation names as recorded in audit entries.
const (
	OpFromString = "from_string"
	OpToString   = "to_string"
	OpCopy       = "copy"
	OpAdd        = "add"
	OpSub        = "sub"
	OpMul        = "mul"
	OpDiv        = "div"
	OpEq         = "eq"
	OpNe         = "ne"
	OpLt         = "lt"
	OpLte        = "lte"
	OpGt         = "gt"
	OpGte        = "gte"
	OpSqrt       = "sqrt"
	OpExp        = "exp"
	OpLn         = "ln"
	OpPhi        = "phi"
	OpPow        = "pow"
	OpExp2       = "exp2"
)

func unary(x FixedPoint128) map[string]string {
	return map[string]string{"x": x.String()}
}

func binary(a, b FixedPoint128) map[string]string {
	return map[string]string{"a": a.String(), "b": b.String()}
}

// FromString parses a decimal string (digits, optional dot and digits).
func FromString(log *auditlog.LogContext, s string, opts ...CallOption) (FixedPoint128, error) {
	return call(log, OpFromString, map[string]string{"s": s}, opts,
		func() (FixedPoint128, error) { return kernel.Parse(s) }, renderValue)
}

// ToString returns the canonical string of v.
func ToString(log *auditlog.LogContext, v FixedPoint128, opts ...CallOption) (string, error) {
	return call(log, OpToString, map[string]string{"v": v.String()}, opts,
		func() (string, error) { return v.String(), nil }, renderString)
}

// Copy returns v. The call is audited like any other.
func Copy(log *auditlog.LogContext, v FixedPoint128, opts ...CallOption) (FixedPoint128, error) {
	return call(log, OpCopy, map[string]string{"v": v.String()}, opts,
		func() (FixedPoint128, error) { return v, nil }, renderValue)
}

func Add(log *auditlog.LogContext, a, b FixedPoint128, opts ...CallOption) (FixedPoint128, error) {
	return call(log, OpAdd, binary(a, b), opts,
		func() (FixedPoint128, error) { return kernel.Add(a, b) }, renderValue)
}

// Sub returns a-b; a negative difference is UnderflowError.
func Sub(log *auditlog.LogContext, a, b FixedPoint128, opts ...CallOption) (FixedPoint128, error) {
	return call(log, OpSub, binary(a, b), opts,
		func() (FixedPoint128, error) { return kernel.Sub(a, b) }, renderValue)
}

func Mul(log *auditlog.LogContext, a, b FixedPoint128, opts ...CallOption) (FixedPoint128, error) {
	return call(log, OpMul, binary(a, b), opts,
		func() (FixedPoint128, error) { return kernel.Mul(a, b) }, renderValue)
}

// Div returns a/b truncated toward zero.
func Div(log *auditlog.LogContext, a, b FixedPoint128, opts ...CallOption) (FixedPoint128, error) {
	return call(log, OpDiv, binary(a, b), opts,
		func() (FixedPoint128, error) { return kernel.Div(a, b) }, renderValue)
}

func compare(log *auditlog.LogContext, op string, a, b FixedPoint128, opts []CallOption, pred func(int) bool) (bool, error) {
	return call(log, op, binary(a, b), opts,
		func() (bool, error) { return pred(kernel.Cmp(a, b)), nil }, renderBool)
}

func Eq(log *auditlog.LogContext, a, b FixedPoint128, opts ...CallOption) (bool, error) {
	return compare(log, OpEq, a, b, opts, func(c int) bool { return c == 0 })
}

func Ne(log *auditlog.LogContext, a, b FixedPoint128, opts ...CallOption) (bool, error) {
	return compare(log, OpNe, a, b, opts, func(c int) bool { return c != 0 })
}

func Lt(log *auditlog.LogContext, a, b FixedPoint128, opts ...CallOption) (bool, error) {
	return compare(log, OpLt, a, b, opts, func(c int) bool { return c < 0 })
}

func Lte(log *auditlog.LogContext, a, b FixedPoint128, opts ...CallOption) (bool, error) {
	return compare(log, OpLte, a, b, opts, func(c int) bool { return c <= 0 })
}

func Gt(log *auditlog.LogContext, a, b FixedPoint128, opts ...CallOption) (bool, error) {
	return compare(log, OpGt, a, b, opts, func(c int) bool { return c > 0 })
}

func Gte(log *auditlog.LogContext, a, b FixedPoint128, opts ...CallOption) (bool, error) {
	return compare(log, OpGte, a, b, opts, func(c int) bool { return c >= 0 })
}

// Sqrt returns the square root, truncated, via bounded Newton iteration.
func Sqrt(log *auditlog.LogContext, x FixedPoint128, opts ...CallOption) (FixedPoint128, error) {
	return call(log, OpSqrt, unary(x), opts,
		func() (FixedPoint128, error) { return kernel.Sqrt(x) }, renderValue)
}

// Exp returns e^x for x <= ExpLimit.
func Exp(log *auditlog.LogContext, x FixedPoint128, opts ...CallOption) (FixedPoint128, error) {
	return call(log, OpExp, unary(x), opts,
		func() (FixedPoint128, error) { return kernel.Exp(x) }, renderValue)
}

// Ln returns the natural logarithm for x >= 1. Zero is DomainError and
// 0 < x < 1 is UnderflowError because the result would be negative.
func Ln(log *auditlog.LogContext, x FixedPoint128, opts ...CallOption) (FixedPoint128, error) {
	return call(log, OpLn, unary(x), opts,
		func() (FixedPoint128, error) { return kernel.Ln(x) }, renderValue)
}

// Phi evaluates the arctangent series for 0 <= x <= 1.
func Phi(log *auditlog.LogContext, x FixedPoint128, opts ...CallOption) (FixedPoint128, error) {
	return call(log, OpPhi, unary(x), opts,
		func() (FixedPoint128, error) { return kernel.Phi(x) }, renderValue)
}

// Pow returns x^y with |y*ln x| <= ExpLimit.
func Pow(log *auditlog.LogContext, x, y FixedPoint128, opts ...CallOption) (FixedPoint128, error) {
	return call(log, OpPow, map[string]string{"x": x.String(), "y": y.String()}, opts,
		func() (FixedPoint128, error) { return kernel.Pow(x, y) }, renderValue)
}

// Exp2 returns 2^y; integer exponents are exact.
func Exp2(log *auditlog.LogContext, y FixedPoint128, opts ...CallOption) (FixedPoint128, error) {
	return call(log, OpExp2, map[string]string{"y": y.String()}, opts,
		func() (FixedPoint128, error) { return kernel.Exp2(y) }, renderValue)
}
