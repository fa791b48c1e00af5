package kernel

import (
	"github.com/RealDaniG/QFS-sub007/pkg/certmath/internal/uint128"
	"github.com/RealDaniG/QFS-sub007/pkg/matherr"
)

// Add returns a+b.
func Add(a, b Value) (Value, error) {
	sum, ok := a.raw.Add(b.raw)
	if !ok || sum.Cmp(maxRaw) > 0 {
		return Value{}, matherr.New(matherr.KindOverflow, "sum above maximum")
	}
	return Value{raw: sum}, nil
}

// Sub returns a-b. A negative difference is UnderflowError.
func Sub(a, b Value) (Value, error) {
	diff, ok := a.raw.Sub(b.raw)
	if !ok {
		return Value{}, matherr.New(matherr.KindUnderflow, "difference below zero")
	}
	return Value{raw: diff}, nil
}

// Mul returns a*b truncated to 18 decimals.
func Mul(a, b Value) (Value, error) {
	q, ok := mulTrunc(a.raw, b.raw)
	if !ok || q.Cmp(maxRaw) > 0 {
		return Value{}, matherr.New(matherr.KindOverflow, "product above maximum")
	}
	if q.IsZero() && !a.raw.IsZero() && !b.raw.IsZero() {
		return Value{}, matherr.New(matherr.KindUnderflow, "product below minimal unit")
	}
	return Value{raw: q}, nil
}

// Div returns a/b truncated toward zero.
func Div(a, b Value) (Value, error) {
	if b.raw.IsZero() {
		return Value{}, matherr.New(matherr.KindDivisionByZero, "divisor is zero")
	}
	q, ok := divTrunc(a.raw, b.raw)
	if !ok || q.Cmp(maxRaw) > 0 {
		return Value{}, matherr.New(matherr.KindOverflow, "quotient above maximum")
	}
	if q.IsZero() && !a.raw.IsZero() {
		return Value{}, matherr.New(matherr.KindUnderflow, "quotient below minimal unit")
	}
	return Value{raw: q}, nil
}

// mulTrunc is floor(a*b / 10^18) on raw integers. It reports false only if
// the quotient needs more than 128 bits; range checks are the caller's.
func mulTrunc(a, b uint128.Uint128) (uint128.Uint128, bool) {
	hi, lo := a.Mul(b)
	q, _, ok := uint128.DivWide(hi, lo, scale)
	return q, ok
}

// divTrunc is floor(a*10^18 / b) on raw integers. b must be non-zero.
func divTrunc(a, b uint128.Uint128) (uint128.Uint128, bool) {
	hi, lo := a.Mul(scale)
	q, _, ok := uint128.DivWide(hi, lo, b)
	return q, ok
}

// signed is a sign-magnitude raw value used where intermediate results of
// ln and pow go negative.
type signed struct {
	neg bool
	mag uint128.Uint128
}

func addSigned(a, b signed) (signed, bool) {
	if a.neg == b.neg {
		m, ok := a.mag.Add(b.mag)
		return signed{neg: a.neg, mag: m}, ok
	}
	if a.mag.Cmp(b.mag) >= 0 {
		m, _ := a.mag.Sub(b.mag)
		return signed{neg: a.neg && !m.IsZero(), mag: m}, true
	}
	m, _ := b.mag.Sub(a.mag)
	return signed{neg: b.neg, mag: m}, true
}
