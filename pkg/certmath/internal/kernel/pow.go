package kernel

import (
	"github.com/RealDaniG/QFS-sub007/pkg/certmath/internal/uint128"
	"github.com/RealDaniG/QFS-sub007/pkg/matherr"
)

var two = uint128.From64(2 * scaleU64)

// Pow returns x^y = exp(y*ln x), requiring |y*ln x| <= ExpLimit.
// y = 0 gives 1 (including 0^0) and x = 0 gives 0. An integer power of two
// takes the exact Exp2 path.
func Pow(x, y Value) (Value, error) {
	switch {
	case y.raw.IsZero():
		return One, nil
	case x.raw.IsZero():
		return Zero, nil
	case x.raw == scale:
		return One, nil
	case x.raw == two && y.IsInteger():
		return Exp2(y)
	}

	l, err := lnSigned(x)
	if err != nil {
		return Value{}, err
	}
	p, ok := mulTrunc(l.mag, y.raw)
	if !ok || p.Cmp(expLimit) > 0 {
		return Value{}, matherr.Newf(matherr.KindDomain, "pow exponent magnitude above %d", ExpLimit)
	}
	return expSigned(signed{neg: l.neg, mag: p})
}

// Exp2 returns 2^y. Integer exponents shift the scaled one left and are
// exact up to 2^59; others evaluate exp(y*Ln2) under ExpLimit.
func Exp2(y Value) (Value, error) {
	if y.IsInteger() {
		n, _ := y.raw.QuoRem64(scaleU64)
		if n.Hi != 0 || n.Lo >= 128 || scale.BitLen()+int(n.Lo) > 128 {
			return Value{}, matherr.New(matherr.KindOverflow, "power of two above maximum")
		}
		v := scale.Lsh(uint(n.Lo))
		if v.Cmp(maxRaw) > 0 {
			return Value{}, matherr.New(matherr.KindOverflow, "power of two above maximum")
		}
		return Value{raw: v}, nil
	}

	p, ok := mulTrunc(y.raw, ln2)
	if !ok || p.Cmp(expLimit) > 0 {
		return Value{}, matherr.Newf(matherr.KindDomain, "exp2 exponent above %d", ExpLimit)
	}
	r, err := expRaw(p)
	if err != nil {
		return Value{}, err
	}
	return Value{raw: r}, nil
}
