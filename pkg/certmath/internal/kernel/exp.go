package kernel

import (
	"github.com/RealDaniG/QFS-sub007/pkg/certmath/internal/uint128"
	"github.com/RealDaniG/QFS-sub007/pkg/matherr"
)

const (
	// ExpTerms is the fixed number of Taylor terms summed by Exp.
	ExpTerms = 100

	// ExpLimit bounds the exponent accepted by Exp, Pow and Exp2.
	// e^15 is about 3.27e6; term 100 of the series at x=15 is below 10^-40.
	ExpLimit = 15
)

var expLimit = uint128.From64(ExpLimit * scaleU64)

// Exp returns e^x for 0 <= x <= ExpLimit.
func Exp(x Value) (Value, error) {
	if x.raw.Cmp(expLimit) > 0 {
		return Value{}, matherr.Newf(matherr.KindDomain, "exp argument above %d", ExpLimit)
	}
	r, err := expRaw(x.raw)
	if err != nil {
		return Value{}, err
	}
	return Value{raw: r}, nil
}

// expRaw sums sum_{n<ExpTerms} x^n/n!. Each term is derived from the last
// as term*x/n, so nothing grows beyond e^ExpLimit.
func expRaw(x uint128.Uint128) (uint128.Uint128, error) {
	sum := scale
	term := scale
	for n := uint64(1); n < ExpTerms; n++ {
		t, ok := mulTrunc(term, x)
		if !ok {
			return uint128.Zero, matherr.New(matherr.KindOverflow, "exp term overflow")
		}
		term, _ = t.QuoRem64(n)
		if sum, ok = sum.Add(term); !ok {
			return uint128.Zero, matherr.New(matherr.KindOverflow, "exp sum overflow")
		}
	}
	return sum, nil
}

// expSigned evaluates e^s for |s| <= ExpLimit; negative exponents go
// through 1/e^|s|.
func expSigned(s signed) (Value, error) {
	if s.mag.Cmp(expLimit) > 0 {
		return Value{}, matherr.Newf(matherr.KindDomain, "exponent magnitude above %d", ExpLimit)
	}
	e, err := expRaw(s.mag)
	if err != nil {
		return Value{}, err
	}
	if !s.neg {
		return Value{raw: e}, nil
	}
	q, _ := divTrunc(scale, e)
	if q.IsZero() {
		return Value{}, matherr.New(matherr.KindUnderflow, "result below minimal unit")
	}
	return Value{raw: q}, nil
}
