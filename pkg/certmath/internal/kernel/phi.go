package kernel

import (
	"github.com/RealDaniG/QFS-sub007/pkg/certmath/internal/uint128"
	"github.com/RealDaniG/QFS-sub007/pkg/matherr"
)

// PhiTerms is the fixed number of arctangent series terms. After the
// half-angle step the series argument is at most 0.4143, so term 50 is
// below 10^-38.
const PhiTerms = 50

// phiClamp is the largest accepted Phi argument, raw 1.0.
var phiClamp = scale

// Phi returns the arctangent series x - x^3/3 + x^5/5 - ... for
// 0 <= x <= 1. One half-angle reduction
// atan(x) = 2*atan(x / (1 + sqrt(1 + x^2))) is applied first.
func Phi(x Value) (Value, error) {
	if x.raw.Cmp(phiClamp) > 0 {
		return Value{}, matherr.Newf(matherr.KindDomain, "phi argument above %s", Value{raw: phiClamp})
	}
	if x.raw.IsZero() {
		return Zero, nil
	}

	sq, _ := mulTrunc(x.raw, x.raw)
	onePlus, _ := scale.Add(sq)
	root, err := Sqrt(Value{raw: onePlus})
	if err != nil {
		return Value{}, err
	}
	den, _ := scale.Add(root.raw)
	y, _ := divTrunc(x.raw, den)
	y2, _ := mulTrunc(y, y)

	var total uint128.Uint128
	pow := y
	for n := uint64(0); n < PhiTerms; n++ {
		term, _ := pow.QuoRem64(2*n + 1)
		if n%2 == 0 {
			total, _ = total.Add(term)
		} else {
			total, _ = total.Sub(term)
		}
		pow, _ = mulTrunc(pow, y2)
	}

	out := total.Lsh(1)
	if out.IsZero() {
		return Value{}, matherr.New(matherr.KindUnderflow, "phi result below minimal unit")
	}
	return Value{raw: out}, nil
}
