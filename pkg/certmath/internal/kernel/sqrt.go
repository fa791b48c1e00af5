package kernel

import (
	"github.com/RealDaniG/QFS-sub007/pkg/certmath/internal/uint128"
	"github.com/RealDaniG/QFS-sub007/pkg/matherr"
)

// SqrtMaxIterations caps the Newton loop. Starting from a power-of-two
// upper bound the loop settles in well under 20 steps for every input.
const SqrtMaxIterations = 100

// Sqrt returns floor(sqrt(x)) at 18 decimals.
func Sqrt(x Value) (Value, error) {
	if x.raw.IsZero() {
		return Zero, nil
	}
	root, ok := isqrtWide(x.raw.Mul(scale))
	if !ok {
		return Value{}, matherr.Newf(matherr.KindIterationLimit, "sqrt did not converge in %d iterations", SqrtMaxIterations)
	}
	return Value{raw: root}, nil
}

// isqrtWide is integer Newton on the 256-bit value hi:lo. The iterate
// decreases strictly until it reaches floor(sqrt(n)), where the next step
// stops decreasing.
func isqrtWide(hi, lo uint128.Uint128) (uint128.Uint128, bool) {
	bl := lo.BitLen()
	if !hi.IsZero() {
		bl = 128 + hi.BitLen()
	}
	y := uint128.One.Lsh(uint((bl + 1) / 2))
	for i := 0; i < SqrtMaxIterations; i++ {
		q, _, ok := uint128.DivWide(hi, lo, y)
		if !ok {
			return uint128.Zero, false
		}
		sum, _ := y.Add(q)
		next := sum.Rsh(1)
		if next.Cmp(y) >= 0 {
			return y, true
		}
		y = next
	}
	return uint128.Zero, false
}
