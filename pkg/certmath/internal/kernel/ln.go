package kernel

import (
	"github.com/RealDaniG/QFS-sub007/pkg/certmath/internal/uint128"
	"github.com/RealDaniG/QFS-sub007/pkg/matherr"
)

const (
	// LnTerms is the fixed number of series terms summed by Ln.
	// With |u| < 0.5 the last term is below 10^-25.
	LnTerms = 80

	// LnMaxReductions caps the halving/doubling steps of the range
	// reduction. Inputs between MinUnit and Max need at most 61.
	LnMaxReductions = 128

	// Ln2Raw is ln(2) truncated to 18 decimals.
	Ln2Raw uint64 = 693_147_180_559_945_309
)

var (
	ln2     = uint128.From64(Ln2Raw)
	bandLo  = uint128.From64(750_000_000_000_000_000)
	bandHi  = uint128.From64(1_500_000_000_000_000_000)
	lnTerms = uint64(LnTerms)
)

// Ln returns the natural logarithm of x. Zero is DomainError; the value
// type is unsigned, so 0 < x < 1 (a negative logarithm) is UnderflowError.
func Ln(x Value) (Value, error) {
	l, err := lnSigned(x)
	if err != nil {
		return Value{}, err
	}
	if l.neg {
		return Value{}, matherr.New(matherr.KindUnderflow, "logarithm of value below one is negative")
	}
	return Value{raw: l.mag}, nil
}

// lnSigned returns ln(x) as a sign-magnitude raw value.
func lnSigned(x Value) (signed, error) {
	if x.raw.IsZero() {
		return signed{}, matherr.New(matherr.KindDomain, "logarithm of zero")
	}

	// Find k with m = x/2^k in [0.75, 1.5). Doubling is exact; halving
	// truncates the low bit.
	k := 0
	m := x.raw
	for m.Cmp(bandHi) >= 0 {
		if k >= LnMaxReductions {
			return signed{}, matherr.Newf(matherr.KindIterationLimit, "ln range reduction exceeded %d steps", LnMaxReductions)
		}
		m = m.Rsh(1)
		k++
	}
	for m.Cmp(bandLo) < 0 {
		if -k >= LnMaxReductions {
			return signed{}, matherr.Newf(matherr.KindIterationLimit, "ln range reduction exceeded %d steps", LnMaxReductions)
		}
		m = m.Lsh(1)
		k--
	}

	series, err := ln1p(m)
	if err != nil {
		return signed{}, err
	}

	kAbs := k
	if kAbs < 0 {
		kAbs = -kAbs
	}
	kln2, _ := ln2.Mul64(uint64(kAbs))
	out, ok := addSigned(series, signed{neg: k < 0, mag: kln2})
	if !ok {
		return signed{}, matherr.New(matherr.KindOverflow, "logarithm overflow")
	}
	return out, nil
}

// ln1p evaluates ln(m) for m in [0.75, 1.5) through u = m-1:
// u >= 0 sums u - u^2/2 + u^3/3 ...; u < 0 sums -(v + v^2/2 + ...) with v = -u.
func ln1p(m uint128.Uint128) (signed, error) {
	neg := m.Cmp(scale) < 0
	var u uint128.Uint128
	if neg {
		u, _ = scale.Sub(m)
	} else {
		u, _ = m.Sub(scale)
	}

	var total uint128.Uint128
	pow := u
	for n := uint64(1); n <= lnTerms; n++ {
		term, _ := pow.QuoRem64(n)
		var ok bool
		if neg || n%2 == 1 {
			total, ok = total.Add(term)
		} else {
			// Partial sums of the alternating series stay positive for u < 1.
			total, ok = total.Sub(term)
		}
		if !ok {
			return signed{}, matherr.New(matherr.KindOverflow, "ln series accumulator out of range")
		}
		if pow, ok = mulTrunc(pow, u); !ok {
			return signed{}, matherr.New(matherr.KindOverflow, "ln series power overflow")
		}
	}
	return signed{neg: neg && !total.IsZero(), mag: total}, nil
}
