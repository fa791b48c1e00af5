// Package uint128 implements unsigned 128-bit integers on two 64-bit limbs.
//
// Every arithmetic method reports overflow or borrow explicitly. Nothing in
// this package wraps silently; callers decide what a carry means.
package uint128

import (
	"math/bits"
	"strconv"
)

// Uint128 is an unsigned 128-bit integer. The zero value is 0.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

var (
	Zero = Uint128{}
	One  = Uint128{Lo: 1}
	Max  = Uint128{Hi: ^uint64(0), Lo: ^uint64(0)}
)

// From64 widens v.
func From64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// IsZero reports whether u == 0.
func (u Uint128) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}

// Cmp returns -1, 0 or +1.
func (u Uint128) Cmp(v Uint128) int {
	switch {
	case u.Hi < v.Hi:
		return -1
	case u.Hi > v.Hi:
		return 1
	case u.Lo < v.Lo:
		return -1
	case u.Lo > v.Lo:
		return 1
	}
	return 0
}

// Add returns u+v and false if the sum does not fit in 128 bits.
func (u Uint128) Add(v Uint128) (Uint128, bool) {
	lo, carry := bits.Add64(u.Lo, v.Lo, 0)
	hi, carry := bits.Add64(u.Hi, v.Hi, carry)
	return Uint128{Hi: hi, Lo: lo}, carry == 0
}

// Sub returns u-v and false if v > u. On borrow the returned value is the
// two's-complement wrap, which DivWide relies on.
func (u Uint128) Sub(v Uint128) (Uint128, bool) {
	lo, borrow := bits.Sub64(u.Lo, v.Lo, 0)
	hi, borrow := bits.Sub64(u.Hi, v.Hi, borrow)
	return Uint128{Hi: hi, Lo: lo}, borrow == 0
}

// Mul returns the full 256-bit product u*v as (hi, lo).
func (u Uint128) Mul(v Uint128) (hi, lo Uint128) {
	h00, l00 := bits.Mul64(u.Lo, v.Lo)
	h01, l01 := bits.Mul64(u.Lo, v.Hi)
	h10, l10 := bits.Mul64(u.Hi, v.Lo)
	h11, l11 := bits.Mul64(u.Hi, v.Hi)

	w1, c1 := bits.Add64(h00, l01, 0)
	w1, c2 := bits.Add64(w1, l10, 0)

	w2, c3 := bits.Add64(h01, h10, 0)
	w2, c4 := bits.Add64(w2, l11, 0)
	w2, c5 := bits.Add64(w2, c1+c2, 0)

	// The product of two 128-bit values fits in 256 bits, so w3 cannot carry.
	w3 := h11 + c3 + c4 + c5

	return Uint128{Hi: w3, Lo: w2}, Uint128{Hi: w1, Lo: l00}
}

// Mul64 returns u*v and false on overflow.
func (u Uint128) Mul64(v uint64) (Uint128, bool) {
	hi, lo := bits.Mul64(u.Lo, v)
	carryHi, mid := bits.Mul64(u.Hi, v)
	if carryHi != 0 {
		return Uint128{}, false
	}
	hi, carry := bits.Add64(hi, mid, 0)
	if carry != 0 {
		return Uint128{}, false
	}
	return Uint128{Hi: hi, Lo: lo}, true
}

// QuoRem64 divides u by d. d must be non-zero.
func (u Uint128) QuoRem64(d uint64) (Uint128, uint64) {
	qHi, r := u.Hi/d, u.Hi%d
	qLo, r := bits.Div64(r, u.Lo, d)
	return Uint128{Hi: qHi, Lo: qLo}, r
}

// QuoRem divides u by d and returns false when d is zero.
func (u Uint128) QuoRem(d Uint128) (q, r Uint128, ok bool) {
	return DivWide(Zero, u, d)
}

// DivWide divides the 256-bit value hi:lo by d. It returns false when d is
// zero or when the quotient would not fit in 128 bits (hi >= d).
func DivWide(hi, lo, d Uint128) (q, r Uint128, ok bool) {
	if d.IsZero() || hi.Cmp(d) >= 0 {
		return Uint128{}, Uint128{}, false
	}

	if d.Hi == 0 {
		// hi < d implies hi fits in one limb below d.Lo.
		qHi, rem := bits.Div64(hi.Lo, lo.Hi, d.Lo)
		qLo, rem := bits.Div64(rem, lo.Lo, d.Lo)
		return Uint128{Hi: qHi, Lo: qLo}, From64(rem), true
	}

	// Restoring shift-subtract over the 128 low bits. The remainder stays
	// below d, so one extra carry bit is enough to hold the shifted value.
	r = hi
	for i := 127; i >= 0; i-- {
		carry := r.Hi >> 63
		r = r.Lsh(1)
		r.Lo |= lo.bit(uint(i))
		if carry == 1 || r.Cmp(d) >= 0 {
			r, _ = r.Sub(d)
			q = q.setBit(uint(i))
		}
	}
	return q, r, true
}

// Lsh returns u<<n; bits shifted past 128 are discarded.
func (u Uint128) Lsh(n uint) Uint128 {
	switch {
	case n == 0:
		return u
	case n >= 128:
		return Zero
	case n >= 64:
		return Uint128{Hi: u.Lo << (n - 64)}
	}
	return Uint128{Hi: u.Hi<<n | u.Lo>>(64-n), Lo: u.Lo << n}
}

// Rsh returns u>>n.
func (u Uint128) Rsh(n uint) Uint128 {
	switch {
	case n == 0:
		return u
	case n >= 128:
		return Zero
	case n >= 64:
		return Uint128{Lo: u.Hi >> (n - 64)}
	}
	return Uint128{Hi: u.Hi >> n, Lo: u.Lo>>n | u.Hi<<(64-n)}
}

// BitLen returns the number of bits required to represent u.
func (u Uint128) BitLen() int {
	if u.Hi != 0 {
		return 64 + bits.Len64(u.Hi)
	}
	return bits.Len64(u.Lo)
}

func (u Uint128) bit(i uint) uint64 {
	if i >= 64 {
		return (u.Hi >> (i - 64)) & 1
	}
	return (u.Lo >> i) & 1
}

func (u Uint128) setBit(i uint) Uint128 {
	if i >= 64 {
		u.Hi |= 1 << (i - 64)
	} else {
		u.Lo |= 1 << i
	}
	return u
}

const pow10of19 = 10_000_000_000_000_000_000

// String renders u in base 10.
func (u Uint128) String() string {
	if u.Hi == 0 {
		return strconv.FormatUint(u.Lo, 10)
	}

	// Peel off 19-digit chunks, least significant first.
	var chunks []uint64
	for !u.IsZero() {
		var r uint64
		u, r = u.QuoRem64(pow10of19)
		chunks = append(chunks, r)
	}

	buf := make([]byte, 0, 40)
	buf = strconv.AppendUint(buf, chunks[len(chunks)-1], 10)
	for i := len(chunks) - 2; i >= 0; i-- {
		s := strconv.FormatUint(chunks[i], 10)
		for pad := len(s); pad < 19; pad++ {
			buf = append(buf, '0')
		}
		buf = append(buf, s...)
	}
	return string(buf)
}

// ParseDecimal parses a string of ASCII digits. It returns false for an
// empty string, any non-digit byte, or a value that overflows 128 bits.
func ParseDecimal(s string) (Uint128, bool) {
	if s == "" {
		return Uint128{}, false
	}
	var v Uint128
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return Uint128{}, false
		}
		var ok bool
		if v, ok = v.Mul64(10); !ok {
			return Uint128{}, false
		}
		if v, ok = v.Add(From64(uint64(c - '0'))); !ok {
			return Uint128{}, false
		}
	}
	return v, true
}
