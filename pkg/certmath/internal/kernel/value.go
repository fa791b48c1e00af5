// Package kernel is the certified arithmetic core: a fixed-point value type
// with 18 decimal places and the bounded routines that operate on it.
//
// Everything here is pure. No routine logs, allocates shared state, reads a
// clock or draws entropy, and every loop has a compile-time bound. Audit
// logging is the caller's job (package certmath).
package kernel

import (
	"strconv"
	"strings"

	"github.com/RealDaniG/QFS-sub007/pkg/certmath/internal/uint128"
	"github.com/RealDaniG/QFS-sub007/pkg/matherr"
)

// Decimals is the number of fractional decimal digits carried by a Value.
const Decimals = 18

const scaleU64 uint64 = 1_000_000_000_000_000_000

var (
	scale  = uint128.From64(scaleU64)
	maxRaw = func() uint128.Uint128 {
		_, sq := scale.Mul(scale)
		m, _ := sq.Sub(uint128.One)
		return m
	}()
)

// Value is an unsigned fixed-point number: raw / 10^18.
// The zero value is 0. Values are immutable.
type Value struct {
	raw uint128.Uint128
}

var (
	Zero    = Value{}
	One     = Value{raw: scale}
	MinUnit = Value{raw: uint128.One}
	Max     = Value{raw: maxRaw}
)

// FromRaw wraps a raw scaled integer. It fails with OverflowError above Max.
func FromRaw(raw uint128.Uint128) (Value, error) {
	if raw.Cmp(maxRaw) > 0 {
		return Value{}, matherr.New(matherr.KindOverflow, "raw magnitude above maximum")
	}
	return Value{raw: raw}, nil
}

// Raw returns the scaled integer backing v.
func (v Value) Raw() uint128.Uint128 {
	return v.raw
}

func (v Value) IsZero() bool {
	return v.raw.IsZero()
}

// IsInteger reports whether v has no fractional part.
func (v Value) IsInteger() bool {
	_, r := v.raw.QuoRem64(scaleU64)
	return r == 0
}

// Cmp returns -1, 0 or +1.
func Cmp(a, b Value) int {
	return a.raw.Cmp(b.raw)
}

// String renders the canonical form: integer digits without leading zeros,
// a dot, then exactly 18 fractional digits.
func (v Value) String() string {
	whole, frac := v.raw.QuoRem64(scaleU64)
	// raw <= 10^36-1 keeps the integer part within one limb.
	buf := make([]byte, 0, 40)
	buf = strconv.AppendUint(buf, whole.Lo, 10)
	buf = append(buf, '.')
	f := strconv.FormatUint(frac, 10)
	for pad := len(f); pad < Decimals; pad++ {
		buf = append(buf, '0')
	}
	buf = append(buf, f...)
	return string(buf)
}

func (v Value) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Value) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Parse reads a decimal string of the form digits[.digits].
//
// Signs, whitespace, exponents and empty components are DomainError.
// Fractional digits past the 18th are truncated; if that truncation turns a
// non-zero input into zero the result is UnderflowError. Magnitudes above
// Max are OverflowError.
func Parse(s string) (Value, error) {
	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if intPart == "" || (hasDot && fracPart == "") {
		return Value{}, matherr.Newf(matherr.KindDomain, "malformed decimal %q", s)
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return Value{}, matherr.Newf(matherr.KindDomain, "malformed decimal %q", s)
	}

	intPart = strings.TrimLeft(intPart, "0")
	if len(intPart) > Decimals {
		return Value{}, matherr.Newf(matherr.KindOverflow, "decimal %q above maximum", s)
	}
	var whole uint64
	if intPart != "" {
		whole, _ = strconv.ParseUint(intPart, 10, 64)
	}

	lost := false
	if len(fracPart) > Decimals {
		lost = strings.Trim(fracPart[Decimals:], "0") != ""
		fracPart = fracPart[:Decimals]
	}
	var frac uint64
	if fracPart != "" {
		frac, _ = strconv.ParseUint(fracPart+strings.Repeat("0", Decimals-len(fracPart)), 10, 64)
	}

	raw, _ := uint128.From64(whole).Mul64(scaleU64)
	raw, _ = raw.Add(uint128.From64(frac))
	if raw.IsZero() && lost {
		return Value{}, matherr.Newf(matherr.KindUnderflow, "decimal %q below minimal unit", s)
	}
	return Value{raw: raw}, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
