package uint128

import (
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toBig(u Uint128) *big.Int {
	b := new(big.Int).SetUint64(u.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(u.Lo))
}

func TestAdd_CarryAcrossLimbs(t *testing.T) {
	sum, ok := Uint128{Lo: ^uint64(0)}.Add(One)
	require.True(t, ok)
	assert.Equal(t, Uint128{Hi: 1, Lo: 0}, sum)

	_, ok = Max.Add(One)
	assert.False(t, ok, "Max+1 must report overflow")
}

func TestSub_Borrow(t *testing.T) {
	diff, ok := Uint128{Hi: 1}.Sub(One)
	require.True(t, ok)
	assert.Equal(t, Uint128{Lo: ^uint64(0)}, diff)

	_, ok = Zero.Sub(One)
	assert.False(t, ok)
}

func TestMul_FullProduct(t *testing.T) {
	hi, lo := Max.Mul(Max)
	want := new(big.Int).Mul(toBig(Max), toBig(Max))

	got := new(big.Int).Lsh(toBig(hi), 128)
	got.Or(got, toBig(lo))
	assert.Equal(t, 0, want.Cmp(got))
}

func TestMul64_Overflow(t *testing.T) {
	_, ok := Uint128{Hi: 1 << 63}.Mul64(2)
	assert.False(t, ok)

	v, ok := Uint128{Hi: 1, Lo: 5}.Mul64(3)
	require.True(t, ok)
	assert.Equal(t, Uint128{Hi: 3, Lo: 15}, v)
}

func TestDivWide_RejectsZeroAndOversizedQuotient(t *testing.T) {
	_, _, ok := DivWide(Zero, From64(10), Zero)
	assert.False(t, ok, "division by zero")

	_, _, ok = DivWide(From64(7), Zero, From64(7))
	assert.False(t, ok, "quotient would need more than 128 bits")
}

func TestDivWide_MatchesBig(t *testing.T) {
	cases := []struct{ hi, lo, d Uint128 }{
		{Zero, From64(100), From64(7)},
		{From64(3), Max, From64(1_000_000_000_000_000_000)},
		{Uint128{Hi: 5, Lo: 9}, Uint128{Hi: 123, Lo: 456}, Uint128{Hi: 6, Lo: 0}},
		{Uint128{Hi: 1 << 62}, Max, Max},
	}
	for _, tc := range cases {
		q, r, ok := DivWide(tc.hi, tc.lo, tc.d)
		require.True(t, ok)

		n := new(big.Int).Lsh(toBig(tc.hi), 128)
		n.Or(n, toBig(tc.lo))
		wantQ, wantR := new(big.Int).QuoRem(n, toBig(tc.d), new(big.Int))

		assert.Equal(t, 0, wantQ.Cmp(toBig(q)), "quotient for %v", tc)
		assert.Equal(t, 0, wantR.Cmp(toBig(r)), "remainder for %v", tc)
	}
}

func TestShifts(t *testing.T) {
	assert.Equal(t, Uint128{Hi: 1}, One.Lsh(64))
	assert.Equal(t, Uint128{Hi: 1 << 63}, One.Lsh(127))
	assert.Equal(t, Zero, One.Lsh(128))
	assert.Equal(t, One, Uint128{Hi: 1}.Rsh(64))
	assert.Equal(t, Uint128{Lo: 1 << 63}, Uint128{Hi: 1}.Rsh(1))
	assert.Equal(t, 128, Max.BitLen())
	assert.Equal(t, 0, Zero.BitLen())
}

func TestStringAndParse(t *testing.T) {
	assert.Equal(t, "340282366920938463463374607431768211455", Max.String())
	assert.Equal(t, "0", Zero.String())
	assert.Equal(t, "18446744073709551616", Uint128{Hi: 1}.String())
	assert.Equal(t, "10000000000000000000000000000000000000", mustParse(t, "10000000000000000000000000000000000000").String())

	_, ok := ParseDecimal("340282366920938463463374607431768211456")
	assert.False(t, ok, "2^128 overflows")
	_, ok = ParseDecimal("12a")
	assert.False(t, ok)
	_, ok = ParseDecimal("")
	assert.False(t, ok)
}

func mustParse(t *testing.T, s string) Uint128 {
	t.Helper()
	v, ok := ParseDecimal(s)
	require.True(t, ok)
	return v
}

func TestQuoRem_AgreesWithBig(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("QuoRem matches math/big", prop.ForAll(
		func(aHi, aLo, dHi, dLo uint64) bool {
			a := Uint128{Hi: aHi, Lo: aLo}
			d := Uint128{Hi: dHi, Lo: dLo}
			if d.IsZero() {
				return true
			}
			q, r, ok := a.QuoRem(d)
			if !ok {
				return false
			}
			wantQ, wantR := new(big.Int).QuoRem(toBig(a), toBig(d), new(big.Int))
			return wantQ.Cmp(toBig(q)) == 0 && wantR.Cmp(toBig(r)) == 0
		},
		gen.UInt64(), gen.UInt64(), gen.UInt64Range(0, 1<<20), gen.UInt64(),
	))

	properties.Property("String round-trips through ParseDecimal", prop.ForAll(
		func(hi, lo uint64) bool {
			u := Uint128{Hi: hi, Lo: lo}
			back, ok := ParseDecimal(u.String())
			return ok && back == u
		},
		gen.UInt64(), gen.UInt64(),
	))

	properties.TestingRun(t)
}
