package matherr

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsSentinel(t *testing.T) {
	for _, k := range Kinds() {
		err := fmt.Errorf("wrapped: %w", New(k, "detail"))
		assert.ErrorIs(t, err, sentinels[k], "kind %s", k)

		got, ok := KindOf(err)
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestError_Classification(t *testing.T) {
	assert.Equal(t, ClassificationHalt, New(KindIterationLimit, "").Classification())
	assert.Equal(t, ClassificationHalt, New(KindMissingAuditContext, "").Classification())
	assert.Equal(t, ClassificationReject, New(KindOverflow, "").Classification())
	assert.Equal(t, ClassificationReject, New(KindDomain, "").Classification())
}

func TestError_Message(t *testing.T) {
	e := Newf(KindDivisionByZero, "divisor is %s", "zero")
	e.Op = "div"
	e.Operands = map[string]string{"b": "0.000000000000000000", "a": "1.000000000000000000"}
	assert.Equal(t,
		"certmath: div: DivisionByZeroError: divisor is zero [a=1.000000000000000000 b=0.000000000000000000]",
		e.Error())
}

func TestError_IR(t *testing.T) {
	e := New(KindOverflow, "sum above maximum")
	e.Op = "add"
	e.LogIndex = 3

	ir := e.IR()
	assert.Equal(t, "urn:qfs:error:QFS/CORE/MATH/OVERFLOW", ir.Type)
	assert.Equal(t, "OverflowError", ir.Title)
	assert.Equal(t, CodeOverflow, ir.QFS.ErrorCode)
	assert.NotNil(t, ir.QFS.Operands)

	b, err := json.Marshal(ir)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"operands":{}`)
	assert.Contains(t, string(b), `"log_index":3`)
}

func TestCodeFor_Unique(t *testing.T) {
	seen := map[string]Kind{}
	for _, k := range Kinds() {
		c := CodeFor(k)
		prev, dup := seen[c]
		assert.False(t, dup, "code %s shared by %s and %s", c, prev, k)
		seen[c] = k
	}
	assert.Equal(t, "QFS/CORE/UNKNOWN", CodeFor("Nope"))
}
