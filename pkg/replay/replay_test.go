package replay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealDaniG/QFS-sub007/pkg/auditlog"
	"github.com/RealDaniG/QFS-sub007/pkg/failsafe"
	"github.com/RealDaniG/QFS-sub007/pkg/matherr"
	"github.com/RealDaniG/QFS-sub007/pkg/merkle"
)

const settlementYAML = `
session: settlement-1
steps:
  - op: from_string
    args: ["1.5"]
  - op: add
    args: ["$0", "2.25"]
    expect: ok && result == "3.750000000000000000"
  - op: div
    args: ["$1", "0"]
    expect: error == "DivisionByZeroError"
  - op: sqrt
    args: ["$2"]
  - op: sqrt
    args: ["4"]
    timestamp: 42
    pqc_cid: "bafy-test"
    metadata:
      entanglement_index: 3
      ignored_key: x
  - op: gt
    args: ["$4", "$0"]
    expect: result == "true"
  - op: to_string
    args: ["$4"]
`

func mustRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	r, err := NewRunner(opts...)
	require.NoError(t, err)
	return r
}

func idx(i int) *int { return &i }
func held(b bool) *bool { return &b }

func TestRun_RecordsFailuresAndContinues(t *testing.T) {
	s, err := ParseScript([]byte(settlementYAML))
	require.NoError(t, err)

	res, err := mustRunner(t).Run(context.Background(), s)
	require.NoError(t, err)

	// Entries: 0 from_string, 1 "2.25", 2 add, 3 "0", 4 div (fails),
	// 5 "4", 6 sqrt, 7 gt, 8 to_string. Step 3 never runs.
	want := []StepResult{
		{Index: 0, Op: "from_string", Result: "1.500000000000000000", LogIndex: idx(0)},
		{Index: 1, Op: "add", Result: "3.750000000000000000", LogIndex: idx(2), Expect: held(true)},
		{Index: 2, Op: "div", Error: matherr.KindDivisionByZero, Code: "QFS/CORE/MATH/DIVISION_BY_ZERO", LogIndex: idx(4), Expect: held(true)},
		{Index: 3, Op: "sqrt", Skipped: SkipUnresolved},
		{Index: 4, Op: "sqrt", Result: "2.000000000000000000", LogIndex: idx(6)},
		{Index: 5, Op: "gt", Result: "true", LogIndex: idx(7), Expect: held(true)},
		{Index: 6, Op: "to_string", Result: "2.000000000000000000", LogIndex: idx(8)},
	}
	if diff := cmp.Diff(want, res.Steps); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, res.OK())
	assert.False(t, res.Halted)
	assert.Equal(t, 9, res.EntryCount)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "div", res.Failures[0].Operation)
	assert.Equal(t, 4, res.Failures[0].LogIndex)

	require.NotNil(t, res.Bundle)
	assert.NoError(t, auditlog.VerifyBundle(res.Bundle))
	assert.Equal(t, res.Digest, res.Bundle.Digest)
}

func TestRun_StepOptionsReachTheLog(t *testing.T) {
	s, err := ParseScript([]byte(settlementYAML))
	require.NoError(t, err)

	var entries []auditlog.Entry
	r := mustRunner(t, WithObserver(auditlog.ObserverFunc(func(e auditlog.Entry) {
		entries = append(entries, e)
	})))
	_, err = r.Run(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, entries, 9)
	sqrt := entries[6]
	assert.Equal(t, "sqrt", sqrt.Operation)
	assert.Equal(t, int64(42), sqrt.Timestamp)
	require.NotNil(t, sqrt.PQCCID)
	assert.Equal(t, "bafy-test", *sqrt.PQCCID)
	assert.Equal(t, map[string]string{"entanglement_index": "3"}, sqrt.QuantumMetadata)
	assert.Equal(t, int64(42), entries[5].Timestamp, "literal parse carries the step options")
}

func TestRun_Deterministic(t *testing.T) {
	s, err := ParseScript([]byte(settlementYAML))
	require.NoError(t, err)
	r := mustRunner(t)

	first, err := r.Run(context.Background(), s)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Run(context.Background(), s)
		require.NoError(t, err)
		if diff := cmp.Diff(first, again, cmpopts.IgnoreFields(Result{}, "Bundle")); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
		assert.Equal(t, string(first.Bundle.Log), string(again.Bundle.Log))
	}
}

func TestRun_ExpectationMismatch(t *testing.T) {
	s := &Script{Session: "mismatch", Steps: []Step{
		{Op: "mul", Args: []string{"2", "3"}, Expect: `result == "7.000000000000000000"`},
		{Op: "phi", Args: []string{"1.000000000000000001"}, Expect: "ok"},
	}}
	res, err := mustRunner(t).Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, res.OK())
	want := []Mismatch{
		{Step: 0, Expect: `result == "7.000000000000000000"`},
		{Step: 1, Expect: "ok"},
	}
	if diff := cmp.Diff(want, res.Mismatches); diff != "" {
		t.Fatalf("mismatches (-want +got):\n%s", diff)
	}
	assert.Equal(t, matherr.KindDomain, res.Steps[1].Error)
}

func TestValidate(t *testing.T) {
	x, err := NewExpectations()
	require.NoError(t, err)

	cases := map[string]*Script{
		"no session":        {Steps: []Step{{Op: "add", Args: []string{"1", "2"}}}},
		"unknown op":        {Session: "s", Steps: []Step{{Op: "mod", Args: []string{"1", "2"}}}},
		"arity":             {Session: "s", Steps: []Step{{Op: "sqrt", Args: []string{"1", "2"}}}},
		"forward ref":       {Session: "s", Steps: []Step{{Op: "sqrt", Args: []string{"$0"}}}},
		"bad ref":           {Session: "s", Steps: []Step{{Op: "sqrt", Args: []string{"1"}}, {Op: "sqrt", Args: []string{"$x"}}}},
		"ref to bool":       {Session: "s", Steps: []Step{{Op: "eq", Args: []string{"1", "1"}}, {Op: "sqrt", Args: []string{"$0"}}}},
		"ref in from_str":   {Session: "s", Steps: []Step{{Op: "sqrt", Args: []string{"1"}}, {Op: "from_string", Args: []string{"$0"}}}},
		"expect not bool":   {Session: "s", Steps: []Step{{Op: "sqrt", Args: []string{"1"}, Expect: "result"}}},
		"expect not parsed": {Session: "s", Steps: []Step{{Op: "sqrt", Args: []string{"1"}, Expect: "ok &&"}}},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			err := s.Validate(x)
			assert.ErrorIs(t, err, ErrInvalidScript)
			assert.True(t, IsInvalidScript(err))
		})
	}

	_, err = mustRunner(t).Run(context.Background(), cases["unknown op"])
	assert.ErrorIs(t, err, ErrInvalidScript)
}

func TestParseScript(t *testing.T) {
	_, err := ParseScript([]byte("session: s\nsteps:\n  - op: add\n    argz: [1]\n"))
	assert.ErrorIs(t, err, ErrInvalidScript, "unknown field")

	_, err = ParseScript(nil)
	assert.ErrorIs(t, err, ErrInvalidScript)

	s, err := ParseScript([]byte(`{"session":"json","steps":[{"op":"exp2","args":["10"]}]}`))
	require.NoError(t, err)
	assert.Equal(t, "json", s.Session)

	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(settlementYAML), 0o600))
	s, err = LoadScript(path)
	require.NoError(t, err)
	assert.Len(t, s.Steps, 7)
}

func TestRun_HandlerErrorAborts(t *testing.T) {
	boom := errors.New("pager unavailable")
	r := mustRunner(t, WithFailureHandler(failsafe.HandlerFunc(func(context.Context, failsafe.Report) error {
		return boom
	})))
	s := &Script{Session: "abort", Steps: []Step{{Op: "div", Args: []string{"1", "0"}}}}
	_, err := r.Run(context.Background(), s)
	assert.ErrorIs(t, err, boom)
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &Script{Session: "canceled", Steps: []Step{{Op: "sqrt", Args: []string{"4"}}}}
	_, err := mustRunner(t).Run(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunAll(t *testing.T) {
	var scripts []*Script
	for i := 7; i >= 0; i-- {
		scripts = append(scripts, &Script{
			Session: fmt.Sprintf("session-%d", i),
			Steps: []Step{
				{Op: "from_string", Args: []string{fmt.Sprintf("%d", i)}},
				{Op: "exp2", Args: []string{"$0"}},
			},
		})
	}

	r := mustRunner(t)
	batch, err := r.RunAll(context.Background(), scripts, 3)
	require.NoError(t, err)
	require.Len(t, batch.Results, 8)
	assert.True(t, batch.OK())
	assert.Equal(t, "session-0", batch.Results[0].Session)
	assert.Equal(t, "128.000000000000000000", batch.Results[7].Steps[1].Result)

	for _, res := range batch.Results {
		single, err := r.Run(context.Background(), scriptFor(scripts, res.Session))
		require.NoError(t, err)
		assert.Equal(t, single.Digest, res.Digest, "concurrency does not change a session digest")

		proof, err := batch.Tree.Proof(res.Session)
		require.NoError(t, err)
		assert.True(t, merkle.VerifyInclusionProof(proof, batch.Root))
	}

	_, err = r.RunAll(context.Background(), append(scripts, scripts[0]), 0)
	assert.ErrorIs(t, err, ErrInvalidScript, "duplicate session")
}

func scriptFor(scripts []*Script, session string) *Script {
	for _, s := range scripts {
		if s.Session == session {
			return s
		}
	}
	return nil
}
