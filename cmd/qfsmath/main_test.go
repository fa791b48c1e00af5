package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealDaniG/QFS-sub007/pkg/certmath"
	"github.com/RealDaniG/QFS-sub007/pkg/replay"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("QFS_DATA_DIR", dir)
	t.Setenv("QFS_ARCHIVE_DRIVER", "sqlite")
	t.Setenv("QFS_ARCHIVE_DSN", "")
	t.Setenv("QFS_EXPORT_STORE", "fs")
	t.Setenv("QFS_OTLP_ENDPOINT", "")
	t.Setenv("QFS_LOG_LEVEL", "ERROR")
	return dir
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"qfsmath"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestEval(t *testing.T) {
	setupEnv(t)

	code, out, _ := run(t, "eval", "sqrt", "4")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "result: 2.000000000000000000")
	assert.Contains(t, out, "digest: ")

	code, out, _ = run(t, "eval", "div", "1", "0")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "error: DivisionByZeroError (QFS/CORE/MATH/DIVISION_BY_ZERO)")

	code, out, _ = run(t, "eval", "--json", "--timestamp", "7", "sqrt", "2")
	require.Equal(t, 0, code)
	var res replay.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "1.414213562373095048", res.Steps[0].Result)
	assert.Equal(t, 2, res.EntryCount)

	code, _, _ = run(t, "eval", "--expect", `result == "3.000000000000000000"`, "add", "1", "1")
	assert.Equal(t, 1, code, "expectation mismatch")

	code, _, errOut := run(t, "eval", "modulo", "1", "2")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown operation")
}

func TestEval_DigestIsStable(t *testing.T) {
	setupEnv(t)
	_, first, _ := run(t, "eval", "--log", "pow", "2.5", "1.5")
	_, second, _ := run(t, "eval", "--log", "pow", "2.5", "1.5")
	assert.Equal(t, first, second)
	assert.Contains(t, first, `"operation":"pow"`)
}

const scriptYAML = `
session: cli-settlement
steps:
  - op: from_string
    args: ["10"]
  - op: ln
    args: ["$0"]
  - op: exp
    args: ["$1"]
    expect: ok
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestReplay_ArchiveExportVerify(t *testing.T) {
	dir := setupEnv(t)
	script := writeFile(t, t.TempDir(), "s.yaml", scriptYAML)

	code, out, errOut := run(t, "replay", "--archive", "--export", script)
	require.Equal(t, 0, code, errOut)

	var report replayReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.True(t, report.OK)
	assert.NotEmpty(t, report.Root)
	assert.True(t, report.Archive["cli-settlement"])
	key := report.Exports["cli-settlement"]
	require.True(t, strings.HasPrefix(key, "sha3-256:"), key)

	code, out, _ = run(t, "verify", "--digest", res.Digest)
	assert.Equal(t, 0, code, out)
	assert.Contains(t, out, `"valid": true`)

	exported := filepath.Join(dir, "exports", strings.TrimPrefix(key, "sha3-256:")+".json")
	code, out, _ = run(t, "verify", exported)
	assert.Equal(t, 0, code, out)
	assert.Contains(t, out, `"kind": "bundle"`)

	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	tampered := writeFile(t, t.TempDir(), "tampered.json",
		strings.Replace(string(data), `"operation":"ln"`, `"operation":"lN"`, 1))
	code, out, _ = run(t, "verify", tampered)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, `"valid": false`)

	code, _, _ = run(t, "replay", "--archive", script)
	assert.Equal(t, 0, code, "re-archiving the same bundle is a no-op")
}

func TestReplay_FailedExpectation(t *testing.T) {
	setupEnv(t)
	script := writeFile(t, t.TempDir(), "bad.yaml", `
session: bad
steps:
  - op: phi
    args: ["2"]
    expect: ok
`)
	code, out, _ := run(t, "replay", script)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, `"ok": false`)

	code, _, _ = run(t, "replay", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 2, code)
}

func TestFingerprint(t *testing.T) {
	setupEnv(t)

	code, out, _ := run(t, "fingerprint")
	require.Equal(t, 0, code)
	var report fingerprintReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, certmath.SystemFingerprint, report.Fingerprint)
	assert.Equal(t, certmath.EngineVersion, report.EngineVersion)

	profiles := t.TempDir()
	writeFile(t, profiles, "profile_pinned.yaml", "expected_fingerprint: \""+certmath.SystemFingerprint+"\"\n")
	writeFile(t, profiles, "profile_stale.yaml", "expected_fingerprint: \""+strings.Repeat("0", 64)+"\"\n")

	code, out, _ = run(t, "fingerprint", "--profile", "pinned", "--profiles-dir", profiles)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, `"pinned_by": "pinned"`)

	code, _, errOut := run(t, "fingerprint", "--profile", "stale", "--profiles-dir", profiles)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "does not match")
}

func TestConfigErrorsAreRuntimeErrors(t *testing.T) {
	setupEnv(t)
	t.Setenv("QFS_EXPORT_STORE", "floppy")
	code, _, errOut := run(t, "fingerprint")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown export store")
}
