package zerosim

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanContent_Clean(t *testing.T) {
	s := NewKernelScanner()
	violations := s.ScanContent("add.go", "func add(a, b uint64) uint64 {\n\treturn a + b\n}")
	assert.Empty(t, violations)
}

func TestScanContent_Detects(t *testing.T) {
	s := NewKernelScanner()
	cases := map[string]string{
		"float64":     "x := float64(v)",
		"math.":       "y := math.Sqrt(2)",
		`"time"`:      `import "time"`,
		"math/rand":   `import "math/rand"`,
		"crypto/rand": `import "crypto/rand"`,
		"go func":     "go func() { work() }()",
	}
	for want, src := range cases {
		violations := s.ScanContent("k.go", src)
		require.NotEmpty(t, violations, src)
		assert.Equal(t, want, violations[0].Pattern)
	}
}

func TestScanContent_IgnoresComments(t *testing.T) {
	s := NewKernelScanner()
	assert.Empty(t, s.ScanContent("k.go", "// no float64 here\nreturn x // nor math.Pi"))
	assert.NotEmpty(t, s.ScanContent("k.go", `s := "http://x"; var f float32`))
}

func TestScanContent_LineNumbers(t *testing.T) {
	s := NewKernelScanner()
	violations := s.ScanContent("f.go", "line 1\nline 2\nvar f float32\nline 4")
	require.Len(t, violations, 1)
	assert.Equal(t, 3, violations[0].Line)
}

func TestGate(t *testing.T) {
	s := NewKernelScanner()
	result := s.Gate(map[string]string{
		"clean.go": "func clean() {}",
		"bad.go":   "func f() { go func() {}() }",
		"warn.go":  `import "unsafe"`,
	})
	assert.False(t, result.Passed)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Len(t, result.Violations, 2)
	assert.Equal(t, "bad.go", result.Violations[0].File)

	assert.True(t, s.Gate(map[string]string{"warn.go": `import "unsafe"`}).Passed)
	assert.ErrorContains(t, s.Verify(map[string]string{"bad.go": "var x float64"}), "bad.go:1")
}

// TestKernelSourcesAreDeterministic enforces the guard on the real kernel.
func TestKernelSourcesAreDeterministic(t *testing.T) {
	fsys := os.DirFS("../certmath/internal")
	s := NewKernelScanner()
	for _, dir := range []string{"kernel", "uint128"} {
		files, err := LoadSources(fsys, dir)
		require.NoError(t, err)
		require.NotEmpty(t, files, dir)
		assert.NoError(t, s.Verify(files))
	}
}
