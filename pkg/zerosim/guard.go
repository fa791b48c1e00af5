// Package zerosim guards the arithmetic kernel against non-deterministic
// constructs. Kernel sources must not touch floating point, the wall clock,
// randomness or goroutines; any of those would let two replicas disagree on
// a result or an audit entry.
package zerosim

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Severity of a forbidden pattern.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Violation records one forbidden pattern found in a source line.
type Violation struct {
	File        string `json:"file"`
	Line        int    `json:"line,omitempty"`
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
}

// ForbiddenPattern defines a construct that must not appear in kernel code.
type ForbiddenPattern struct {
	Pattern     string   `json:"pattern"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// KernelPatterns returns the patterns enforced on the arithmetic kernel.
func KernelPatterns() []ForbiddenPattern {
	return []ForbiddenPattern{
		{"float32", "Floating point in kernel code", SeverityError},
		{"float64", "Floating point in kernel code", SeverityError},
		{"math.", "Package math operates on floats", SeverityError},
		{`"time"`, "Wall-clock access in kernel code", SeverityError},
		{"math/rand", "Randomness in kernel code", SeverityError},
		{"crypto/rand", "Randomness in kernel code", SeverityError},
		{"go func", "Goroutine in kernel code", SeverityError},
		{"unsafe", "Unsafe memory access in kernel code", SeverityWarning},
	}
}

// Scanner scans source content for forbidden patterns.
type Scanner struct {
	patterns []ForbiddenPattern
}

// NewScanner creates a scanner with the given patterns.
func NewScanner(patterns []ForbiddenPattern) *Scanner {
	return &Scanner{patterns: patterns}
}

// NewKernelScanner creates a scanner with KernelPatterns.
func NewKernelScanner() *Scanner {
	return NewScanner(KernelPatterns())
}

// ScanContent checks one file. Text after a line comment marker is ignored
// so prose can name what the code avoids.
func (s *Scanner) ScanContent(filename, content string) []Violation {
	var violations []Violation

	for lineNum, line := range strings.Split(content, "\n") {
		code := stripLineComment(line)
		if strings.TrimSpace(code) == "" {
			continue
		}
		for _, p := range s.patterns {
			if strings.Contains(code, p.Pattern) {
				violations = append(violations, Violation{
					File:        filename,
					Line:        lineNum + 1,
					Pattern:     p.Pattern,
					Description: p.Description,
				})
			}
		}
	}
	return violations
}

// stripLineComment drops a trailing // comment that is not inside a
// string literal.
func stripLineComment(line string) string {
	inStr, inRaw := false, false
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case inStr:
			if c == '\\' {
				i++
			} else if c == '"' {
				inStr = false
			}
		case inRaw:
			if c == '`' {
				inRaw = false
			}
		case c == '"':
			inStr = true
		case c == '`':
			inRaw = true
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return line[:i]
		}
	}
	return line
}

// GateResult is the outcome of scanning a set of files.
type GateResult struct {
	Passed     bool        `json:"passed"`
	TotalFiles int         `json:"total_files"`
	Violations []Violation `json:"violations,omitempty"`
	ErrorCount int         `json:"error_count"`
}

// Gate checks multiple files. Violations are ordered by file then line.
func (s *Scanner) Gate(files map[string]string) *GateResult {
	result := &GateResult{
		TotalFiles: len(files),
		Passed:     true,
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		result.Violations = append(result.Violations, s.ScanContent(name, files[name])...)
	}

	for _, v := range result.Violations {
		if s.severity(v.Pattern) == SeverityError {
			result.ErrorCount++
		}
	}
	result.Passed = result.ErrorCount == 0
	return result
}

func (s *Scanner) severity(pattern string) Severity {
	for _, p := range s.patterns {
		if p.Pattern == pattern {
			return p.Severity
		}
	}
	return SeverityWarning
}

// Verify returns an error if the gate fails.
func (s *Scanner) Verify(files map[string]string) error {
	result := s.Gate(files)
	if !result.Passed {
		first := result.Violations[0]
		for _, v := range result.Violations {
			if s.severity(v.Pattern) == SeverityError {
				first = v
				break
			}
		}
		return fmt.Errorf("zero-simulation guard failed: %d errors across %d violations (first: %s:%d %q)",
			result.ErrorCount, len(result.Violations), first.File, first.Line, first.Pattern)
	}
	return nil
}

// LoadSources reads the non-test Go files directly under dir in fsys.
func LoadSources(fsys fs.FS, dir string) (map[string]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("zerosim: read %s: %w", dir, err)
	}
	files := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		p := path.Join(dir, name)
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("zerosim: read %s: %w", p, err)
		}
		files[p] = string(data)
	}
	return files, nil
}
