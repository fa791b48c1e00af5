// Package replay runs scripted arithmetic sessions through the audited
// engine. A script names a session and a list of steps; each step is one
// public operation whose arguments are literals or "$n" references to the
// value produced by step n. Running a script yields the closed audit log,
// its digest and a per-step report.
package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RealDaniG/QFS-sub007/pkg/certmath"
)

var ErrInvalidScript = errors.New("invalid replay script")

// Script is one audited session. YAML and JSON are both accepted.
type Script struct {
	Session string `yaml:"session" json:"session"`
	Steps   []Step `yaml:"steps" json:"steps"`
}

// Step is a single operation call.
type Step struct {
	Op        string         `yaml:"op" json:"op"`
	Args      []string       `yaml:"args" json:"args"`
	PQCCID    string         `yaml:"pqc_cid,omitempty" json:"pqc_cid,omitempty"`
	Metadata  map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Timestamp *int64         `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`
	// Expect is an optional CEL boolean over result, ok and error.
	Expect string `yaml:"expect,omitempty" json:"expect,omitempty"`
}

func (s Step) callOptions() []certmath.CallOption {
	var opts []certmath.CallOption
	if s.PQCCID != "" {
		opts = append(opts, certmath.WithPQCCID(s.PQCCID))
	}
	if len(s.Metadata) > 0 {
		opts = append(opts, certmath.WithMetadata(s.Metadata))
	}
	if s.Timestamp != nil {
		opts = append(opts, certmath.WithTimestamp(*s.Timestamp))
	}
	return opts
}

// ParseScript decodes a script. Unknown fields are rejected.
func ParseScript(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidScript)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	return &s, nil
}

// LoadScript reads and decodes a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load script %q: %w", path, err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ref parses "$n".
func ref(arg string) (int, bool) {
	rest, ok := strings.CutPrefix(arg, "$")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return -1, true
	}
	return n, true
}

// Validate checks structure without running anything: known operations,
// arities, references to earlier value-producing steps and compilable
// expectations.
func (s *Script) Validate(x *Expectations) error {
	if strings.TrimSpace(s.Session) == "" {
		return fmt.Errorf("%w: session is required", ErrInvalidScript)
	}
	for i, st := range s.Steps {
		def, ok := operations[st.Op]
		if !ok {
			return fmt.Errorf("%w: step %d: unknown operation %q", ErrInvalidScript, i, st.Op)
		}
		if len(st.Args) != def.arity {
			return fmt.Errorf("%w: step %d: %s takes %d argument(s), got %d",
				ErrInvalidScript, i, st.Op, def.arity, len(st.Args))
		}
		for _, a := range st.Args {
			n, isRef := ref(a)
			if !isRef {
				continue
			}
			if def.literal {
				return fmt.Errorf("%w: step %d: %s takes a literal, not %s", ErrInvalidScript, i, st.Op, a)
			}
			if n < 0 || n >= i {
				return fmt.Errorf("%w: step %d: %s does not name an earlier step", ErrInvalidScript, i, a)
			}
			if operations[s.Steps[n].Op].yields != yieldsValue {
				return fmt.Errorf("%w: step %d: %s refers to %s, which yields no number",
					ErrInvalidScript, i, a, s.Steps[n].Op)
			}
		}
		if st.Expect != "" && x != nil {
			if _, err := x.program(st.Expect); err != nil {
				return fmt.Errorf("%w: step %d: %w", ErrInvalidScript, i, err)
			}
		}
	}
	return nil
}
