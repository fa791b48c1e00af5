package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/RealDaniG/QFS-sub007/pkg/auditlog"
	"github.com/RealDaniG/QFS-sub007/pkg/certmath"
	"github.com/RealDaniG/QFS-sub007/pkg/failsafe"
	"github.com/RealDaniG/QFS-sub007/pkg/matherr"
	"github.com/RealDaniG/QFS-sub007/pkg/observability"
)

// Skip reasons.
const (
	SkipHalted     = "halted"
	SkipUnresolved = "unresolved_reference"
)

// StepResult reports one step. Exactly one of Result, Error or Skipped is
// meaningful; Expect is set when the step carried an expectation.
type StepResult struct {
	Index    int          `json:"index"`
	Op       string       `json:"op"`
	Result   string       `json:"result,omitempty"`
	Error    matherr.Kind `json:"error,omitempty"`
	Code     string       `json:"code,omitempty"`
	LogIndex *int         `json:"log_index,omitempty"`
	Skipped  string       `json:"skipped,omitempty"`
	Expect   *bool        `json:"expect,omitempty"`
}

// Mismatch is a step whose expectation did not hold.
type Mismatch struct {
	Step   int    `json:"step"`
	Expect string `json:"expect"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of one script.
type Result struct {
	Session    string            `json:"session"`
	Digest     string            `json:"digest"`
	EntryCount int               `json:"entry_count"`
	Halted     bool              `json:"halted"`
	Steps      []StepResult      `json:"steps"`
	Failures   []failsafe.Report `json:"failures"`
	Mismatches []Mismatch        `json:"mismatches"`
	Bundle     *auditlog.Bundle  `json:"-"`
}

// OK reports whether every expectation held and nothing halted the run.
func (r *Result) OK() bool {
	return !r.Halted && len(r.Mismatches) == 0
}

// Runner executes scripts.
type Runner struct {
	expect    *Expectations
	handlers  []failsafe.Handler
	observers []auditlog.Observer
	telemetry *observability.Provider
	logger    *slog.Logger
}

type Option func(*Runner)

// WithFailureHandler adds a handler that sees every arithmetic failure.
func WithFailureHandler(h failsafe.Handler) Option {
	return func(r *Runner) { r.handlers = append(r.handlers, h) }
}

// WithObserver attaches o to every session's LogContext.
func WithObserver(o auditlog.Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// WithTelemetry records a span per session and counts operations.
func WithTelemetry(p *observability.Provider) Option {
	return func(r *Runner) { r.telemetry = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func NewRunner(opts ...Option) (*Runner, error) {
	x, err := NewExpectations()
	if err != nil {
		return nil, err
	}
	r := &Runner{expect: x, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "replay")
	return r, nil
}

// Validate checks s against this runner's expectation environment.
func (r *Runner) Validate(s *Script) error {
	return s.Validate(r.expect)
}

// Run validates and executes s in a fresh LogContext. Arithmetic failures
// are recorded and execution continues; a fatal failure halts the session
// and the remaining steps are skipped. The log is finalized in every case.
func (r *Runner) Run(ctx context.Context, s *Script) (res *Result, err error) {
	if err := r.Validate(s); err != nil {
		return nil, err
	}

	digest := ""
	if r.telemetry != nil {
		var done func(string, error)
		ctx, done = r.telemetry.TrackSession(ctx, s.Session)
		defer func() { done(digest, err) }()
	}

	quarantine := failsafe.NewQuarantine()
	handlers := append([]failsafe.Handler{quarantine, failsafe.LogHandler(r.logger)}, r.handlers...)
	dispatcher := failsafe.NewDispatcher(handlers...)

	var logOpts []auditlog.Option
	for _, o := range r.observers {
		logOpts = append(logOpts, auditlog.WithObserver(o))
	}
	if r.telemetry != nil {
		logOpts = append(logOpts, auditlog.WithObserver(r.telemetry))
	}

	res = &Result{
		Session:    s.Session,
		Steps:      make([]StepResult, len(s.Steps)),
		Failures:   []failsafe.Report{},
		Mismatches: []Mismatch{},
	}
	log, err := auditlog.Scope(s.Session, func(log *auditlog.LogContext) error {
		values := make([]*certmath.FixedPoint128, len(s.Steps))
		for i, st := range s.Steps {
			if err := ctx.Err(); err != nil {
				return err
			}
			sr := &res.Steps[i]
			sr.Index, sr.Op = i, st.Op
			if quarantine.Halted() {
				sr.Skipped = SkipHalted
				continue
			}
			out, ran, callErr := r.step(log, st, values)
			if !ran {
				sr.Skipped = SkipUnresolved
				continue
			}
			if callErr != nil {
				if serr := dispatcher.Signal(ctx, callErr); serr != nil {
					return serr
				}
				if me, ok := matherr.As(callErr); ok {
					sr.Error, sr.Code = me.Kind, me.Code()
					if me.LogIndex >= 0 {
						idx := me.LogIndex
						sr.LogIndex = &idx
					}
				}
			} else {
				sr.Result = out.text
				idx := log.Len() - 1
				sr.LogIndex = &idx
				if operations[st.Op].yields == yieldsValue {
					v := out.value
					values[i] = &v
				}
			}
			if st.Expect != "" {
				r.checkExpectation(res, sr, st.Expect)
			}
		}
		return nil
	}, logOpts...)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", s.Session, err)
	}

	res.Halted = quarantine.Halted()
	res.Failures = append(res.Failures, quarantine.Reports()...)
	res.Bundle, err = log.Bundle()
	if err != nil {
		return nil, err
	}
	res.Digest, res.EntryCount = res.Bundle.Digest, res.Bundle.EntryCount
	digest = res.Digest

	r.logger.InfoContext(ctx, "session replayed",
		"session", s.Session,
		"digest", res.Digest,
		"entries", res.EntryCount,
		"failures", len(res.Failures),
		"mismatches", len(res.Mismatches),
		"halted", res.Halted,
	)
	return res, nil
}

// step resolves arguments and performs the call. ran is false when an
// argument refers to a step that produced no value; nothing is logged then.
// Literal arguments are parsed through the audited FromString.
func (r *Runner) step(log *auditlog.LogContext, st Step, values []*certmath.FixedPoint128) (outcome, bool, error) {
	def := operations[st.Op]
	opts := st.callOptions()
	if def.literal {
		out, err := def.call(log, nil, st.Args, opts)
		return out, true, err
	}

	args := make([]certmath.FixedPoint128, len(st.Args))
	for j, a := range st.Args {
		if n, isRef := ref(a); isRef {
			if values[n] == nil {
				return outcome{}, false, nil
			}
			args[j] = *values[n]
			continue
		}
		v, err := certmath.FromString(log, a, opts...)
		if err != nil {
			return outcome{}, true, err
		}
		args[j] = v
	}
	out, err := def.call(log, args, st.Args, opts)
	return out, true, err
}

func (r *Runner) checkExpectation(res *Result, sr *StepResult, expr string) {
	ok := sr.Error == ""
	held, err := r.expect.Eval(expr, sr.Result, ok, string(sr.Error))
	sr.Expect = &held
	if err != nil {
		res.Mismatches = append(res.Mismatches, Mismatch{Step: sr.Index, Expect: expr, Detail: err.Error()})
		return
	}
	if !held {
		res.Mismatches = append(res.Mismatches, Mismatch{Step: sr.Index, Expect: expr})
	}
}

// IsInvalidScript reports whether err came from script validation.
func IsInvalidScript(err error) bool {
	return errors.Is(err, ErrInvalidScript)
}
