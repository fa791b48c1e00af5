// Package failsafe is the boundary where engine failures leave the
// arithmetic layer. It turns a typed error into a deterministic halt Report
// and hands it to consumer-supplied handlers (CIR handlers), which decide
// whether to reject the transaction, quarantine the source or stop the node.
package failsafe

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/RealDaniG/QFS-sub007/pkg/canonicalize"
	"github.com/RealDaniG/QFS-sub007/pkg/matherr"
)

var ErrHalted = errors.New("engine halted after a fatal arithmetic failure (fail-closed)")

// Report is the canonical record of one failed call. It carries no time or
// host data, so two replays of the same failure produce identical reports.
type Report struct {
	Operation      string            `json:"operation"`
	Kind           matherr.Kind      `json:"kind"`
	Code           string            `json:"code"`
	Classification string            `json:"classification"`
	Operands       map[string]string `json:"operands"`
	LogIndex       int               `json:"log_index"`
	Digest         string            `json:"digest"`
}

// ReportFrom extracts a Report from an engine error.
func ReportFrom(err error) (Report, bool) {
	me, ok := matherr.As(err)
	if !ok {
		return Report{}, false
	}
	operands := make(map[string]string, len(me.Operands))
	for k, v := range me.Operands {
		operands[k] = v
	}
	return Report{
		Operation:      me.Op,
		Kind:           me.Kind,
		Code:           me.Code(),
		Classification: me.Classification(),
		Operands:       operands,
		LogIndex:       me.LogIndex,
		Digest:         me.Digest,
	}, true
}

// Fatal reports whether the failure calls for a halt.
func (r Report) Fatal() bool {
	return r.Classification == matherr.ClassificationHalt
}

// Hash returns the SHA3-256 of the report's canonical form.
func (r Report) Hash() (string, error) {
	return canonicalize.Hash(r)
}

// Handler consumes halt reports.
type Handler interface {
	Handle(ctx context.Context, r Report) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, r Report) error

func (f HandlerFunc) Handle(ctx context.Context, r Report) error { return f(ctx, r) }

// Dispatcher fans a failure out to every registered handler.
type Dispatcher struct {
	handlers []Handler
	logger   *slog.Logger
}

func NewDispatcher(handlers ...Handler) *Dispatcher {
	return &Dispatcher{
		handlers: handlers,
		logger:   slog.Default().With("component", "failsafe"),
	}
}

// Signal dispatches err if it is an engine failure. Handlers all run even
// if one fails; their errors are joined. Errors that are not engine failures
// are returned unchanged and dispatched to nobody.
func (d *Dispatcher) Signal(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	r, ok := ReportFrom(err)
	if !ok {
		return err
	}
	var errs []error
	for _, h := range d.handlers {
		if herr := h.Handle(ctx, r); herr != nil {
			d.logger.ErrorContext(ctx, "failure handler error", "operation", r.Operation, "kind", r.Kind, "error", herr)
			errs = append(errs, herr)
		}
	}
	return errors.Join(errs...)
}

// LogHandler writes each report to logger: ERROR for halts, WARN for rejects.
func LogHandler(logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "failsafe")
	return HandlerFunc(func(ctx context.Context, r Report) error {
		level := slog.LevelWarn
		if r.Fatal() {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "arithmetic failure",
			"operation", r.Operation,
			"kind", r.Kind,
			"code", r.Code,
			"classification", r.Classification,
			"log_index", r.LogIndex,
			"digest", r.Digest,
		)
		return nil
	})
}

// Quarantine records every report and latches into the halted state on
// the first fatal one. Upstream code checks it before committing effects.
type Quarantine struct {
	mu      sync.Mutex
	halted  bool
	reports []Report
}

func NewQuarantine() *Quarantine {
	return &Quarantine{}
}

func (q *Quarantine) Handle(_ context.Context, r Report) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reports = append(q.reports, r)
	if r.Fatal() {
		q.halted = true
	}
	return nil
}

// Halted reports whether a fatal failure has been seen.
func (q *Quarantine) Halted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.halted
}

// Check returns ErrHalted once the latch has tripped.
func (q *Quarantine) Check() error {
	if q.Halted() {
		return ErrHalted
	}
	return nil
}

// Reports returns a copy of everything recorded so far.
func (q *Quarantine) Reports() []Report {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Report, len(q.reports))
	copy(out, q.reports)
	return out
}
