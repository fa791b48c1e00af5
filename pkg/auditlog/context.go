package auditlog

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/RealDaniG/QFS-sub007/pkg/canonicalize"
)

var (
	ErrNotOpen        = errors.New("log context is not open")
	ErrNotClosed      = errors.New("log context is not closed")
	ErrConcurrentUse  = errors.New("log context used by more than one caller at once (fail-closed)")
	ErrInvalidDraft   = errors.New("invalid audit draft")
	ErrTimestampRange = errors.New("timestamp outside the exactly representable range")
)

// State is the lifecycle phase of a LogContext.
type State int32

const (
	StateOpen State = iota
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Observer is notified after every successful Append. Observers run on the
// appending goroutine and must not call back into the LogContext.
type Observer interface {
	EntryAppended(Entry)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Entry)

func (f ObserverFunc) EntryAppended(e Entry) { f(e) }

// Option configures a LogContext.
type Option func(*LogContext)

// WithObserver registers o for appended entries.
func WithObserver(o Observer) Option {
	return func(l *LogContext) {
		if o != nil {
			l.observers = append(l.observers, o)
		}
	}
}

var sessionNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("qfs.certmath.auditlog.session"))

// LogContext is an append-only audit chain owned by one unit of work.
//
// It is not safe for concurrent use and does not serialize callers:
// overlapping Append or Finalize calls fail with ErrConcurrentUse.
type LogContext struct {
	sessionID string
	observers []Observer

	busy  atomic.Bool
	state atomic.Int32

	entries []Entry
	export  []byte
	digest  string
}

// New returns an open LogContext for sessionID.
func New(sessionID string, opts ...Option) *LogContext {
	l := &LogContext{sessionID: sessionID}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Scope runs fn against a fresh LogContext and finalizes it on exit, even
// when fn fails or panics. The returned error joins fn's error with any
// finalization error.
func Scope(sessionID string, fn func(*LogContext) error, opts ...Option) (l *LogContext, err error) {
	l = New(sessionID, opts...)
	defer func() {
		if l.State() == StateClosed {
			return
		}
		if ferr := l.Finalize(); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}()
	return l, fn(l)
}

func (l *LogContext) acquire() error {
	if !l.busy.CompareAndSwap(false, true) {
		return ErrConcurrentUse
	}
	return nil
}

func (l *LogContext) release() {
	l.busy.Store(false)
}

// SessionID returns the caller-chosen session name.
func (l *LogContext) SessionID() string {
	return l.sessionID
}

// ID returns the deterministic UUIDv5 of the session ID.
func (l *LogContext) ID() uuid.UUID {
	return uuid.NewSHA1(sessionNamespace, []byte(l.sessionID))
}

// State returns the current lifecycle phase.
func (l *LogContext) State() State {
	return State(l.state.Load())
}

// Append records one entry and returns it (prev_hash is filled at
// finalization). Appending is only possible while the context is open.
func (l *LogContext) Append(d Draft) (Entry, error) {
	if err := l.acquire(); err != nil {
		return Entry{}, err
	}
	defer l.release()

	if l.State() != StateOpen {
		return Entry{}, fmt.Errorf("append %q: %w", d.Operation, ErrNotOpen)
	}
	if d.Operation == "" {
		return Entry{}, fmt.Errorf("%w: empty operation", ErrInvalidDraft)
	}
	if !ValidTimestamp(d.Timestamp) {
		return Entry{}, fmt.Errorf("append %q: %w: %d", d.Operation, ErrTimestampRange, d.Timestamp)
	}

	e := Entry{
		LogIndex:          len(l.entries),
		Operation:         d.Operation,
		Inputs:            copyMap(d.Inputs),
		Outputs:           copyMap(d.Outputs),
		QuantumMetadata:   FilterMetadata(d.Metadata),
		Timestamp:         d.Timestamp,
		SystemFingerprint: d.SystemFingerprint,
	}
	if d.PQCCID != nil {
		cid := *d.PQCCID
		e.PQCCID = &cid
	}

	h, err := ComputeEntryHash(e)
	if err != nil {
		return Entry{}, err
	}
	e.EntryHash = h
	l.entries = append(l.entries, e)

	for _, o := range l.observers {
		o.EntryAppended(e.clone())
	}
	return e.clone(), nil
}

// Finalize links the chain, produces the canonical export and closes the
// context. It can run once.
func (l *LogContext) Finalize() error {
	if err := l.acquire(); err != nil {
		return err
	}
	defer l.release()

	if !l.state.CompareAndSwap(int32(StateOpen), int32(StateFinalizing)) {
		return fmt.Errorf("finalize: %w", ErrNotOpen)
	}

	linkChain(l.entries)
	export, err := canonicalize.JCS(exportView(l.entries))
	if err != nil {
		// Stays in Finalizing: no further appends and no export.
		return fmt.Errorf("finalize: canonical export failed (fail-closed): %w", err)
	}
	l.export = export
	l.digest = canonicalize.HashBytes(export)
	l.state.Store(int32(StateClosed))
	return nil
}

// Export returns the canonical JSON array of all entries.
func (l *LogContext) Export() ([]byte, error) {
	if l.State() != StateClosed {
		return nil, fmt.Errorf("export: %w", ErrNotClosed)
	}
	out := make([]byte, len(l.export))
	copy(out, l.export)
	return out, nil
}

// Digest returns the SHA3-256 hex of Export().
func (l *LogContext) Digest() (string, error) {
	if l.State() != StateClosed {
		return "", fmt.Errorf("digest: %w", ErrNotClosed)
	}
	return l.digest, nil
}

// ProvisionalDigest is the digest the log would have if it were finalized
// now. Once closed it equals Digest.
func (l *LogContext) ProvisionalDigest() (string, error) {
	if l.State() == StateClosed {
		return l.digest, nil
	}
	if err := l.acquire(); err != nil {
		return "", err
	}
	defer l.release()

	linked := make([]Entry, len(l.entries))
	copy(linked, l.entries)
	linkChain(linked)
	export, err := canonicalize.JCS(exportView(linked))
	if err != nil {
		return "", fmt.Errorf("provisional digest: %w", err)
	}
	return canonicalize.HashBytes(export), nil
}

// Entries returns a deep copy of the recorded entries.
func (l *LogContext) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.clone()
	}
	return out
}

// Len returns the number of recorded entries.
func (l *LogContext) Len() int {
	return len(l.entries)
}

func linkChain(entries []Entry) {
	prev := ZeroHash
	for i := range entries {
		entries[i].PrevHash = prev
		prev = entries[i].EntryHash
	}
}

// exportView guarantees an empty log exports as [] rather than null.
func exportView(entries []Entry) []Entry {
	if entries == nil {
		return []Entry{}
	}
	return entries
}
