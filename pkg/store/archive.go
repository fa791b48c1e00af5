// Package store archives closed audit bundles keyed by session and digest.
//
// The digest covers only the log, so sessions that replay the same
// operations share one. Each (session, digest) pair is stored once; putting
// the same bundle twice is a no-op. A bundle is verified before it is
// written and again when it is read.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/RealDaniG/QFS-sub007/pkg/auditlog"
	"github.com/RealDaniG/QFS-sub007/pkg/config"
)

var ErrNotFound = errors.New("bundle not found")

// Summary is the index row of an archived bundle.
type Summary struct {
	Digest            string `json:"digest"`
	BundleID          string `json:"bundle_id"`
	SessionID         string `json:"session_id"`
	FormatVersion     string `json:"format_version"`
	SystemFingerprint string `json:"system_fingerprint"`
	EntryCount        int    `json:"entry_count"`
}

// Archive persists verified bundles.
type Archive interface {
	// Put stores b if it verifies. It reports whether a new row was written.
	Put(ctx context.Context, b *auditlog.Bundle) (bool, error)
	// Get returns a bundle with the given digest. When several sessions
	// share it, the lowest session ID wins.
	Get(ctx context.Context, digest string) (*auditlog.Bundle, error)
	// List returns summaries ordered by session then digest.
	List(ctx context.Context, limit int) ([]Summary, error)
	Close() error
}

func summarize(b *auditlog.Bundle) Summary {
	return Summary{
		Digest:            b.Digest,
		BundleID:          b.BundleID,
		SessionID:         b.SessionID,
		FormatVersion:     b.FormatVersion,
		SystemFingerprint: b.SystemFingerprint,
		EntryCount:        b.EntryCount,
	}
}

// Open returns the archive selected by cfg.
func Open(ctx context.Context, cfg *config.Config) (Archive, error) {
	switch cfg.ArchiveDriver {
	case "memory":
		return NewMemoryArchive(), nil
	case "sqlite":
		if cfg.ArchiveDSN != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.ArchiveDSN), 0o750); err != nil {
				return nil, fmt.Errorf("store: create archive dir: %w", err)
			}
		}
		return OpenSQL(ctx, DialectSQLite, cfg.ArchiveDSN)
	case "postgres":
		return OpenSQL(ctx, DialectPostgres, cfg.ArchiveDSN)
	default:
		return nil, fmt.Errorf("store: unknown archive driver %q", cfg.ArchiveDriver)
	}
}

type bundleKey struct {
	session string
	digest  string
}

// MemoryArchive keeps bundles in process memory.
type MemoryArchive struct {
	mu      sync.RWMutex
	bundles map[bundleKey]auditlog.Bundle
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{bundles: make(map[bundleKey]auditlog.Bundle)}
}

func (m *MemoryArchive) Put(_ context.Context, b *auditlog.Bundle) (bool, error) {
	if err := auditlog.VerifyBundle(b); err != nil {
		return false, fmt.Errorf("store: refusing bundle: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := bundleKey{session: b.SessionID, digest: b.Digest}
	if _, ok := m.bundles[k]; ok {
		return false, nil
	}
	cp := *b
	cp.Log = append([]byte(nil), b.Log...)
	m.bundles[k] = cp
	return true, nil
}

func (m *MemoryArchive) Get(_ context.Context, digest string) (*auditlog.Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var (
		b     auditlog.Bundle
		found bool
	)
	for k, v := range m.bundles {
		if k.digest == digest && (!found || k.session < b.SessionID) {
			b, found = v, true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
	}
	b.Log = append([]byte(nil), b.Log...)
	return &b, nil
}

func (m *MemoryArchive) List(_ context.Context, limit int) ([]Summary, error) {
	m.mu.RLock()
	out := make([]Summary, 0, len(m.bundles))
	for _, b := range m.bundles {
		b := b
		out = append(out, summarize(&b))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionID != out[j].SessionID {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].Digest < out[j].Digest
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryArchive) Close() error { return nil }
