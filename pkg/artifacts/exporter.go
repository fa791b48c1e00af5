package artifacts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RealDaniG/QFS-sub007/pkg/auditlog"
)

// Exporter writes verified bundles to a Store and reads them back.
type Exporter struct {
	store  Store
	logger *slog.Logger
}

func NewExporter(store Store, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: store, logger: logger.With("component", "exporter")}
}

// Export verifies b and stores its canonical encoding. The returned key is
// stable for a given bundle.
func (e *Exporter) Export(ctx context.Context, b *auditlog.Bundle) (string, error) {
	if err := auditlog.VerifyBundle(b); err != nil {
		return "", fmt.Errorf("export refused (fail-closed): %w", err)
	}
	data, err := b.Encode()
	if err != nil {
		return "", fmt.Errorf("export encode: %w", err)
	}
	key, err := e.store.Put(ctx, data)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", b.Digest, err)
	}
	e.logger.InfoContext(ctx, "bundle exported",
		"session", b.SessionID, "digest", b.Digest, "key", key, "entries", b.EntryCount)
	return key, nil
}

// Import loads and verifies the bundle stored under key.
func (e *Exporter) Import(ctx context.Context, key string) (*auditlog.Bundle, error) {
	data, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	b, err := auditlog.DecodeBundle(data)
	if err != nil {
		return nil, err
	}
	if err := auditlog.VerifyBundle(b); err != nil {
		return nil, fmt.Errorf("import %s: %w", key, err)
	}
	return b, nil
}
