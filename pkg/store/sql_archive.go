package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/RealDaniG/QFS-sub007/pkg/auditlog"
)

// Dialect selects placeholder style and driver name.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const bundleSchema = `
CREATE TABLE IF NOT EXISTS qfs_bundles (
	session_id TEXT NOT NULL,
	digest TEXT NOT NULL,
	bundle_id TEXT NOT NULL,
	format_version TEXT NOT NULL,
	system_fingerprint TEXT NOT NULL,
	entry_count INTEGER NOT NULL,
	log TEXT NOT NULL,
	PRIMARY KEY (session_id, digest)
);
CREATE INDEX IF NOT EXISTS qfs_bundles_digest ON qfs_bundles (digest);
`

const bundleColumns = `digest, bundle_id, session_id, format_version, system_fingerprint, entry_count`

// SQLArchive implements Archive on database/sql for SQLite and Postgres.
type SQLArchive struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLArchive wraps an open database. Call Init before use.
func NewSQLArchive(db *sql.DB, dialect Dialect) *SQLArchive {
	return &SQLArchive{db: db, dialect: dialect}
}

// OpenSQL opens dsn with the dialect's driver and creates the schema.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLArchive, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: empty %s dsn", dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// One writer; also keeps ":memory:" on a single database.
		db.SetMaxOpenConns(1)
	}
	a := NewSQLArchive(db, dialect)
	if err := a.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *SQLArchive) Init(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, bundleSchema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (a *SQLArchive) rebind(query string) string {
	if a.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (a *SQLArchive) Put(ctx context.Context, b *auditlog.Bundle) (bool, error) {
	if err := auditlog.VerifyBundle(b); err != nil {
		return false, fmt.Errorf("store: refusing bundle: %w", err)
	}
	query := a.rebind(`INSERT INTO qfs_bundles (` + bundleColumns + `, log)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, digest) DO NOTHING`)

	res, err := a.db.ExecContext(ctx, query,
		b.Digest, b.BundleID, b.SessionID, b.FormatVersion, b.SystemFingerprint, b.EntryCount, string(b.Log),
	)
	if err != nil {
		return false, fmt.Errorf("store: insert bundle %s: %w", b.Digest, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: rows affected: %w", err)
	}
	return n > 0, nil
}

// Get loads and re-verifies a bundle. A row that no longer verifies is
// reported as an error rather than returned.
func (a *SQLArchive) Get(ctx context.Context, digest string) (*auditlog.Bundle, error) {
	query := a.rebind(`SELECT ` + bundleColumns + `, log FROM qfs_bundles WHERE digest = ? ORDER BY session_id LIMIT 1`)
	var (
		b   auditlog.Bundle
		log string
	)
	err := a.db.QueryRowContext(ctx, query, digest).Scan(
		&b.Digest, &b.BundleID, &b.SessionID, &b.FormatVersion, &b.SystemFingerprint, &b.EntryCount, &log,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
		}
		return nil, err
	}
	b.Log = json.RawMessage(log)
	if err := auditlog.VerifyBundle(&b); err != nil {
		return nil, fmt.Errorf("store: archived bundle %s is corrupt: %w", digest, err)
	}
	return &b, nil
}

func (a *SQLArchive) List(ctx context.Context, limit int) ([]Summary, error) {
	query := `SELECT ` + bundleColumns + ` FROM qfs_bundles ORDER BY session_id, digest`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := a.db.QueryContext(ctx, a.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]Summary, 0)
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.Digest, &s.BundleID, &s.SessionID, &s.FormatVersion, &s.SystemFingerprint, &s.EntryCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *SQLArchive) Close() error {
	return a.db.Close()
}
