package store

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealDaniG/QFS-sub007/pkg/auditlog"
	"github.com/RealDaniG/QFS-sub007/pkg/config"
)

var testFingerprint = strings.Repeat("f", 64)

func closedBundle(t *testing.T, session string, results ...string) *auditlog.Bundle {
	t.Helper()
	l := auditlog.New(session)
	for i, r := range results {
		_, err := l.Append(auditlog.Draft{
			Operation:         "add",
			Inputs:            map[string]string{"a": r, "b": "0.000000000000000000"},
			Outputs:           map[string]string{"result": r},
			Timestamp:         int64(i),
			SystemFingerprint: testFingerprint,
		})
		require.NoError(t, err)
	}
	require.NoError(t, l.Finalize())
	b, err := l.Bundle()
	require.NoError(t, err)
	return b
}

func exerciseArchive(t *testing.T, a Archive) {
	t.Helper()
	ctx := context.Background()
	b1 := closedBundle(t, "session-b", "1.000000000000000000")
	b2 := closedBundle(t, "session-a", "2.000000000000000000", "3.000000000000000000")

	inserted, err := a.Put(ctx, b1)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = a.Put(ctx, b1)
	require.NoError(t, err)
	assert.False(t, inserted, "same session and digest are stored once")

	_, err = a.Put(ctx, b2)
	require.NoError(t, err)

	got, err := a.Get(ctx, b2.Digest)
	require.NoError(t, err)
	assert.Equal(t, b2.SessionID, got.SessionID)
	assert.Equal(t, 2, got.EntryCount)
	assert.JSONEq(t, string(b2.Log), string(got.Log))
	assert.NoError(t, auditlog.VerifyBundle(got))

	_, err = a.Get(ctx, strings.Repeat("0", 64))
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := a.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "session-a", list[0].SessionID)
	assert.Equal(t, b1.Digest, list[1].Digest)

	list, err = a.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Same operations under another session: same digest, separate row.
	b1Twin := closedBundle(t, "session-0", "1.000000000000000000")
	require.Equal(t, b1.Digest, b1Twin.Digest)
	inserted, err = a.Put(ctx, b1Twin)
	require.NoError(t, err)
	assert.True(t, inserted, "a shared digest keeps every session")

	list, err = a.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "session-0", list[0].SessionID)
	assert.Equal(t, b1.Digest, list[0].Digest)
	assert.Equal(t, "session-b", list[2].SessionID)

	got, err = a.Get(ctx, b1.Digest)
	require.NoError(t, err)
	assert.Equal(t, "session-0", got.SessionID)

	tampered := *closedBundle(t, "session-c", "4.000000000000000000")
	tampered.EntryCount = 7
	_, err = a.Put(ctx, &tampered)
	assert.ErrorIs(t, err, auditlog.ErrBundleMismatch)
}

func TestMemoryArchive(t *testing.T) {
	a := NewMemoryArchive()
	defer func() { _ = a.Close() }()
	exerciseArchive(t, a)
}

func TestSQLiteArchive(t *testing.T) {
	a, err := OpenSQL(context.Background(), DialectSQLite, ":memory:")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	exerciseArchive(t, a)
}

func TestOpen_FromConfig(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := Open(ctx, &config.Config{ArchiveDriver: "sqlite", ArchiveDSN: dir + "/nested/archive.db"})
	require.NoError(t, err)
	_, err = a.Put(ctx, closedBundle(t, "s", "1.000000000000000000"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	m, err := Open(ctx, &config.Config{ArchiveDriver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryArchive{}, m)

	_, err = Open(ctx, &config.Config{ArchiveDriver: "mysql"})
	assert.Error(t, err)
}

func TestSQLArchive_PostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	a := NewSQLArchive(db, DialectPostgres)
	b := closedBundle(t, "pg", "1.000000000000000000")

	mock.ExpectExec(`VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)\s+ON CONFLICT \(session_id, digest\) DO NOTHING`).
		WithArgs(b.Digest, b.BundleID, b.SessionID, b.FormatVersion, b.SystemFingerprint, b.EntryCount, string(b.Log)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := a.Put(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, inserted)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY session_id, digest LIMIT $1")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"digest", "bundle_id", "session_id", "format_version", "system_fingerprint", "entry_count"}).
			AddRow(b.Digest, b.BundleID, b.SessionID, b.FormatVersion, b.SystemFingerprint, b.EntryCount))

	list, err := a.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.Digest, list[0].Digest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLArchive_GetRejectsCorruptRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	a := NewSQLArchive(db, DialectSQLite)
	b := closedBundle(t, "corrupt", "1.000000000000000000")
	forged := strings.Replace(string(b.Log), "1.000000000000000000", "9.000000000000000000", 1)

	mock.ExpectQuery("SELECT digest, bundle_id").
		WithArgs(b.Digest).
		WillReturnRows(sqlmock.NewRows([]string{"digest", "bundle_id", "session_id", "format_version", "system_fingerprint", "entry_count", "log"}).
			AddRow(b.Digest, b.BundleID, b.SessionID, b.FormatVersion, b.SystemFingerprint, b.EntryCount, forged))

	_, err = a.Get(context.Background(), b.Digest)
	assert.ErrorIs(t, err, auditlog.ErrChainBroken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLArchive_InsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	a := NewSQLArchive(db, DialectSQLite)
	mock.ExpectExec("INSERT INTO qfs_bundles").WillReturnError(sql.ErrConnDone)

	_, err = a.Put(context.Background(), closedBundle(t, "x", "1.000000000000000000"))
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
