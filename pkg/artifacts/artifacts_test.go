package artifacts

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealDaniG/QFS-sub007/pkg/auditlog"
	"github.com/RealDaniG/QFS-sub007/pkg/config"
)

func TestKey(t *testing.T) {
	k := Key(nil)
	assert.Equal(t, "sha3-256:a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a", k)

	raw, err := parseKey(k)
	require.NoError(t, err)
	assert.Len(t, raw, 64)

	for _, bad := range []string{"", "sha256:" + raw, "sha3-256:xyz", "sha3-256:" + strings.ToUpper(raw), "sha3-256:" + raw[:62]} {
		_, err := parseKey(bad)
		assert.ErrorIs(t, err, ErrInvalidKey, bad)
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	data := []byte(`[{"log_index":0}]`)

	key, err := s.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, Key(data), key)

	again, err := s.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, s.Delete(ctx, key))
	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, "sha256:abc")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "exports"))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStore_DetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	key, err := s.Put(context.Background(), []byte("original"))
	require.NoError(t, err)
	raw, _ := parseKey(key)
	require.NoError(t, os.WriteFile(filepath.Join(dir, raw+".json"), []byte("tampered"), 0o600))

	_, err = s.Get(context.Background(), key)
	assert.ErrorIs(t, err, ErrCorrupt)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	fake := newFakeS3()
	s := newS3Store(fake, "bucket", "qfs/")
	exerciseStore(t, s)
	assert.Equal(t, 1, fake.puts, "second Put of the same content skips the upload")

	key, err := s.Put(context.Background(), []byte("x"))
	require.NoError(t, err)
	raw, _ := parseKey(key)
	assert.Contains(t, fake.objects, "qfs/"+raw+".json")
}

func testBundle(t *testing.T) *auditlog.Bundle {
	t.Helper()
	l := auditlog.New("export-test")
	_, err := l.Append(auditlog.Draft{
		Operation:         "mul",
		Inputs:            map[string]string{"a": "2.000000000000000000", "b": "3.000000000000000000"},
		Outputs:           map[string]string{"result": "6.000000000000000000"},
		SystemFingerprint: strings.Repeat("e", 64),
	})
	require.NoError(t, err)
	require.NoError(t, l.Finalize())
	b, err := l.Bundle()
	require.NoError(t, err)
	return b
}

func TestExporter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	e := NewExporter(s, nil)

	b := testBundle(t)
	key, err := e.Export(ctx, b)
	require.NoError(t, err)

	again, err := e.Export(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	got, err := e.Import(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, b.Digest, got.Digest)
	assert.Equal(t, b.BundleID, got.BundleID)
	assert.JSONEq(t, string(b.Log), string(got.Log))
}

func TestExporter_RefusesUnverifiedBundle(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	e := NewExporter(s, nil)

	b := testBundle(t)
	b.Digest = strings.Repeat("0", 64)
	_, err = e.Export(context.Background(), b)
	assert.ErrorIs(t, err, auditlog.ErrBundleMismatch)

	key, err := s.Put(context.Background(), []byte(`{"format_version":"2.0.0"}`))
	require.NoError(t, err)
	_, err = e.Import(context.Background(), key)
	assert.ErrorIs(t, err, auditlog.ErrBundleMismatch)
}

func TestNewStoreFromConfig(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewStoreFromConfig(ctx, &config.Config{ExportStore: "fs", DataDir: dir})
	require.NoError(t, err)
	fs, ok := s.(*FileStore)
	require.True(t, ok, "got %T", s)
	assert.Equal(t, filepath.Join(dir, "exports"), fs.baseDir)

	s, err = NewStoreFromConfig(ctx, &config.Config{ExportStore: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = NewStoreFromConfig(ctx, &config.Config{ExportStore: "s3"})
	assert.ErrorContains(t, err, "QFS_S3_BUCKET")

	_, err = NewStoreFromConfig(ctx, &config.Config{ExportStore: "tape"})
	assert.Error(t, err)
}
