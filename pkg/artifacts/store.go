// Package artifacts provides content-addressed sinks for canonical audit
// exports. Keys are "sha3-256:<hex>" over the stored bytes.
package artifacts

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/RealDaniG/QFS-sub007/pkg/canonicalize"
)

const keyPrefix = "sha3-256:"

var (
	ErrNotFound   = errors.New("artifact not found")
	ErrInvalidKey = errors.New("invalid artifact key")
	ErrCorrupt    = errors.New("artifact content does not match its key")
)

// Store is a content-addressed blob store.
type Store interface {
	// Put persists data and returns its key. Putting existing content is a no-op.
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Key returns the content key of data.
func Key(data []byte) string {
	return keyPrefix + canonicalize.HashBytes(data)
}

// parseKey validates key and returns its hex digest.
func parseKey(key string) (string, error) {
	raw, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if b, err := hex.DecodeString(raw); err != nil || len(b) != 32 || strings.ToLower(raw) != raw {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return raw, nil
}

// checkContent fails closed when a backend returns bytes that do not hash
// to the requested key.
func checkContent(key string, data []byte) ([]byte, error) {
	if Key(data) != key {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, key)
	}
	return data, nil
}

// FileStore is a filesystem-backed Store.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to ensure export dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(raw string) string {
	return filepath.Join(s.baseDir, raw+".json")
}

func (s *FileStore) Put(_ context.Context, data []byte) (string, error) {
	key := Key(data)
	raw, _ := parseKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(raw)
	if _, err := os.Stat(path); err == nil {
		return key, nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to commit export: %w", err)
	}
	return key, nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	raw, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(raw))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return checkContent(key, data)
}

func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	raw, err := parseKey(key)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(s.path(raw))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	raw, err := parseKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(raw)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete export: %w", err)
	}
	return nil
}
