// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization and the SHA3-256 digests computed over it.
package canonicalize

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/sha3"
)

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// v is first marshaled with encoding/json so struct tags apply, then
// re-serialized canonically: keys sorted by UTF-16 code units, no
// insignificant whitespace, no HTML escaping, ES6 number formatting.
func JCS(v any) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}
	return Transform(intermediate)
}

// Transform canonicalizes already-encoded JSON.
func Transform(data []byte) ([]byte, error) {
	out, err := jcs.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return out, nil
}

// JCSString returns the JCS canonical form as a string
func JCSString(v any) (string, error) {
	data, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Hash returns the SHA3-256 hex digest of the canonical JSON form of v.
func Hash(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA3-256 hash of raw bytes as lowercase hex.
func HashBytes(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsCanonical reports whether data is byte-identical to its own canonical
// form.
func IsCanonical(data []byte) bool {
	out, err := jcs.Transform(data)
	return err == nil && bytes.Equal(out, data)
}
