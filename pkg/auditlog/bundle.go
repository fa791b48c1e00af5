package auditlog

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/RealDaniG/QFS-sub007/pkg/canonicalize"
)

// BundleFormatVersion is written into every new bundle.
const BundleFormatVersion = "1.0.0"

// bundleCompat accepts any 1.x bundle.
const bundleCompat = "^1"

var ErrBundleMismatch = errors.New("bundle envelope does not match its log")

var bundleNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("qfs.certmath.auditlog.bundle"))

// Bundle is the archival envelope of one closed LogContext. Log holds the
// canonical export bytes verbatim.
type Bundle struct {
	FormatVersion     string          `json:"format_version"`
	BundleID          string          `json:"bundle_id"`
	SessionID         string          `json:"session_id"`
	SystemFingerprint string          `json:"system_fingerprint"`
	EntryCount        int             `json:"entry_count"`
	Digest            string          `json:"digest"`
	Log               json.RawMessage `json:"log"`
}

// BundleID derives the bundle identifier from a log digest.
func BundleID(digest string) string {
	return uuid.NewSHA1(bundleNamespace, []byte(digest)).String()
}

// Bundle wraps the closed log in an archival envelope.
func (l *LogContext) Bundle() (*Bundle, error) {
	export, err := l.Export()
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	fingerprint := ""
	if len(l.entries) > 0 {
		fingerprint = l.entries[0].SystemFingerprint
	}
	return &Bundle{
		FormatVersion:     BundleFormatVersion,
		BundleID:          BundleID(l.digest),
		SessionID:         l.sessionID,
		SystemFingerprint: fingerprint,
		EntryCount:        len(l.entries),
		Digest:            l.digest,
		Log:               export,
	}, nil
}

// Encode returns the canonical JSON form of b.
func (b *Bundle) Encode() ([]byte, error) {
	return canonicalize.JCS(b)
}

// DecodeBundle parses an encoded bundle. It does not verify it.
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &b, nil
}

// VerifyBundle checks the format version, the embedded log (see Verify) and
// every envelope field derived from it.
func VerifyBundle(b *Bundle) error {
	if b == nil {
		return fmt.Errorf("%w: nil bundle", ErrBundleMismatch)
	}
	v, err := semver.NewVersion(b.FormatVersion)
	if err != nil {
		return fmt.Errorf("bundle format version %q: %w", b.FormatVersion, err)
	}
	c, err := semver.NewConstraint(bundleCompat)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: unsupported format version %s", ErrBundleMismatch, b.FormatVersion)
	}

	digest, err := Verify(b.Log)
	if err != nil {
		return fmt.Errorf("bundle %s: %w", b.BundleID, err)
	}
	if digest != b.Digest {
		return fmt.Errorf("%w: digest %s, log hashes to %s", ErrBundleMismatch, b.Digest, digest)
	}
	if b.BundleID != BundleID(digest) {
		return fmt.Errorf("%w: bundle_id %s", ErrBundleMismatch, b.BundleID)
	}

	var entries []Entry
	if err := json.Unmarshal(b.Log, &entries); err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}
	if len(entries) != b.EntryCount {
		return fmt.Errorf("%w: entry_count %d, log has %d", ErrBundleMismatch, b.EntryCount, len(entries))
	}
	for _, e := range entries {
		if e.SystemFingerprint != b.SystemFingerprint {
			return fmt.Errorf("%w: entry %d fingerprint %s differs from bundle", ErrBundleMismatch, e.LogIndex, e.SystemFingerprint)
		}
	}
	return nil
}
