package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrFingerprintMismatch = errors.New("engine fingerprint does not match the pinned profile")

// EngineProfile pins a deployment to one engine build and names where its
// audit artifacts go.
type EngineProfile struct {
	Name                string        `yaml:"name" json:"name"`
	SessionPrefix       string        `yaml:"session_prefix" json:"session_prefix"`
	ExpectedVersion     string        `yaml:"expected_version,omitempty" json:"expected_version,omitempty"`
	ExpectedFingerprint string        `yaml:"expected_fingerprint,omitempty" json:"expected_fingerprint,omitempty"`
	Export              ExportProfile `yaml:"export" json:"export"`
}

// ExportProfile selects the sink for canonical exports.
type ExportProfile struct {
	Store  string `yaml:"store" json:"store"` // "fs" | "s3" | "gcs" | "none"
	Bucket string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// LoadProfile loads profile_<name>.yaml from profilesDir.
func LoadProfile(profilesDir, name string) (*EngineProfile, error) {
	name = strings.ToLower(name)
	return LoadProfileFile(filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", name)))
}

// LoadProfileFile loads a profile from an explicit path.
func LoadProfileFile(path string) (*EngineProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}

	var profile EngineProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	if profile.Name == "" {
		profile.Name = strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "profile_"), ".yaml")
	}
	if profile.Export.Store == "" {
		profile.Export.Store = "fs"
	}
	return &profile, nil
}

// CheckFingerprint fails closed when the profile pins a fingerprint or
// version that the running engine does not have. An unpinned profile
// accepts any engine.
func (p *EngineProfile) CheckFingerprint(version, fingerprint string) error {
	if p.ExpectedVersion != "" && p.ExpectedVersion != version {
		return fmt.Errorf("%w: profile %s expects version %s, engine is %s",
			ErrFingerprintMismatch, p.Name, p.ExpectedVersion, version)
	}
	if p.ExpectedFingerprint != "" && !strings.EqualFold(p.ExpectedFingerprint, fingerprint) {
		return fmt.Errorf("%w: profile %s expects %s, engine is %s",
			ErrFingerprintMismatch, p.Name, p.ExpectedFingerprint, fingerprint)
	}
	return nil
}

// SessionID prefixes a session name with the profile's prefix.
func (p *EngineProfile) SessionID(name string) string {
	if p.SessionPrefix == "" {
		return name
	}
	return p.SessionPrefix + "/" + name
}
