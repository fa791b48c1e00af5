package auditlog

import (
	"encoding/json"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Metadata keys retained in quantum_metadata. Anything else is dropped.
const (
	MetaQuantumSeed       = "quantum_seed"
	MetaVDFOutputHash     = "vdf_output_hash"
	MetaEntanglementIndex = "entanglement_index"
	MetaQuantumSourceID   = "quantum_source_id"
	MetaQuantumEntropy    = "quantum_entropy"
)

var allowedMetadataKeys = map[string]struct{}{
	MetaQuantumSeed:       {},
	MetaVDFOutputHash:     {},
	MetaEntanglementIndex: {},
	MetaQuantumSourceID:   {},
	MetaQuantumEntropy:    {},
}

// IsAllowedMetadataKey reports whether key survives FilterMetadata.
func IsAllowedMetadataKey(key string) bool {
	_, ok := allowedMetadataKeys[key]
	return ok
}

// FilterMetadata returns the allow-listed subset of md with every value
// reduced to a string. Strings are NFC-normalized. Booleans and integers
// are formatted in base 10, json.Number is kept only when it is an integer
// literal. Floating-point values, Stringers and any other kinds are
// dropped; pass a fixed-point value as its canonical string. The result is
// never nil.
func FilterMetadata(md map[string]any) map[string]string {
	out := make(map[string]string)
	for k, v := range md {
		if !IsAllowedMetadataKey(k) {
			continue
		}
		if s, ok := metadataString(v); ok {
			out[k] = s
		}
	}
	return out
}

func metadataString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return nfc(t)
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.FormatInt(int64(t), 10), true
	case int8:
		return strconv.FormatInt(int64(t), 10), true
	case int16:
		return strconv.FormatInt(int64(t), 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint8:
		return strconv.FormatUint(uint64(t), 10), true
	case uint16:
		return strconv.FormatUint(uint64(t), 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case json.Number:
		if !isIntegerLiteral(string(t)) {
			return "", false
		}
		return string(t), true
	}
	return "", false
}

func nfc(s string) (string, bool) {
	if !utf8.ValidString(s) {
		return "", false
	}
	return norm.NFC.String(s), true
}

func isIntegerLiteral(s string) bool {
	if len(s) > 0 && s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
