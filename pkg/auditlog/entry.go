// Package auditlog implements the per-session audit chain of the certified
// arithmetic engine.
//
// A LogContext collects one Entry per arithmetic call. Each entry is hashed
// over its canonical (RFC 8785) form when appended; at finalization the
// entries are linked through prev_hash and the whole log is exported as one
// canonical JSON array whose SHA3-256 is the session digest.
package auditlog

import (
	"fmt"
	"strings"

	"github.com/RealDaniG/QFS-sub007/pkg/canonicalize"
)

// ZeroHash is the prev_hash of the first entry in every chain.
var ZeroHash = strings.Repeat("0", 64)

// MaxTimestamp bounds the caller-supplied logical timestamp. Canonical JSON
// numbers are IEEE doubles, so larger magnitudes would not survive export.
const MaxTimestamp int64 = 1<<53 - 1

// ValidTimestamp reports whether t can be recorded exactly.
func ValidTimestamp(t int64) bool {
	return t >= -MaxTimestamp && t <= MaxTimestamp
}

// Entry is one immutable record in the chain. All maps are non-nil; all
// numeric payloads are canonical decimal strings.
type Entry struct {
	LogIndex          int               `json:"log_index"`
	Operation         string            `json:"operation"`
	Inputs            map[string]string `json:"inputs"`
	Outputs           map[string]string `json:"outputs"`
	PQCCID            *string           `json:"pqc_cid"`
	QuantumMetadata   map[string]string `json:"quantum_metadata"`
	Timestamp         int64             `json:"timestamp"`
	EntryHash         string            `json:"entry_hash"`
	PrevHash          string            `json:"prev_hash"`
	SystemFingerprint string            `json:"system_fingerprint"`
}

// Draft is what a caller hands to Append. Metadata is unfiltered; Append
// applies FilterMetadata.
type Draft struct {
	Operation         string
	Inputs            map[string]string
	Outputs           map[string]string
	PQCCID            *string
	Metadata          map[string]any
	Timestamp         int64
	SystemFingerprint string
}

// hashBody is the hashed view of an entry: everything except the two hash
// fields.
type hashBody struct {
	LogIndex          int               `json:"log_index"`
	Operation         string            `json:"operation"`
	Inputs            map[string]string `json:"inputs"`
	Outputs           map[string]string `json:"outputs"`
	PQCCID            *string           `json:"pqc_cid"`
	QuantumMetadata   map[string]string `json:"quantum_metadata"`
	Timestamp         int64             `json:"timestamp"`
	SystemFingerprint string            `json:"system_fingerprint"`
}

// ComputeEntryHash returns SHA3-256 over the canonical form of e without its
// entry_hash and prev_hash fields.
func ComputeEntryHash(e Entry) (string, error) {
	h, err := canonicalize.Hash(hashBody{
		LogIndex:          e.LogIndex,
		Operation:         e.Operation,
		Inputs:            nonNil(e.Inputs),
		Outputs:           nonNil(e.Outputs),
		PQCCID:            e.PQCCID,
		QuantumMetadata:   nonNil(e.QuantumMetadata),
		Timestamp:         e.Timestamp,
		SystemFingerprint: e.SystemFingerprint,
	})
	if err != nil {
		return "", fmt.Errorf("failed to hash entry %d: %w", e.LogIndex, err)
	}
	return h, nil
}

func (e Entry) clone() Entry {
	out := e
	out.Inputs = copyMap(e.Inputs)
	out.Outputs = copyMap(e.Outputs)
	out.QuantumMetadata = copyMap(e.QuantumMetadata)
	if e.PQCCID != nil {
		cid := *e.PQCCID
		out.PQCCID = &cid
	}
	return out
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
