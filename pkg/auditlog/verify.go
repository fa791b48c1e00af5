package auditlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/RealDaniG/QFS-sub007/pkg/canonicalize"
)

var (
	ErrChainBroken  = errors.New("hash chain is broken")
	ErrNonCanonical = errors.New("export is not in canonical form")
	ErrSchema       = errors.New("export does not match the audit log schema")
)

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func exportSchemaValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(ExportSchemaURL, strings.NewReader(exportSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(ExportSchemaURL)
	})
	return compiledSchema, schemaErr
}

// Verify checks an exported log end to end and returns its digest:
// canonical byte form, schema, per-entry hash recomputation, log_index
// sequence and prev_hash linkage.
func Verify(exported []byte) (string, error) {
	if !canonicalize.IsCanonical(exported) {
		return "", ErrNonCanonical
	}

	schema, err := exportSchemaValidator()
	if err != nil {
		return "", err
	}
	dec := json.NewDecoder(bytes.NewReader(exported))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSchema, err)
	}
	if err := schema.Validate(doc); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSchema, err)
	}

	var entries []Entry
	if err := json.Unmarshal(exported, &entries); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSchema, err)
	}
	if err := VerifyEntries(entries); err != nil {
		return "", err
	}
	return canonicalize.HashBytes(exported), nil
}

// VerifyEntries checks hashes, indices and links of an in-memory chain.
func VerifyEntries(entries []Entry) error {
	expectedPrev := ZeroHash
	for i, e := range entries {
		if e.LogIndex != i {
			return fmt.Errorf("%w: entry %d has log_index %d", ErrChainBroken, i, e.LogIndex)
		}
		if e.PrevHash != expectedPrev {
			return fmt.Errorf("%w: entry %d has prev_hash %s but expected %s",
				ErrChainBroken, i, e.PrevHash, expectedPrev)
		}
		computed, err := ComputeEntryHash(e)
		if err != nil {
			return fmt.Errorf("%w: entry %d hash computation failed: %w", ErrChainBroken, i, err)
		}
		if computed != e.EntryHash {
			return fmt.Errorf("%w: entry %d hash mismatch (computed %s, stored %s)",
				ErrChainBroken, i, computed, e.EntryHash)
		}
		expectedPrev = e.EntryHash
	}
	return nil
}
