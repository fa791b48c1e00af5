// Package certmath is the public face of the certified fixed-point engine.
//
// Every function takes the caller's *auditlog.LogContext as its first
// argument and appends exactly one audit entry before returning, whether the
// call succeeds or fails. A nil log is rejected with MissingAuditContextError
// and nothing is computed.
//
//	log, err := auditlog.Scope("settlement-42", func(log *auditlog.LogContext) error {
//		x, err := certmath.FromString(log, "2")
//		if err != nil {
//			return err
//		}
//		_, err = certmath.Sqrt(log, x)
//		return err
//	})
//
// The arithmetic itself lives in an internal kernel that never sees the log.
package certmath

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/RealDaniG/QFS-sub007/pkg/auditlog"
	"github.com/RealDaniG/QFS-sub007/pkg/canonicalize"
	"github.com/RealDaniG/QFS-sub007/pkg/certmath/internal/kernel"
	"github.com/RealDaniG/QFS-sub007/pkg/matherr"
)

// FixedPoint128 is an unsigned fixed-point number with 18 decimal places,
// stored in 128 bits. Its String method is the canonical form.
type FixedPoint128 = kernel.Value

var (
	Zero     = kernel.Zero
	One      = kernel.One
	MinUnit  = kernel.MinUnit
	MaxValue = kernel.Max
)

// Bounds of the transcendental routines.
const (
	Decimals          = kernel.Decimals
	SqrtMaxIterations = kernel.SqrtMaxIterations
	ExpTerms          = kernel.ExpTerms
	ExpLimit          = kernel.ExpLimit
	LnTerms           = kernel.LnTerms
	PhiTerms          = kernel.PhiTerms
	EngineVersion     = kernel.EngineVersion
)

// SystemFingerprint is the SHA3-256 of the canonical engine profile. It is
// recorded in every audit entry and identical on every platform.
var SystemFingerprint = func() string {
	h, err := canonicalize.Hash(kernel.Profile())
	if err != nil {
		panic(fmt.Sprintf("certmath: engine profile is not canonicalizable: %v", err))
	}
	return h
}()

// Profile returns the engine constant table behind SystemFingerprint.
func Profile() map[string]any {
	return kernel.Profile()
}

// CallOption attaches optional audit fields to one call.
type CallOption func(*callConfig)

type callConfig struct {
	pqcCID    *string
	metadata  map[string]any
	timestamp int64
}

// WithPQCCID records the post-quantum attestation ID covering this call.
func WithPQCCID(cid string) CallOption {
	return func(c *callConfig) { c.pqcCID = &cid }
}

// WithMetadata attaches quantum metadata. Only allow-listed keys survive;
// see auditlog.FilterMetadata.
func WithMetadata(md map[string]any) CallOption {
	return func(c *callConfig) { c.metadata = md }
}

// WithTimestamp records a caller-supplied logical timestamp. It must lie
// within ±(2^53-1); the engine never reads a clock.
func WithTimestamp(ts int64) CallOption {
	return func(c *callConfig) { c.timestamp = ts }
}

// call runs compute and records its outcome in log. A failed append
// withholds the result: an unaudited value never reaches the caller.
func call[T any](log *auditlog.LogContext, op string, inputs map[string]string, opts []CallOption,
	compute func() (T, error), render func(T) string) (T, error) {
	var zero T
	if log == nil {
		e := matherr.New(matherr.KindMissingAuditContext, "nil log context (fail-closed)")
		e.Op = op
		e.Operands = inputs
		return zero, e
	}

	cfg := callConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	d := auditlog.Draft{
		Operation:         op,
		Inputs:            inputs,
		PQCCID:            cfg.pqcCID,
		Metadata:          cfg.metadata,
		Timestamp:         cfg.timestamp,
		SystemFingerprint: SystemFingerprint,
	}

	var (
		result T
		err    error
	)
	if auditlog.ValidTimestamp(cfg.timestamp) {
		result, err = compute()
	} else {
		err = matherr.Newf(matherr.KindDomain, "timestamp %d outside the exactly representable range", cfg.timestamp)
		withTS := make(map[string]string, len(inputs)+1)
		for k, v := range inputs {
			withTS[k] = v
		}
		withTS["timestamp"] = strconv.FormatInt(cfg.timestamp, 10)
		d.Inputs = withTS
		d.Timestamp = 0
	}

	if err != nil {
		return zero, recordFailure(log, d, op, inputs, err)
	}

	d.Outputs = map[string]string{"result": render(result)}
	if _, aerr := log.Append(d); aerr != nil {
		return zero, fmt.Errorf("certmath: %s: audit append failed (fail-closed): %w", op, aerr)
	}
	return result, nil
}

func recordFailure(log *auditlog.LogContext, d auditlog.Draft, op string, inputs map[string]string, err error) error {
	me, ok := matherr.As(err)
	if !ok {
		me = matherr.New(matherr.KindDomain, err.Error())
	}
	me.Op = op
	me.Operands = inputs

	d.Outputs = map[string]string{"error": string(me.Kind)}
	entry, aerr := log.Append(d)
	if aerr != nil {
		return errors.Join(me, fmt.Errorf("certmath: %s: audit append failed (fail-closed): %w", op, aerr))
	}
	me.LogIndex = entry.LogIndex
	if digest, derr := log.ProvisionalDigest(); derr == nil {
		me.Digest = digest
	}
	return me
}

func renderValue(v FixedPoint128) string { return v.String() }

func renderBool(b bool) string { return strconv.FormatBool(b) }

func renderString(s string) string { return s }
