// Package store implements the append-only go-live decision log.
//
// Every record is hash chained to its predecessor. The SQL backends install
// triggers that reject UPDATE and DELETE on the log table and reject INSERT
// while a freeze is active, so immutability and freeze are properties of the
// database, not only of this package.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/golive/pkg/canonicalize"
)

var (
	ErrFrozen         = errors.New("store: decision log is frozen")
	ErrChainBroken    = errors.New("store: decision log chain is broken")
	ErrInvalidRecord  = errors.New("store: invalid decision record")
	ErrUnsupportedDSN = errors.New("store: unsupported dsn")
)

// GenesisHash is the PrevHash of the first record in a log.
const GenesisHash = "genesis"

// TimeLayout is how CreatedAt is stored and hashed.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Table names shared by both SQL dialects.
const (
	DecisionTable = "go_live_decision_log"
	FreezeTable   = "go_live_freeze"
)

// Result is the outcome recorded for a go-live decision.
type Result string

const (
	ResultGo   Result = "GO"
	ResultNoGo Result = "NO_GO"
)

// DecisionRecord is one immutable entry in the decision log.
type DecisionRecord struct {
	Sequence     int64     `json:"sequence"`
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	DecisionHash string    `json:"decision_hash"`
	ManifestSeal string    `json:"manifest_seal,omitempty"`
	BundleDigest string    `json:"bundle_digest,omitempty"`
	Result       Result    `json:"result"`
	PrevHash     string    `json:"prev_hash"`
	RecordHash   string    `json:"record_hash"`
}

// DecisionLog is an append-only, freezable log of go-live decisions.
type DecisionLog interface {
	// Append chains rec onto the log and returns it with Sequence, ID,
	// CreatedAt, PrevHash and RecordHash filled in.
	Append(ctx context.Context, rec DecisionRecord) (DecisionRecord, error)
	// List returns every record in sequence order.
	List(ctx context.Context) ([]DecisionRecord, error)
	// Immutable reports whether the log rejects updates and deletes.
	Immutable(ctx context.Context) (bool, error)
	// FreezeEnforced reports whether inserts are rejected while frozen.
	FreezeEnforced(ctx context.Context) (bool, error)
	FreezeActive(ctx context.Context) (bool, error)
	SetFreeze(ctx context.Context, active bool) error
	Close() error
}

// recordBody is the hashed part of a record.
type recordBody struct {
	Sequence     int64  `json:"sequence"`
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	DecisionHash string `json:"decision_hash"`
	ManifestSeal string `json:"manifest_seal"`
	BundleDigest string `json:"bundle_digest"`
	Result       Result `json:"result"`
	PrevHash     string `json:"prev_hash"`
}

// ComputeRecordHash returns the digest of the canonical form of rec,
// excluding RecordHash itself.
func ComputeRecordHash(rec DecisionRecord) (string, error) {
	return canonicalize.CanonicalHash(recordBody{
		Sequence:     rec.Sequence,
		ID:           rec.ID,
		CreatedAt:    rec.CreatedAt.UTC().Format(TimeLayout),
		DecisionHash: rec.DecisionHash,
		ManifestSeal: rec.ManifestSeal,
		BundleDigest: rec.BundleDigest,
		Result:       rec.Result,
		PrevHash:     rec.PrevHash,
	})
}

func validateRecord(rec DecisionRecord) error {
	if rec.DecisionHash == "" {
		return fmt.Errorf("%w: decision hash is required", ErrInvalidRecord)
	}
	switch rec.Result {
	case ResultGo, ResultNoGo:
	default:
		return fmt.Errorf("%w: result %q", ErrInvalidRecord, rec.Result)
	}
	return nil
}

// VerifyChain checks sequence numbering, back-links and record hashes.
func VerifyChain(records []DecisionRecord) error {
	prev := GenesisHash
	for i, rec := range records {
		if rec.Sequence != int64(i+1) {
			return fmt.Errorf("%w: record %d has sequence %d", ErrChainBroken, i+1, rec.Sequence)
		}
		if rec.PrevHash != prev {
			return fmt.Errorf("%w: record %d prev_hash mismatch", ErrChainBroken, rec.Sequence)
		}
		want, err := ComputeRecordHash(rec)
		if err != nil {
			return err
		}
		if rec.RecordHash != want {
			return fmt.Errorf("%w: record %d hash mismatch", ErrChainBroken, rec.Sequence)
		}
		prev = rec.RecordHash
	}
	return nil
}

// Verify lists the log and checks its chain.
func Verify(ctx context.Context, log DecisionLog) error {
	records, err := log.List(ctx)
	if err != nil {
		return err
	}
	return VerifyChain(records)
}
