// Package record models timestamped cache events (miss, hit, delete) keyed by
// content-addressed block hashes and indexes them for chronological replay.
package record

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel validation errors.
var (
	ErrUnknownKind = errors.New("unknown record kind")
	ErrEmptyHash   = errors.New("record block hash is empty")
	ErrInvalidSize = errors.New("invalid record size")
)

// Kind is the closed set of cache event kinds.
type Kind uint8

// Record kinds. The zero value is invalid so that an unset kind is caught by Validate.
const (
	KindMiss Kind = iota + 1
	KindHit
	KindDelete
)

// kindCount is the number of valid kinds, used to size per-kind tables.
const kindCount = 3

// Kinds lists every valid kind in declaration order.
var Kinds = [kindCount]Kind{KindMiss, KindHit, KindDelete}

// String returns the canonical wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindMiss:
		return "miss"
	case KindHit:
		return "hit"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindMiss && k <= KindDelete
}

// index maps a valid kind onto [0, kindCount).
func (k Kind) index() int {
	return int(k) - 1
}

// ParseKind parses a canonical kind name (case-insensitive).
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "miss":
		return KindMiss, nil
	case "hit":
		return KindHit, nil
	case "delete":
		return KindDelete, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// Record is an immutable cache event. Size is only meaningful for KindMiss.
type Record struct {
	Timestamp time.Time
	BlockHash string
	Size      int64
	Kind      Kind
}

// NewMiss creates a record of a block being loaded into the cache.
func NewMiss(blockHash string, ts time.Time, size int64) Record {
	return Record{Kind: KindMiss, BlockHash: blockHash, Timestamp: ts, Size: size}
}

// NewHit creates a record of a block being served from the cache.
func NewHit(blockHash string, ts time.Time) Record {
	return Record{Kind: KindHit, BlockHash: blockHash, Timestamp: ts}
}

// NewDelete creates a record of a block being removed from the cache.
func NewDelete(blockHash string, ts time.Time) Record {
	return Record{Kind: KindDelete, BlockHash: blockHash, Timestamp: ts}
}

// Validate checks that the record is well formed.
func (r Record) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, uint8(r.Kind))
	}

	if r.BlockHash == "" {
		return ErrEmptyHash
	}

	if r.Size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrInvalidSize, r.Size)
	}

	if r.Kind != KindMiss && r.Size != 0 {
		return fmt.Errorf("%w: %s record carries size %d", ErrInvalidSize, r.Kind, r.Size)
	}

	return nil
}

// Equal reports whether two records are indistinguishable by value.
// Timestamps compare as instants, ignoring location and monotonic readings.
func (r Record) Equal(other Record) bool {
	return r.key() == other.key()
}

// String renders the record for diagnostics.
func (r Record) String() string {
	if r.Kind == KindMiss {
		return fmt.Sprintf("%s(%s@%s, %dB)", r.Kind, r.BlockHash, r.Timestamp.Format(time.RFC3339Nano), r.Size)
	}

	return fmt.Sprintf("%s(%s@%s)", r.Kind, r.BlockHash, r.Timestamp.Format(time.RFC3339Nano))
}

// recordKey is the comparable value identity of a record.
type recordKey struct {
	ts   time.Time
	hash string
	size int64
	kind Kind
}

func (r Record) key() recordKey {
	return recordKey{
		ts:   r.Timestamp.Round(0).UTC(),
		hash: r.BlockHash,
		size: r.Size,
		kind: r.Kind,
	}
}
