package decode

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/record"
)

// constructor builds a record from decoded wire fields.
type constructor func(hash string, ts time.Time, size int64) record.Record

func newMiss(hash string, ts time.Time, size int64) record.Record {
	return record.NewMiss(hash, ts, size)
}

// Hits and deletes carry no payload; a size on the wire is dropped.
func newHit(hash string, ts time.Time, _ int64) record.Record {
	return record.NewHit(hash, ts)
}

func newDelete(hash string, ts time.Time, _ int64) record.Record {
	return record.NewDelete(hash, ts)
}

// constructors maps wire type names to record constructors. Producers write
// put/get/delete; the canonical kind names are accepted as well.
var constructors = map[string]constructor{
	"put":    newMiss,
	"miss":   newMiss,
	"get":    newHit,
	"hit":    newHit,
	"delete": newDelete,
}

// WireTypes returns the accepted wire type names for a kind.
func WireTypes(kind record.Kind) []string {
	switch kind {
	case record.KindMiss:
		return []string{"put", "miss"}
	case record.KindHit:
		return []string{"get", "hit"}
	case record.KindDelete:
		return []string{"delete"}
	default:
		return nil
	}
}

func lookupConstructor(wireType string) (constructor, error) {
	ctor, ok := constructors[strings.ToLower(wireType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", record.ErrUnknownKind, wireType)
	}

	return ctor, nil
}

// timestampLayouts are tried in order. Zone-less timestamps are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp with or without a zone offset.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, value)
		if err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
}
