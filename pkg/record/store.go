package record

import (
	"fmt"
	"slices"
	"sync"
)

// Option configures a Store.
type Option func(*Store)

// WithMultiset makes the store keep physically distinct records that are equal by
// value as separate occurrences. By default equal records collapse into one.
func WithMultiset() Option {
	return func(s *Store) {
		s.multiset = true
	}
}

// kindBuckets holds one block's records split by kind, in insertion order.
type kindBuckets [kindCount][]Record

// Store owns every record of an analysis session, indexed by block hash then kind.
//
// The store is append-only. Writes must not run concurrently with anything else;
// once loading is done any number of goroutines may read.
type Store struct {
	index    map[string]*kindBuckets
	seen     map[recordKey]int // value -> occurrences.
	all      []Record          // insertion order.
	multiset bool

	mu     sync.Mutex
	sorted []Record // chronological view, nil when stale.
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		index: make(map[string]*kindBuckets),
		seen:  make(map[recordKey]int),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Multiset reports whether duplicate-by-value records are retained.
func (s *Store) Multiset() bool {
	return s.multiset
}

// Add validates and inserts a record into both index levels.
// A record equal to one already stored is a no-op unless the store is a multiset.
func (s *Store) Add(r Record) error {
	err := r.Validate()
	if err != nil {
		return fmt.Errorf("add record %s: %w", r, err)
	}

	key := r.key()
	if s.seen[key] > 0 && !s.multiset {
		return nil
	}

	s.seen[key]++

	buckets, ok := s.index[r.BlockHash]
	if !ok {
		buckets = &kindBuckets{}
		s.index[r.BlockHash] = buckets
	}

	buckets[r.Kind.index()] = append(buckets[r.Kind.index()], r)
	s.all = append(s.all, r)

	s.mu.Lock()
	s.sorted = nil
	s.mu.Unlock()

	return nil
}

// AddAll inserts records in order, stopping at the first invalid one.
func (s *Store) AddAll(records []Record) error {
	for i, r := range records {
		err := s.Add(r)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	return nil
}

// Get returns the records of the given block and kind in insertion order.
// Unknown hashes and kinds yield an empty result.
func (s *Store) Get(blockHash string, kind Kind) []Record {
	if !kind.Valid() {
		return nil
	}

	buckets, ok := s.index[blockHash]
	if !ok {
		return nil
	}

	return slices.Clone(buckets[kind.index()])
}

// Count returns len(Get(blockHash, kind)) without copying.
func (s *Store) Count(blockHash string, kind Kind) int {
	if !kind.Valid() {
		return 0
	}

	buckets, ok := s.index[blockHash]
	if !ok {
		return 0
	}

	return len(buckets[kind.index()])
}

// Hashes returns every block hash with at least one record, sorted.
func (s *Store) Hashes() []string {
	hashes := make([]string, 0, len(s.index))

	for h := range s.index {
		hashes = append(hashes, h)
	}

	slices.Sort(hashes)

	return hashes
}

// Contains reports whether a record equal by value to r is stored.
func (s *Store) Contains(r Record) bool {
	return s.seen[r.key()] > 0
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	return len(s.all)
}

// Chronological returns every record sorted ascending by timestamp.
// Records with equal timestamps keep their insertion order.
// The returned slice is shared and must not be modified.
func (s *Store) Chronological() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sorted == nil {
		sorted := slices.Clone(s.all)
		slices.SortStableFunc(sorted, func(a, b Record) int {
			return a.Timestamp.Compare(b.Timestamp)
		})

		s.sorted = sorted
	}

	return s.sorted
}

// CountByKind returns the number of stored records of each kind.
func (s *Store) CountByKind() map[Kind]int {
	counts := make(map[Kind]int, kindCount)

	for _, k := range Kinds {
		counts[k] = 0
	}

	for _, r := range s.all {
		counts[r.Kind]++
	}

	return counts
}
