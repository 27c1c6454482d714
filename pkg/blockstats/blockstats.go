// Package blockstats derives per-block cache statistics by replaying the full
// event log in chronological order.
//
// Each block is modelled as a two-state machine, NOT_LOADED (initial) and LOADED:
//
//   - Miss: enters LOADED and opens a new hit bucket. A Miss while already LOADED
//     is a reload and still opens a new bucket.
//   - Delete: returns to NOT_LOADED. The current bucket is closed, not discarded.
//   - Hit: while LOADED, counts towards the most recent bucket. While NOT_LOADED
//     it is an orphan access and is ignored.
//
// Replay always walks every block's events, because the reload interval metric
// counts other blocks' misses that happen while the block is absent.
//
// Statistics whose preconditions are unmet return a not applicable [Value]
// rather than zero, NaN or an error.
package blockstats

import (
	"time"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/alg/stats"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/record"
)

// minMissesForReload is the number of loads needed before a reload can be observed.
const minMissesForReload = 2

// Statistics computes block metrics from a record store. It owns no data.
type Statistics struct {
	store *record.Store
}

// New creates statistics over store.
func New(store *record.Store) *Statistics {
	return &Statistics{store: store}
}

// Interval is one period during which a block was present in the cache.
// Open intervals have no observed end; End is then the zero time.
type Interval struct {
	Start time.Time `json:"start"         yaml:"start"`
	End   time.Time `json:"end,omitzero"  yaml:"end,omitempty"`
	Open  bool      `json:"open"          yaml:"open"`
}

// Replay is the outcome of replaying the whole log for one block.
type Replay struct {
	// Buckets holds the hits counted during each load, one per Miss.
	Buckets []int
	// Counters holds, for each Delete, the other blocks' misses seen while the
	// block stayed absent.
	Counters []int
	// Residency is the block's presence timeline.
	Residency []Interval
	// OrphanHits counts hits observed while the block was not loaded.
	OrphanHits int
	// Deletes counts the block's Delete events.
	Deletes int
}

// MeanHits is the mean of Buckets. Not applicable when the block was never loaded.
func (rp Replay) MeanHits() Value {
	return meanOf(rp.Buckets)
}

// MeanOtherMissesBetweenReload is the mean of Counters. Not applicable when
// the block was loaded fewer than twice or never deleted.
func (rp Replay) MeanOtherMissesBetweenReload() Value {
	if len(rp.Buckets) < minMissesForReload || rp.Deletes == 0 {
		return NotApplicable()
	}

	return meanOf(rp.Counters)
}

// blockState is one block's position in the replay. Counters are not
// incremented per event: the open counter remembers the log-wide miss count
// when it was opened and is settled when the block loads, deletes again or
// the log ends.
type blockState struct {
	out      Replay
	loaded   bool
	absent   bool
	openedAt int
}

func (st *blockState) apply(r record.Record, missesBefore int) {
	switch r.Kind {
	case record.KindMiss:
		st.settle(missesBefore)

		if !st.loaded {
			st.out.Residency = append(st.out.Residency, Interval{Start: r.Timestamp, Open: true})
		}

		st.loaded = true
		st.out.Buckets = append(st.out.Buckets, 0)
	case record.KindHit:
		if !st.loaded {
			st.out.OrphanHits++

			return
		}

		st.out.Buckets[len(st.out.Buckets)-1]++
	case record.KindDelete:
		st.settle(missesBefore)

		if st.loaded {
			last := &st.out.Residency[len(st.out.Residency)-1]
			last.End = r.Timestamp
			last.Open = false
		}

		st.loaded = false
		st.absent = true
		st.openedAt = missesBefore
		st.out.Deletes++
		st.out.Counters = append(st.out.Counters, 0)
	}
}

// settle closes the open counter. A block's own misses never fall inside an
// absent stretch, so every miss counted since openedAt belongs to another block.
func (st *blockState) settle(misses int) {
	if st.absent {
		st.out.Counters[len(st.out.Counters)-1] = misses - st.openedAt
		st.absent = false
	}
}

// Replay walks the chronological log once and reconstructs blockHash's timeline.
// Misses before the block's first load are never counted.
func (s *Statistics) Replay(blockHash string) Replay {
	var (
		st     blockState
		misses int
	)

	for _, r := range s.store.Chronological() {
		if r.BlockHash == blockHash {
			st.apply(r, misses)
		}

		if r.Kind == record.KindMiss {
			misses++
		}
	}

	st.settle(misses)

	return st.out
}

// ReplayAll replays every block in a single walk of the chronological log.
// Each entry equals Replay for the same hash.
func (s *Statistics) ReplayAll() map[string]Replay {
	var (
		states = make(map[string]*blockState)
		misses int
	)

	for _, r := range s.store.Chronological() {
		st, ok := states[r.BlockHash]
		if !ok {
			st = &blockState{}
			states[r.BlockHash] = st
		}

		st.apply(r, misses)

		if r.Kind == record.KindMiss {
			misses++
		}
	}

	out := make(map[string]Replay, len(states))

	for h, st := range states {
		st.settle(misses)
		out[h] = st.out
	}

	return out
}

// TotalBlockMisses returns how many times blockHash was loaded into the cache.
func (s *Statistics) TotalBlockMisses(blockHash string) int {
	return s.store.Count(blockHash, record.KindMiss)
}

// TotalBlockHits returns how many times blockHash was served from the cache.
func (s *Statistics) TotalBlockHits(blockHash string) int {
	return s.store.Count(blockHash, record.KindHit)
}

// TotalBlockDeletes returns how many times blockHash was removed from the cache.
func (s *Statistics) TotalBlockDeletes(blockHash string) int {
	return s.store.Count(blockHash, record.KindDelete)
}

// TotalBytesLoaded returns the sum of the sizes carried by blockHash's misses.
func (s *Statistics) TotalBytesLoaded(blockHash string) int64 {
	var total int64

	for _, r := range s.store.Get(blockHash, record.KindMiss) {
		total += r.Size
	}

	return total
}

// HitBuckets returns the hits counted during each load of blockHash.
func (s *Statistics) HitBuckets(blockHash string) []int {
	return s.Replay(blockHash).Buckets
}

// OrphanHits returns the hits of blockHash observed while it was not loaded.
func (s *Statistics) OrphanHits(blockHash string) int {
	return s.Replay(blockHash).OrphanHits
}

// MeanBlockHits returns the mean number of hits per load of blockHash.
// Not applicable when the block was never loaded.
func (s *Statistics) MeanBlockHits(blockHash string) Value {
	return s.Replay(blockHash).MeanHits()
}

// ReloadCounters returns, per deletion of blockHash, the number of other blocks'
// misses observed before blockHash was loaded again (or the log ended).
func (s *Statistics) ReloadCounters(blockHash string) []int {
	return s.Replay(blockHash).Counters
}

// MeanOtherBlockMissesBetweenReload returns the mean number of other blocks'
// misses that happen while blockHash is deleted. Not applicable when the block
// was loaded fewer than twice or never deleted.
func (s *Statistics) MeanOtherBlockMissesBetweenReload(blockHash string) Value {
	return s.Replay(blockHash).MeanOtherMissesBetweenReload()
}

// Residency returns the presence timeline of blockHash.
func (s *Statistics) Residency(blockHash string) []Interval {
	return s.Replay(blockHash).Residency
}

// GroupRatio returns the sum of hits over the sum of misses across hashes.
// This is a ratio of sums, not a mean of per-block ratios. Not applicable
// when the group has no misses.
func (s *Statistics) GroupRatio(hashes []string) Value {
	var hits, misses int

	for _, h := range hashes {
		hits += s.TotalBlockHits(h)
		misses += s.TotalBlockMisses(h)
	}

	if misses == 0 {
		return NotApplicable()
	}

	return Of(float64(hits) / float64(misses))
}

// PartitionRatios returns GroupRatio for every group of a partition.
func (s *Statistics) PartitionRatios(groups [][]string) []Value {
	ratios := make([]Value, len(groups))

	for i, group := range groups {
		ratios[i] = s.GroupRatio(group)
	}

	return ratios
}

func meanOf(values []int) Value {
	mean, ok := stats.Mean(values)
	if !ok {
		return NotApplicable()
	}

	return Of(mean)
}
