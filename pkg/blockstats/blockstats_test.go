package blockstats_test

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/blockstats"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/record"
)

const (
	hashA     = "123"
	hashB     = "456"
	hashC     = "789"
	hashOther = "other"
	blockSize = 10
	delta     = 1e-9
)

var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return epoch.Add(time.Duration(n) * 24 * time.Hour)
}

// shortScenario: Miss(A,t0) Miss(B,t0) Hit(A,t1) Delete(A,t2) Miss(A,t3) Hit(A,t4) Hit(A,t5).
func shortScenario() []record.Record {
	return []record.Record{
		record.NewMiss(hashA, day(0), blockSize),
		record.NewMiss(hashB, day(0), blockSize),
		record.NewHit(hashA, day(1)),
		record.NewDelete(hashA, day(2)),
		record.NewMiss(hashA, day(3), blockSize),
		record.NewHit(hashA, day(4)),
		record.NewHit(hashA, day(5)),
	}
}

// longScenario extends shortScenario with a third block and a final reload of A.
func longScenario() []record.Record {
	return append(shortScenario(),
		record.NewDelete(hashA, day(6)),
		record.NewMiss(hashC, day(7), blockSize),
		record.NewDelete(hashC, day(8)),
		record.NewMiss(hashC, day(9), blockSize),
		record.NewMiss(hashA, day(10), blockSize),
	)
}

func newStats(t *testing.T, records []record.Record) *blockstats.Statistics {
	t.Helper()

	store := record.NewStore()
	require.NoError(t, store.AddAll(records))

	return blockstats.New(store)
}

func requireValue(t *testing.T, expected float64, v blockstats.Value) {
	t.Helper()

	got, ok := v.Float()
	require.True(t, ok, "value is not applicable")
	assert.InDelta(t, expected, got, delta)
}

func TestTotals(t *testing.T) {
	t.Parallel()

	s := newStats(t, shortScenario())

	assert.Equal(t, 2, s.TotalBlockMisses(hashA))
	assert.Equal(t, 3, s.TotalBlockHits(hashA))
	assert.Equal(t, 1, s.TotalBlockDeletes(hashA))
	assert.Equal(t, int64(2*blockSize), s.TotalBytesLoaded(hashA))
	assert.Zero(t, s.TotalBlockMisses(hashOther))
	assert.Zero(t, s.TotalBlockHits(hashOther))
}

func TestMeanBlockHits_Buckets(t *testing.T) {
	t.Parallel()

	s := newStats(t, shortScenario())

	assert.Equal(t, []int{1, 2}, s.HitBuckets(hashA))
	requireValue(t, 1.5, s.MeanBlockHits(hashA))
	requireValue(t, 0, s.MeanBlockHits(hashB))
}

func TestMeanBlockHits_NeverLoaded(t *testing.T) {
	t.Parallel()

	s := newStats(t, shortScenario())

	assert.False(t, s.MeanBlockHits(hashOther).Applicable())
}

func TestMeanBlockHits_ZeroHitsIsNotNotApplicable(t *testing.T) {
	t.Parallel()

	s := newStats(t, []record.Record{record.NewMiss(hashA, day(0), blockSize)})

	requireValue(t, 0, s.MeanBlockHits(hashA))
}

func TestMeanBlockHits_LongScenario(t *testing.T) {
	t.Parallel()

	s := newStats(t, longScenario())

	assert.Equal(t, []int{1, 2, 0}, s.HitBuckets(hashA))
	requireValue(t, 1, s.MeanBlockHits(hashA))
}

func TestMeanBlockHits_DiscountsOrphanHits(t *testing.T) {
	t.Parallel()

	s := newStats(t, []record.Record{
		record.NewHit(hashA, day(0)),
		record.NewMiss(hashA, day(1), blockSize),
		record.NewHit(hashA, day(2)),
		record.NewDelete(hashA, day(3)),
		record.NewHit(hashA, day(4)),
	})

	assert.Equal(t, 3, s.TotalBlockHits(hashA))
	assert.Equal(t, 2, s.OrphanHits(hashA))
	requireValue(t, 1, s.MeanBlockHits(hashA))
}

func TestMeanBlockHits_ReloadWhileLoaded(t *testing.T) {
	t.Parallel()

	s := newStats(t, []record.Record{
		record.NewMiss(hashA, day(0), blockSize),
		record.NewHit(hashA, day(1)),
		record.NewHit(hashA, day(2)),
		record.NewMiss(hashA, day(3), blockSize),
		record.NewHit(hashA, day(4)),
	})

	assert.Equal(t, []int{2, 1}, s.HitBuckets(hashA))
	requireValue(t, 1.5, s.MeanBlockHits(hashA))
}

func TestMeanOtherBlockMissesBetweenReload(t *testing.T) {
	t.Parallel()

	t.Run("one_other_miss_while_deleted", func(t *testing.T) {
		t.Parallel()

		s := newStats(t, []record.Record{
			record.NewMiss(hashA, day(0), blockSize),
			record.NewDelete(hashA, day(1)),
			record.NewMiss(hashB, day(2), blockSize),
			record.NewMiss(hashA, day(3), blockSize),
			record.NewMiss(hashC, day(4), blockSize),
		})

		assert.Equal(t, []int{1}, s.ReloadCounters(hashA))
		requireValue(t, 1.0, s.MeanOtherBlockMissesBetweenReload(hashA))
	})

	t.Run("long_scenario", func(t *testing.T) {
		t.Parallel()

		s := newStats(t, longScenario())

		assert.Equal(t, []int{0, 2}, s.ReloadCounters(hashA))
		requireValue(t, 1.0, s.MeanOtherBlockMissesBetweenReload(hashA))
	})

	t.Run("not_reloaded", func(t *testing.T) {
		t.Parallel()

		s := newStats(t, longScenario())

		assert.False(t, s.MeanOtherBlockMissesBetweenReload(hashB).Applicable())
		assert.False(t, s.MeanOtherBlockMissesBetweenReload(hashOther).Applicable())
	})

	t.Run("reloaded_without_delete", func(t *testing.T) {
		t.Parallel()

		s := newStats(t, []record.Record{
			record.NewMiss(hashA, day(0), blockSize),
			record.NewMiss(hashB, day(1), blockSize),
			record.NewMiss(hashA, day(2), blockSize),
		})

		assert.False(t, s.MeanOtherBlockMissesBetweenReload(hashA).Applicable())
	})

	t.Run("misses_before_first_load_are_ignored", func(t *testing.T) {
		t.Parallel()

		s := newStats(t, []record.Record{
			record.NewMiss(hashB, day(0), blockSize),
			record.NewMiss(hashC, day(0), blockSize),
			record.NewMiss(hashA, day(1), blockSize),
			record.NewDelete(hashA, day(2)),
			record.NewMiss(hashA, day(3), blockSize),
		})

		requireValue(t, 0, s.MeanOtherBlockMissesBetweenReload(hashA))
	})
}

func TestResidency(t *testing.T) {
	t.Parallel()

	s := newStats(t, longScenario())

	assert.Equal(t, []blockstats.Interval{
		{Start: day(0), End: day(2)},
		{Start: day(3), End: day(6)},
		{Start: day(10), Open: true},
	}, s.Residency(hashA))
	assert.Empty(t, s.Residency(hashOther))
}

func TestGroupRatio_RatioOfSums(t *testing.T) {
	t.Parallel()

	// Block A: 3 hits / 3 misses (ratio 1.0); block B: 0 hits / 1 miss (ratio 0.0).
	s := newStats(t, []record.Record{
		record.NewMiss(hashA, day(0), blockSize),
		record.NewHit(hashA, day(1)),
		record.NewHit(hashA, day(2)),
		record.NewDelete(hashA, day(3)),
		record.NewMiss(hashA, day(4), blockSize),
		record.NewHit(hashA, day(5)),
		record.NewDelete(hashA, day(6)),
		record.NewMiss(hashA, day(7), blockSize),
		record.NewMiss(hashB, day(8), blockSize),
	})

	requireValue(t, 0.75, s.GroupRatio([]string{hashA, hashB}))
	assert.False(t, s.GroupRatio(nil).Applicable())
	assert.False(t, s.GroupRatio([]string{hashOther}).Applicable())

	ratios := s.PartitionRatios([][]string{{hashA, hashB}, {hashOther}, {hashB}})
	require.Len(t, ratios, 3)
	requireValue(t, 0.75, ratios[0])
	assert.False(t, ratios[1].Applicable())
	requireValue(t, 0, ratios[2])
}

func TestOrderIndependence(t *testing.T) {
	t.Parallel()

	base := newStats(t, longScenario())
	rng := rand.New(rand.NewSource(1))

	for range 20 {
		shuffled := longScenario()
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		s := newStats(t, shuffled)

		for _, h := range []string{hashA, hashB, hashC} {
			assert.Equal(t, base.TotalBlockMisses(h), s.TotalBlockMisses(h))
			assert.Equal(t, base.TotalBlockHits(h), s.TotalBlockHits(h))
			assert.Equal(t, base.MeanBlockHits(h), s.MeanBlockHits(h))
			assert.Equal(t, base.MeanOtherBlockMissesBetweenReload(h), s.MeanOtherBlockMissesBetweenReload(h))
		}
	}
}

func TestValue_Encoding(t *testing.T) {
	t.Parallel()

	type payload struct {
		A blockstats.Value `json:"a" yaml:"a"`
		B blockstats.Value `json:"b" yaml:"b"`
	}

	in := payload{A: blockstats.Of(1.5), B: blockstats.NotApplicable()}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":null}`, string(data))

	var out payload

	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	yamlData, err := yaml.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, "a: 1.5\nb: null\n", string(yamlData))

	assert.Equal(t, "n/a", blockstats.NotApplicable().String())
	assert.Equal(t, "0.75", blockstats.Of(0.75).String())
	assert.InDelta(t, -1.0, blockstats.NotApplicable().Or(-1), delta)
}

func TestReplayAll_MatchesReplay(t *testing.T) {
	t.Parallel()

	scenarios := map[string][]record.Record{
		"short": shortScenario(),
		"long":  longScenario(),
		"orphans": {
			record.NewHit(hashA, day(0)),
			record.NewMiss(hashA, day(1), blockSize),
			record.NewHit(hashA, day(2)),
			record.NewDelete(hashA, day(3)),
			record.NewHit(hashA, day(4)),
		},
		"delete_before_load_and_double_delete": {
			record.NewDelete(hashA, day(0)),
			record.NewMiss(hashB, day(1), blockSize),
			record.NewMiss(hashA, day(2), blockSize),
			record.NewDelete(hashA, day(3)),
			record.NewMiss(hashC, day(4), blockSize),
			record.NewDelete(hashA, day(5)),
			record.NewMiss(hashB, day(6), blockSize),
			record.NewMiss(hashC, day(7), blockSize),
		},
		"reload_while_loaded": {
			record.NewMiss(hashA, day(0), blockSize),
			record.NewMiss(hashB, day(1), blockSize),
			record.NewMiss(hashA, day(2), blockSize),
			record.NewDelete(hashB, day(3)),
		},
	}

	for name, records := range scenarios {
		s := newStats(t, records)
		all := s.ReplayAll()

		for _, h := range []string{hashA, hashB, hashC} {
			want := s.Replay(h)
			assert.Equal(t, want, all[h], "%s: block %s", name, h)
			assert.Equal(t, s.MeanBlockHits(h), all[h].MeanHits(), "%s: block %s", name, h)
			assert.Equal(t, s.MeanOtherBlockMissesBetweenReload(h), all[h].MeanOtherMissesBetweenReload(),
				"%s: block %s", name, h)
		}

		_, ok := all[hashOther]
		assert.False(t, ok, name)
	}
}

func TestReplay_CountersAcrossRepeatedDeletes(t *testing.T) {
	t.Parallel()

	s := newStats(t, []record.Record{
		record.NewDelete(hashA, day(0)),
		record.NewMiss(hashB, day(1), blockSize),
		record.NewMiss(hashA, day(2), blockSize),
		record.NewDelete(hashA, day(3)),
		record.NewMiss(hashC, day(4), blockSize),
		record.NewDelete(hashA, day(5)),
		record.NewMiss(hashB, day(6), blockSize),
		record.NewMiss(hashC, day(7), blockSize),
	})

	assert.Equal(t, []int{1, 1, 2}, s.ReloadCounters(hashA))
	assert.Equal(t, []int{1, 1, 2}, s.ReplayAll()[hashA].Counters)
}
