package analysis_test

import (
	"strconv"
	"testing"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/analysis"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/record"
)

const benchBlocks = 10_000

func BenchmarkReport(b *testing.B) {
	store := record.NewStore()

	for i := range benchBlocks {
		h := strconv.Itoa(i)

		err := store.AddAll([]record.Record{
			record.NewMiss(h, at(3*i), blockSize),
			record.NewHit(h, at(3*i+1)),
			record.NewDelete(h, at(3*i+2)),
		})
		if err != nil {
			b.Fatal(err)
		}
	}

	a := analysis.New(store)

	b.ResetTimer()

	for range b.N {
		_ = a.Report()
	}
}
