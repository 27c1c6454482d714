package analysis

import (
	"slices"
	"time"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/blockstats"
)

// OccupancyPoint is the number of resident blocks right after Time.
type OccupancyPoint struct {
	Time     time.Time `json:"time"     yaml:"time"`
	Resident int       `json:"resident" yaml:"resident"`
}

type occupancyDelta struct {
	at    time.Time
	delta int
}

// Occupancy merges every block's residency intervals into one timeline with a
// point per distinct timestamp at which residency changed.
func (a *Analysis) Occupancy() []OccupancyPoint {
	return occupancy(a.stats.ReplayAll())
}

func occupancy(replays map[string]blockstats.Replay) []OccupancyPoint {
	var deltas []occupancyDelta

	for _, rp := range replays {
		for _, iv := range rp.Residency {
			deltas = append(deltas, occupancyDelta{at: iv.Start, delta: 1})

			if !iv.Open {
				deltas = append(deltas, occupancyDelta{at: iv.End, delta: -1})
			}
		}
	}

	slices.SortStableFunc(deltas, func(x, y occupancyDelta) int {
		return x.at.Compare(y.at)
	})

	points := make([]OccupancyPoint, 0, len(deltas))
	resident := 0

	for _, d := range deltas {
		resident += d.delta

		if n := len(points); n > 0 && points[n-1].Time.Equal(d.at) {
			points[n-1].Resident = resident

			continue
		}

		points = append(points, OccupancyPoint{Time: d.at, Resident: resident})
	}

	return points
}
