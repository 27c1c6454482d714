// Package stats provides core statistical functions for numerical analysis.
// All standard deviation calculations use population stddev (÷n, not ÷(n−1)).
package stats

import (
	"math"
	"slices"
)

// Number is any integer or floating point type.
type Number interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Mean returns the arithmetic mean of values and whether it is defined.
// The mean of an empty slice is undefined.
func Mean[T Number](values []T) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	var sum float64

	for _, v := range values {
		sum += float64(v)
	}

	return sum / float64(len(values)), true
}

// MeanStdDev returns the arithmetic mean and population standard deviation.
// Returns (0, 0) for an empty slice.
func MeanStdDev[T Number](values []T) (mean, stddev float64) {
	mean, ok := Mean(values)
	if !ok {
		return 0, 0
	}

	var sumSq float64

	for _, v := range values {
		diff := float64(v) - mean
		sumSq += diff * diff
	}

	return mean, math.Sqrt(sumSq / float64(len(values)))
}

// Well-known percentile thresholds.
const (
	PercentileMedian = 0.5
	PercentileP95    = 0.95
)

// Percentile returns the p-th percentile of values using linear interpolation.
// p must be in [0, 1]. The input slice is not modified (a copy is sorted internally).
// Returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	count := len(values)
	if count == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	idx := p * float64(count-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))

	if lower == upper || upper >= count {
		return sorted[lower]
	}

	frac := idx - float64(lower)

	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Median returns the 50th percentile of values.
// Returns 0 for an empty slice.
func Median(values []float64) float64 {
	return Percentile(values, PercentileMedian)
}

// Sum returns the sum of all elements in values.
func Sum[T Number](values []T) T {
	var result T

	for _, v := range values {
		result += v
	}

	return result
}

// Distribution summarizes a sample.
type Distribution struct {
	Count  int     `json:"count"  yaml:"count"`
	Mean   float64 `json:"mean"   yaml:"mean"`
	StdDev float64 `json:"stddev" yaml:"stddev"`
	Median float64 `json:"median" yaml:"median"`
	P95    float64 `json:"p95"    yaml:"p95"`
	Max    float64 `json:"max"    yaml:"max"`
}

// Describe computes the distribution summary of values.
// An empty sample yields the zero Distribution.
func Describe(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}

	mean, stddev := MeanStdDev(values)

	return Distribution{
		Count:  len(values),
		Mean:   mean,
		StdDev: stddev,
		Median: Median(values),
		P95:    Percentile(values, PercentileP95),
		Max:    slices.Max(values),
	}
}
