// Package simulate replays the observed access stream through reference cache
// policies, so the recorded cache can be compared against what LRU or ARC
// would have achieved at a given capacity.
//
// Every Miss and Hit is an access to its block. Deletes are the recorded
// cache's own evictions and are not replayed.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/golang-lru/arc/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/blockstats"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/record"
)

// Sentinel errors.
var (
	ErrInvalidCapacity = errors.New("capacity must be at least 1")
	ErrUnknownPolicy   = errors.New("unknown cache policy")
)

// Policy names a replacement policy.
type Policy string

// Supported policies.
const (
	PolicyLRU Policy = "lru"
	PolicyARC Policy = "arc"
)

// Policies lists every supported policy.
var Policies = []Policy{PolicyLRU, PolicyARC}

// ParsePolicy resolves a policy name, case-insensitively.
func ParsePolicy(name string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(name)))
	if !slices.Contains(Policies, p) {
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}

	return p, nil
}

// Result is the outcome of one policy at one capacity.
type Result struct {
	Policy   Policy `json:"policy"   yaml:"policy"`
	Capacity int    `json:"capacity" yaml:"capacity"`
	Accesses int    `json:"accesses" yaml:"accesses"`
	Hits     int    `json:"hits"     yaml:"hits"`
	Misses   int    `json:"misses"   yaml:"misses"`
	// HitRate is hits over accesses.
	HitRate blockstats.Value `json:"hit_rate" yaml:"hit_rate"`
	// HitMissRatio is hits over misses, comparable with the observed ratio.
	HitMissRatio blockstats.Value `json:"hit_miss_ratio" yaml:"hit_miss_ratio"`
}

// Comparison bundles simulated results with the observed figure.
type Comparison struct {
	Observed blockstats.Value `json:"observed_hit_miss_ratio" yaml:"observed_hit_miss_ratio"`
	Results  []Result         `json:"results"                 yaml:"results"`
}

// cache is the subset of the golang-lru caches the replay needs.
type cache interface {
	Get(key string) (struct{}, bool)
	Set(key string)
}

type lruWrapper struct {
	*lru.Cache[string, struct{}]
}

func (w lruWrapper) Set(key string) { w.Add(key, struct{}{}) }

type arcWrapper struct {
	*arc.ARCCache[string, struct{}]
}

func (w arcWrapper) Set(key string) { w.Add(key, struct{}{}) }

func newCache(policy Policy, capacity int) (cache, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	switch policy {
	case PolicyLRU:
		c, err := lru.New[string, struct{}](capacity)
		if err != nil {
			return nil, fmt.Errorf("create lru cache: %w", err)
		}

		return lruWrapper{Cache: c}, nil
	case PolicyARC:
		c, err := arc.NewARC[string, struct{}](capacity)
		if err != nil {
			return nil, fmt.Errorf("create arc cache: %w", err)
		}

		return arcWrapper{ARCCache: c}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// Run replays store's accesses through policy with the given capacity.
func Run(store *record.Store, policy Policy, capacity int) (Result, error) {
	c, err := newCache(policy, capacity)
	if err != nil {
		return Result{}, err
	}

	res := Result{Policy: policy, Capacity: capacity}

	for _, r := range store.Chronological() {
		if r.Kind == record.KindDelete {
			continue
		}

		res.Accesses++

		if _, ok := c.Get(r.BlockHash); ok {
			res.Hits++

			continue
		}

		res.Misses++

		c.Set(r.BlockHash)
	}

	res.HitRate = ratio(res.Hits, res.Accesses)
	res.HitMissRatio = ratio(res.Hits, res.Misses)

	return res, nil
}

// Compare runs every policy at every capacity, in that order.
func Compare(ctx context.Context, store *record.Store, policies []Policy, capacities []int) (Comparison, error) {
	_, span := otel.Tracer("cacheanalysis/simulate").Start(ctx, "simulate.Compare")
	defer span.End()

	span.SetAttributes(
		attribute.Int("simulate.policies", len(policies)),
		attribute.Int("simulate.capacities", len(capacities)),
	)

	out := Comparison{
		Observed: blockstats.New(store).GroupRatio(store.Hashes()),
		Results:  make([]Result, 0, len(policies)*len(capacities)),
	}

	for _, p := range policies {
		for _, c := range capacities {
			res, err := Run(store, p, c)
			if err != nil {
				span.RecordError(err)

				return Comparison{}, err
			}

			out.Results = append(out.Results, res)
		}
	}

	return out, nil
}

func ratio(num, den int) blockstats.Value {
	if den == 0 {
		return blockstats.NotApplicable()
	}

	return blockstats.Of(float64(num) / float64(den))
}
