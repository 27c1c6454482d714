// Package analysis binds a record store and a file registry into the query
// surface consumed by reporting, the CLI and the MCP server.
package analysis

import (
	"log/slog"
	"slices"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/alg/stats"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/blockfile"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/blockstats"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/record"
)

// Group names used by Partition.
const (
	GroupReferenced   = "referenced"
	GroupUnreferenced = "unreferenced"
)

// Option configures an Analysis.
type Option func(*Analysis)

// WithRegistry binds an existing file registry.
func WithRegistry(reg *blockfile.Registry) Option {
	return func(a *Analysis) {
		if reg != nil {
			a.registry = reg
		}
	}
}

// WithLogger sets the logger used for debug diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analysis) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Analysis is a read view over a loaded store and registry.
// It owns no records; RegisterFile is its only mutation.
type Analysis struct {
	store    *record.Store
	registry *blockfile.Registry
	stats    *blockstats.Statistics
	logger   *slog.Logger
}

// New creates an analysis over store. Without WithRegistry an empty registry is used.
func New(store *record.Store, opts ...Option) *Analysis {
	a := &Analysis{
		store:    store,
		registry: blockfile.NewRegistry(),
		stats:    blockstats.New(store),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Statistics exposes the underlying block statistics.
func (a *Analysis) Statistics() *blockstats.Statistics {
	return a.stats
}

// Registry exposes the bound file registry.
func (a *Analysis) Registry() *blockfile.Registry {
	return a.registry
}

// KnownBlockHashes returns every hash with at least one record, sorted.
func (a *Analysis) KnownBlockHashes() []string {
	return a.store.Hashes()
}

// RegisterFile adds file to the registry.
func (a *Analysis) RegisterFile(file blockfile.BlockFile) {
	var unobserved int

	for _, h := range file.BlockHashes {
		if !a.observed(h) {
			unobserved++
		}
	}

	if unobserved > 0 {
		a.logger.Debug("file references unobserved blocks",
			"file", file.Name, "unobserved", unobserved, "hashes", len(file.BlockHashes))
	}

	a.registry.Register(file)
}

// BlockSummary holds every per-block figure.
type BlockSummary struct {
	Hash                         string           `json:"hash"                              yaml:"hash"`
	Misses                       int              `json:"misses"                            yaml:"misses"`
	Hits                         int              `json:"hits"                              yaml:"hits"`
	Deletes                      int              `json:"deletes"                           yaml:"deletes"`
	BytesLoaded                  int64            `json:"bytes_loaded"                      yaml:"bytes_loaded"`
	OrphanHits                   int              `json:"orphan_hits"                       yaml:"orphan_hits"`
	MeanHits                     blockstats.Value `json:"mean_hits"                         yaml:"mean_hits"`
	MeanOtherMissesBetweenReload blockstats.Value `json:"mean_other_misses_between_reload"  yaml:"mean_other_misses_between_reload"`
	Files                        []string         `json:"files,omitempty"                   yaml:"files,omitempty"`
}

// Block summarises blockHash. Unknown hashes yield zero counts and n/a means.
func (a *Analysis) Block(blockHash string) BlockSummary {
	return a.summarise(blockHash, a.stats.Replay(blockHash))
}

// Blocks summarises every known block in hash order.
func (a *Analysis) Blocks() []BlockSummary {
	return a.blocks(a.stats.ReplayAll())
}

func (a *Analysis) blocks(replays map[string]blockstats.Replay) []BlockSummary {
	hashes := a.KnownBlockHashes()
	out := make([]BlockSummary, 0, len(hashes))

	for _, h := range hashes {
		out = append(out, a.summarise(h, replays[h]))
	}

	return out
}

func (a *Analysis) summarise(blockHash string, rp blockstats.Replay) BlockSummary {
	summary := BlockSummary{
		Hash:                         blockHash,
		Misses:                       a.stats.TotalBlockMisses(blockHash),
		Hits:                         a.stats.TotalBlockHits(blockHash),
		Deletes:                      a.stats.TotalBlockDeletes(blockHash),
		BytesLoaded:                  a.stats.TotalBytesLoaded(blockHash),
		OrphanHits:                   rp.OrphanHits,
		MeanHits:                     rp.MeanHits(),
		MeanOtherMissesBetweenReload: rp.MeanOtherMissesBetweenReload(),
	}

	for _, f := range a.registry.FilesFor(blockHash) {
		summary.Files = append(summary.Files, f.Name)
	}

	return summary
}

// Group is one side of a partition of known blocks.
type Group struct {
	Name         string           `json:"name"            yaml:"name"`
	Hashes       []string         `json:"hashes"          yaml:"hashes"`
	Hits         int              `json:"hits"            yaml:"hits"`
	Misses       int              `json:"misses"          yaml:"misses"`
	HitMissRatio blockstats.Value `json:"hit_miss_ratio"  yaml:"hit_miss_ratio"`
}

// Partition splits known blocks by whether any registered file references them.
type Partition struct {
	Referenced   Group `json:"referenced"   yaml:"referenced"`
	Unreferenced Group `json:"unreferenced" yaml:"unreferenced"`
}

// Groups returns both groups, referenced first.
func (p Partition) Groups() []Group {
	return []Group{p.Referenced, p.Unreferenced}
}

// Partition computes the referenced/unreferenced split with ratio-of-sums figures.
func (a *Analysis) Partition() Partition {
	var referenced, unreferenced []string

	for _, h := range a.KnownBlockHashes() {
		if a.registry.IsReferenced(h) {
			referenced = append(referenced, h)
		} else {
			unreferenced = append(unreferenced, h)
		}
	}

	return Partition{
		Referenced:   a.group(GroupReferenced, referenced),
		Unreferenced: a.group(GroupUnreferenced, unreferenced),
	}
}

// FileSummary aggregates the blocks of one registered file.
// Blocks counts positions in the file's hash sequence, repeats included. The
// other figures count each distinct hash once.
type FileSummary struct {
	Name           string           `json:"name"             yaml:"name"`
	Blocks         int              `json:"blocks"           yaml:"blocks"`
	DistinctBlocks int              `json:"distinct_blocks"  yaml:"distinct_blocks"`
	ObservedBlocks int              `json:"observed_blocks"  yaml:"observed_blocks"`
	Hits           int              `json:"hits"             yaml:"hits"`
	Misses         int              `json:"misses"           yaml:"misses"`
	HitMissRatio   blockstats.Value `json:"hit_miss_ratio"   yaml:"hit_miss_ratio"`
}

// Files summarises every registered file in registration order.
func (a *Analysis) Files() []FileSummary {
	files := a.registry.Files()
	out := make([]FileSummary, 0, len(files))

	for _, f := range files {
		distinct := slices.Clone(f.BlockHashes)
		slices.Sort(distinct)
		distinct = slices.Compact(distinct)

		g := a.group(f.Name, distinct)

		var observed int

		for _, h := range distinct {
			if a.observed(h) {
				observed++
			}
		}

		out = append(out, FileSummary{
			Name:           f.Name,
			Blocks:         len(f.BlockHashes),
			DistinctBlocks: len(distinct),
			ObservedBlocks: observed,
			Hits:           g.Hits,
			Misses:         g.Misses,
			HitMissRatio:   g.HitMissRatio,
		})
	}

	return out
}

// Overview holds log-wide totals.
type Overview struct {
	Events       int              `json:"events"       yaml:"events"`
	Misses       int              `json:"misses"       yaml:"misses"`
	Hits         int              `json:"hits"         yaml:"hits"`
	Deletes      int              `json:"deletes"      yaml:"deletes"`
	Blocks       int              `json:"blocks"       yaml:"blocks"`
	Files        int              `json:"files"        yaml:"files"`
	OrphanHits   int              `json:"orphan_hits"  yaml:"orphan_hits"`
	BytesLoaded  int64            `json:"bytes_loaded" yaml:"bytes_loaded"`
	HitMissRatio blockstats.Value `json:"hit_miss_ratio" yaml:"hit_miss_ratio"`
	// MeanHits describes the applicable per-block mean hits.
	MeanHits stats.Distribution `json:"mean_hits" yaml:"mean_hits"`
}

// Overview computes log-wide totals from precomputed block summaries.
func (a *Analysis) Overview() Overview {
	return a.overview(a.Blocks())
}

// Report bundles every figure for rendering.
type Report struct {
	Overview  Overview         `json:"overview"  yaml:"overview"`
	Partition Partition        `json:"partition" yaml:"partition"`
	Files     []FileSummary    `json:"files"     yaml:"files"`
	Blocks    []BlockSummary   `json:"blocks"    yaml:"blocks"`
	Occupancy []OccupancyPoint `json:"occupancy" yaml:"occupancy"`
}

// Report computes the full report.
func (a *Analysis) Report() Report {
	replays := a.stats.ReplayAll()
	blocks := a.blocks(replays)

	return Report{
		Overview:  a.overview(blocks),
		Partition: a.Partition(),
		Files:     a.Files(),
		Blocks:    blocks,
		Occupancy: occupancy(replays),
	}
}

func (a *Analysis) overview(blocks []BlockSummary) Overview {
	counts := a.store.CountByKind()

	ov := Overview{
		Events:       a.store.Len(),
		Misses:       counts[record.KindMiss],
		Hits:         counts[record.KindHit],
		Deletes:      counts[record.KindDelete],
		Blocks:       len(blocks),
		Files:        a.registry.Len(),
		HitMissRatio: a.stats.GroupRatio(a.KnownBlockHashes()),
	}

	means := make([]float64, 0, len(blocks))

	for _, b := range blocks {
		ov.OrphanHits += b.OrphanHits
		ov.BytesLoaded += b.BytesLoaded

		if v, ok := b.MeanHits.Float(); ok {
			means = append(means, v)
		}
	}

	ov.MeanHits = stats.Describe(means)

	return ov
}

func (a *Analysis) group(name string, hashes []string) Group {
	g := Group{Name: name, Hashes: hashes, HitMissRatio: a.stats.GroupRatio(hashes)}
	if g.Hashes == nil {
		g.Hashes = []string{}
	}

	for _, h := range hashes {
		g.Hits += a.stats.TotalBlockHits(h)
		g.Misses += a.stats.TotalBlockMisses(h)
	}

	return g
}

func (a *Analysis) observed(blockHash string) bool {
	for _, k := range record.Kinds {
		if a.store.Count(blockHash, k) > 0 {
			return true
		}
	}

	return false
}
