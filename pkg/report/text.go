package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/analysis"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/blockstats"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/simulate"
)

const valuePrecision = 3

// palette colors text output.
type palette struct {
	header *color.Color
	na     *color.Color
	good   *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		header: color.New(color.Bold),
		na:     color.New(color.Faint),
		good:   color.New(color.FgGreen),
	}

	if noColor {
		p.header.DisableColor()
		p.na.DisableColor()
		p.good.DisableColor()
	}

	return p
}

func (p palette) value(v blockstats.Value) string {
	f, ok := v.Float()
	if !ok {
		return p.na.Sprint(v.String())
	}

	return strconv.FormatFloat(f, 'f', valuePrecision, 64)
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

// RenderText writes rep as a set of tables.
func RenderText(w io.Writer, rep analysis.Report, opts Options) error {
	p := newPalette(opts.NoColor)
	ov := rep.Overview

	var sb strings.Builder

	sb.WriteString(p.header.Sprint("=== CACHE OVERVIEW ===") + "\n")
	fmt.Fprintf(&sb, "Events: %d (%d misses, %d hits, %d deletes)\n", ov.Events, ov.Misses, ov.Hits, ov.Deletes)
	fmt.Fprintf(&sb, "Blocks: %d | Files: %d | Orphan hits: %d | Loaded: %s\n",
		ov.Blocks, ov.Files, ov.OrphanHits, humanize.IBytes(uint64(max(ov.BytesLoaded, 0))))
	fmt.Fprintf(&sb, "Hit/miss ratio: %s | Mean hits per load: mean %.3f, median %.3f, p95 %.3f over %d blocks\n\n",
		p.value(ov.HitMissRatio), ov.MeanHits.Mean, ov.MeanHits.Median, ov.MeanHits.P95, ov.MeanHits.Count)

	sb.WriteString(p.header.Sprint("Partition") + "\n")
	sb.WriteString(partitionTable(rep.Partition, p) + "\n\n")

	if len(rep.Files) > 0 {
		sb.WriteString(p.header.Sprint("Files") + "\n")
		sb.WriteString(filesTable(rep.Files, p) + "\n\n")
	}

	sb.WriteString(p.header.Sprint("Blocks") + "\n")
	sb.WriteString(blocksTable(rep.Blocks, opts.Top, p) + "\n")

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	return nil
}

func partitionTable(part analysis.Partition, p palette) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Group", "Blocks", "Hits", "Misses", "Hit/Miss"})

	for _, g := range part.Groups() {
		tbl.AppendRow(table.Row{g.Name, len(g.Hashes), g.Hits, g.Misses, p.value(g.HitMissRatio)})
	}

	return tbl.Render()
}

func filesTable(files []analysis.FileSummary, p palette) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"File", "Blocks", "Distinct", "Observed", "Hits", "Misses", "Hit/Miss"})

	for _, f := range files {
		tbl.AppendRow(table.Row{f.Name, f.Blocks, f.DistinctBlocks, f.ObservedBlocks, f.Hits, f.Misses, p.value(f.HitMissRatio)})
	}

	return tbl.Render()
}

func blocksTable(blocks []analysis.BlockSummary, top int, p palette) string {
	shown := topBlocks(blocks, top)

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Block", "Misses", "Hits", "Deletes", "Orphans", "Loaded", "Mean hits", "Reload gap", "Files"})

	for _, b := range shown {
		tbl.AppendRow(table.Row{
			b.Hash, b.Misses, b.Hits, b.Deletes, b.OrphanHits,
			humanize.IBytes(uint64(max(b.BytesLoaded, 0))),
			p.value(b.MeanHits), p.value(b.MeanOtherMissesBetweenReload),
			strings.Join(b.Files, ", "),
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Showing %d of %d blocks", len(shown), len(blocks))})

	return tbl.Render()
}

// topBlocks orders blocks by misses, busiest first, and keeps at most top.
func topBlocks(blocks []analysis.BlockSummary, top int) []analysis.BlockSummary {
	sorted := slices.Clone(blocks)
	slices.SortStableFunc(sorted, func(x, y analysis.BlockSummary) int {
		if c := cmp.Compare(y.Misses, x.Misses); c != 0 {
			return c
		}

		return cmp.Compare(y.Hits, x.Hits)
	})

	if top > 0 && len(sorted) > top {
		sorted = sorted[:top]
	}

	return sorted
}

// RenderComparisonText writes simulation results as a table.
func RenderComparisonText(w io.Writer, cmpResult simulate.Comparison, opts Options) error {
	p := newPalette(opts.NoColor)

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Policy", "Capacity", "Accesses", "Hits", "Misses", "Hit rate", "Hit/Miss"})

	for _, r := range cmpResult.Results {
		ratio := p.value(r.HitMissRatio)
		if beats(r.HitMissRatio, cmpResult.Observed) {
			ratio = p.good.Sprint(ratio)
		}

		tbl.AppendRow(table.Row{r.Policy, r.Capacity, r.Accesses, r.Hits, r.Misses, p.value(r.HitRate), ratio})
	}

	out := p.header.Sprint("=== POLICY SIMULATION ===") + "\n" +
		"Observed hit/miss ratio: " + p.value(cmpResult.Observed) + "\n" +
		tbl.Render() + "\n"

	_, err := io.WriteString(w, out)
	if err != nil {
		return fmt.Errorf("write simulation report: %w", err)
	}

	return nil
}

func beats(simulated, observed blockstats.Value) bool {
	s, sok := simulated.Float()
	o, ook := observed.Float()

	return sok && ook && s > o
}
