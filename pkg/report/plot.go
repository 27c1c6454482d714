package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/analysis"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/blockstats"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/simulate"
)

const (
	chartWidth       = "100%"
	chartHeight      = "500px"
	xAxisRotate      = 45
	defaultTitle     = "Cache analysis"
	emptyPlaceholder = "-"
)

// RenderPlot writes an HTML page with the report's charts.
func RenderPlot(w io.Writer, rep analysis.Report, opts Options) error {
	co := newChartOpts(opts.Theme)
	blocks := topBlocks(rep.Blocks, opts.Top)

	page := newPage(opts)
	page.AddCharts(
		buildAccessChart(co, blocks),
		buildMeanHitsChart(co, blocks),
		buildGroupRatioChart(co, rep.Partition, rep.Files),
		buildOccupancyChart(co, rep.Occupancy),
	)

	return renderPage(w, page)
}

// RenderComparisonPlot writes an HTML page comparing simulated policies.
func RenderComparisonPlot(w io.Writer, cmp simulate.Comparison, opts Options) error {
	co := newChartOpts(opts.Theme)

	page := newPage(opts)
	page.AddCharts(buildComparisonChart(co, cmp))

	return renderPage(w, page)
}

func newPage(o Options) *components.Page {
	title := o.Title
	if title == "" {
		title = defaultTitle
	}

	page := components.NewPage()
	page.PageTitle = title
	page.SetLayout(components.PageFlexLayout)

	return page
}

func renderPage(w io.Writer, page *components.Page) error {
	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render plot page: %w", err)
	}

	return nil
}

func buildAccessChart(co *chartOpts, blocks []analysis.BlockSummary) *charts.Bar {
	labels := make([]string, len(blocks))
	hits := make([]opts.BarData, len(blocks))
	misses := make([]opts.BarData, len(blocks))
	deletes := make([]opts.BarData, len(blocks))

	for i, b := range blocks {
		labels[i] = b.Hash
		hits[i] = opts.BarData{Value: b.Hits}
		misses[i] = opts.BarData{Value: b.Misses}
		deletes[i] = opts.BarData{Value: b.Deletes}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(co.Init(chartWidth, chartHeight)),
		charts.WithTitleOpts(co.Title("Accesses per block", "Blocks with the most misses first")),
		charts.WithTooltipOpts(co.Tooltip("axis")),
		charts.WithLegendOpts(co.Legend()),
		charts.WithGridOpts(co.Grid()),
		charts.WithDataZoomOpts(co.DataZoom()...),
		charts.WithXAxisOpts(rotated(co.XAxis("Block"))),
		charts.WithYAxisOpts(co.YAxis("Events")),
	)
	bar.SetXAxis(labels).
		AddSeries("Misses", misses, charts.WithItemStyleOpts(opts.ItemStyle{Color: co.color(0)})).
		AddSeries("Hits", hits, charts.WithItemStyleOpts(opts.ItemStyle{Color: co.color(1)})).
		AddSeries("Deletes", deletes, charts.WithItemStyleOpts(opts.ItemStyle{Color: co.color(2)}))

	return bar
}

func buildMeanHitsChart(co *chartOpts, blocks []analysis.BlockSummary) *charts.Bar {
	labels := make([]string, len(blocks))
	means := make([]opts.BarData, len(blocks))
	gaps := make([]opts.BarData, len(blocks))

	for i, b := range blocks {
		labels[i] = b.Hash
		means[i] = opts.BarData{Value: barValue(b.MeanHits)}
		gaps[i] = opts.BarData{Value: barValue(b.MeanOtherMissesBetweenReload)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(co.Init(chartWidth, chartHeight)),
		charts.WithTitleOpts(co.Title("Hits per load and reload gap", "Gaps show other blocks' misses while a block was deleted")),
		charts.WithTooltipOpts(co.Tooltip("axis")),
		charts.WithLegendOpts(co.Legend()),
		charts.WithGridOpts(co.Grid()),
		charts.WithDataZoomOpts(co.DataZoom()...),
		charts.WithXAxisOpts(rotated(co.XAxis("Block"))),
		charts.WithYAxisOpts(co.YAxis("Mean")),
	)
	bar.SetXAxis(labels).
		AddSeries("Mean hits per load", means, charts.WithItemStyleOpts(opts.ItemStyle{Color: co.color(1)})).
		AddSeries("Mean misses between reload", gaps, charts.WithItemStyleOpts(opts.ItemStyle{Color: co.color(3)}))

	return bar
}

func buildGroupRatioChart(co *chartOpts, part analysis.Partition, files []analysis.FileSummary) *charts.Bar {
	labels := make([]string, 0, len(files)+2)
	ratios := make([]opts.BarData, 0, len(files)+2)

	for _, g := range part.Groups() {
		labels = append(labels, g.Name)
		ratios = append(ratios, opts.BarData{Value: barValue(g.HitMissRatio)})
	}

	for _, f := range files {
		labels = append(labels, f.Name)
		ratios = append(ratios, opts.BarData{Value: barValue(f.HitMissRatio)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(co.Init(chartWidth, chartHeight)),
		charts.WithTitleOpts(co.Title("Hit/miss ratio by group", "Sum of hits over sum of misses")),
		charts.WithTooltipOpts(co.Tooltip("axis")),
		charts.WithGridOpts(co.Grid()),
		charts.WithXAxisOpts(rotated(co.XAxis("Group"))),
		charts.WithYAxisOpts(co.YAxis("Hits / misses")),
	)
	bar.SetXAxis(labels).
		AddSeries("Hit/miss", ratios, charts.WithItemStyleOpts(opts.ItemStyle{Color: co.color(0)}))

	return bar
}

func buildOccupancyChart(co *chartOpts, points []analysis.OccupancyPoint) *charts.Line {
	labels := make([]string, len(points))
	data := make([]opts.LineData, len(points))

	for i, p := range points {
		labels[i] = p.Time.UTC().Format(time.RFC3339)
		data[i] = opts.LineData{Value: p.Resident}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(co.Init(chartWidth, chartHeight)),
		charts.WithTitleOpts(co.Title("Resident blocks over time", "Blocks loaded and not yet deleted")),
		charts.WithTooltipOpts(co.Tooltip("axis")),
		charts.WithGridOpts(co.Grid()),
		charts.WithDataZoomOpts(co.DataZoom()...),
		charts.WithXAxisOpts(co.XAxis("Time")),
		charts.WithYAxisOpts(co.YAxis("Resident")),
	)
	line.SetXAxis(labels).
		AddSeries("Resident", data,
			charts.WithLineChartOpts(opts.LineChart{Step: "end"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: co.color(2)}),
		)

	return line
}

func buildComparisonChart(co *chartOpts, cmp simulate.Comparison) *charts.Bar {
	var (
		capacities []string
		seen       = map[int]bool{}
		byPolicy   = map[simulate.Policy]map[int]blockstats.Value{}
		policies   []simulate.Policy
	)

	for _, r := range cmp.Results {
		if !seen[r.Capacity] {
			seen[r.Capacity] = true
			capacities = append(capacities, strconv.Itoa(r.Capacity))
		}

		if byPolicy[r.Policy] == nil {
			byPolicy[r.Policy] = map[int]blockstats.Value{}
			policies = append(policies, r.Policy)
		}

		byPolicy[r.Policy][r.Capacity] = r.HitMissRatio
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(co.Init(chartWidth, chartHeight)),
		charts.WithTitleOpts(co.Title("Simulated hit/miss ratio", "Observed: "+cmp.Observed.String())),
		charts.WithTooltipOpts(co.Tooltip("axis")),
		charts.WithLegendOpts(co.Legend()),
		charts.WithGridOpts(co.Grid()),
		charts.WithXAxisOpts(co.XAxis("Capacity (blocks)")),
		charts.WithYAxisOpts(co.YAxis("Hits / misses")),
	)
	bar.SetXAxis(capacities)

	for i, p := range policies {
		data := make([]opts.BarData, 0, len(capacities))

		for _, c := range capacities {
			n, _ := strconv.Atoi(c)
			data = append(data, opts.BarData{Value: barValue(byPolicy[p][n])})
		}

		bar.AddSeries(string(p), data, charts.WithItemStyleOpts(opts.ItemStyle{Color: co.color(i)}))
	}

	return bar
}

func rotated(axis opts.XAxis) opts.XAxis {
	axis.AxisLabel.Rotate = xAxisRotate
	axis.AxisLabel.Interval = "0"

	return axis
}

// barValue maps a not applicable value to the echarts empty placeholder.
func barValue(v blockstats.Value) any {
	f, ok := v.Float()
	if !ok {
		return emptyPlaceholder
	}

	return f
}
