package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/analysis"
)

const (
	metricEventsTotal   = "cacheanalysis.events.total"
	metricBlocks        = "cacheanalysis.blocks"
	metricFiles         = "cacheanalysis.files"
	metricOrphanHits    = "cacheanalysis.orphan_hits"
	metricBytesLoaded   = "cacheanalysis.loaded"
	metricPartitionRate = "cacheanalysis.partition.hit_miss_ratio"

	attrKind  = "kind"
	attrGroup = "group"
)

// AnalysisMetrics holds the gauges describing one analysed log.
type AnalysisMetrics struct {
	events      metric.Int64Gauge
	blocks      metric.Int64Gauge
	files       metric.Int64Gauge
	orphanHits  metric.Int64Gauge
	bytesLoaded metric.Int64Gauge
	groupRatio  metric.Float64Gauge
}

// NewAnalysisMetrics creates analysis instruments from the given meter.
func NewAnalysisMetrics(mt metric.Meter) (*AnalysisMetrics, error) {
	events, err := mt.Int64Gauge(metricEventsTotal,
		metric.WithDescription("Events in the analysed log by kind"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEventsTotal, err)
	}

	blocks, err := mt.Int64Gauge(metricBlocks,
		metric.WithDescription("Distinct blocks with at least one event"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBlocks, err)
	}

	files, err := mt.Int64Gauge(metricFiles,
		metric.WithDescription("Registered block files"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFiles, err)
	}

	orphans, err := mt.Int64Gauge(metricOrphanHits,
		metric.WithDescription("Hits observed while the block was not loaded"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOrphanHits, err)
	}

	loaded, err := mt.Int64Gauge(metricBytesLoaded,
		metric.WithDescription("Bytes loaded into the cache by misses"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBytesLoaded, err)
	}

	ratio, err := mt.Float64Gauge(metricPartitionRate,
		metric.WithDescription("Sum of hits over sum of misses per block group"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPartitionRate, err)
	}

	return &AnalysisMetrics{
		events:      events,
		blocks:      blocks,
		files:       files,
		orphanHits:  orphans,
		bytesLoaded: loaded,
		groupRatio:  ratio,
	}, nil
}

// RecordReport records rep's figures. Groups whose ratio is not applicable are
// not recorded. Safe to call on a nil receiver (no-op).
func (am *AnalysisMetrics) RecordReport(ctx context.Context, rep analysis.Report) {
	if am == nil {
		return
	}

	ov := rep.Overview

	for kind, n := range map[string]int{"miss": ov.Misses, "hit": ov.Hits, "delete": ov.Deletes} {
		am.events.Record(ctx, int64(n), metric.WithAttributes(attribute.String(attrKind, kind)))
	}

	am.blocks.Record(ctx, int64(ov.Blocks))
	am.files.Record(ctx, int64(ov.Files))
	am.orphanHits.Record(ctx, int64(ov.OrphanHits))
	am.bytesLoaded.Record(ctx, ov.BytesLoaded)

	for _, g := range rep.Partition.Groups() {
		if v, ok := g.HitMissRatio.Float(); ok {
			am.groupRatio.Record(ctx, v, metric.WithAttributes(attribute.String(attrGroup, g.Name)))
		}
	}
}
