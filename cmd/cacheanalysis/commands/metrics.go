package commands

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/analysis"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/observability"
)

// recordMetrics publishes rep through the OTLP meter and, when metricsFile is
// set, through a Prometheus textfile.
func recordMetrics(ctx context.Context, providers observability.Providers, metricsFile string, rep analysis.Report) error {
	otlp, err := observability.NewAnalysisMetrics(providers.Meter)
	if err != nil {
		return err
	}

	otlp.RecordReport(ctx, rep)

	if metricsFile == "" {
		return nil
	}

	exporter, err := observability.NewTextfileExporter()
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := exporter.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("textfile exporter shutdown failed", "error", shutdownErr)
		}
	}()

	textfile, err := observability.NewAnalysisMetrics(exporter.Meter())
	if err != nil {
		return err
	}

	textfile.RecordReport(ctx, rep)

	err = exporter.WriteFile(metricsFile)
	if err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}

	providers.Logger.DebugContext(ctx, "metrics file written", "path", metricsFile)

	return nil
}
