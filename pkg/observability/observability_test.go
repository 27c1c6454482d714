package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/analysis"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/blockfile"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/observability"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/record"
)

func TestInit_NoopWhenNoEndpoint(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)

	_, span := providers.Tracer.Start(context.Background(), "test-op")
	span.End()

	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_LoggerHonoursConfig(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true
	cfg.LogLevel = slog.LevelWarn
	cfg.LogOutput = &buf
	cfg.Mode = observability.ModeMCP
	cfg.ServiceVersion = "1.2.3"

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	providers.Logger.Info("dropped")
	providers.Logger.Warn("kept")

	var rec map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "cacheanalysis", rec["service"])
	assert.Equal(t, "mcp", rec["mode"])
	assert.Equal(t, "1.2.3", rec["version"])
}

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "svc", "", observability.ModeCLI))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.WithGroup("load").InfoContext(ctx, "loaded", "records", 3)

	var rec map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "svc", rec["service"])
	assert.Equal(t, "cli", rec["mode"])
	assert.NotContains(t, rec, "version")

	group, ok := rec["load"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", group["trace_id"])
	assert.InDelta(t, 3, group["records"], 0)
}

func TestTracingHandler_NoSpan(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	slog.New(observability.NewTracingHandler(inner, "svc", "", observability.ModeCLI)).Info("plain")

	assert.NotContains(t, buf.String(), "trace_id")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "": slog.LevelInfo, "WARN": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := observability.ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := observability.ParseLevel("verbose")
	require.ErrorIs(t, err, observability.ErrInvalidLevel)
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, observability.ParseOTLPHeaders(""))
	assert.Nil(t, observability.ParseOTLPHeaders("garbage"))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, observability.ParseOTLPHeaders("a=1, b = 2"))
}

func TestTextfileExporter_WritesAnalysisGauges(t *testing.T) {
	t.Parallel()

	ts := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)

	store := record.NewStore()
	require.NoError(t, store.AddAll([]record.Record{
		record.NewMiss("a", ts, 4096),
		record.NewHit("a", ts.Add(time.Second)),
		record.NewMiss("b", ts.Add(2*time.Second), 4096),
	}))

	reg := blockfile.NewRegistry()
	reg.Register(blockfile.BlockFile{Name: "f", BlockHashes: []string{"a"}})

	rep := analysis.New(store, analysis.WithRegistry(reg)).Report()

	exporter, err := observability.NewTextfileExporter()
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, exporter.Shutdown(context.Background())) })

	metrics, err := observability.NewAnalysisMetrics(exporter.Meter())
	require.NoError(t, err)

	metrics.RecordReport(context.Background(), rep)

	path := filepath.Join(t.TempDir(), "cacheanalysis.prom")
	require.NoError(t, exporter.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "cacheanalysis_blocks")
	assert.Contains(t, out, `kind="miss"`)
	assert.Contains(t, out, `group="referenced"`)
	assert.Contains(t, out, "cacheanalysis_loaded_bytes")
}

func TestAnalysisMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var metrics *observability.AnalysisMetrics

	assert.NotPanics(t, func() { metrics.RecordReport(context.Background(), analysis.Report{}) })
}
