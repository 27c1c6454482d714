package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "auto", cfg.Input.Format)
	assert.True(t, cfg.Input.Validate)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "cacheanalysis", cfg.Telemetry.ServiceName)
	assert.Equal(t, []string{"lru", "arc"}, cfg.Simulate.Policies)
	assert.Equal(t, []int{16, 64, 256}, cfg.Simulate.Capacities)
	assert.Equal(t, 20, cfg.Analysis.Top)

	maxSize, err := cfg.Input.MaxSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), maxSize)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
input:
  format: yaml
  max_size: 10MB
analysis:
  multiset: true
  top: 5
output:
  format: plot
  theme: light
simulate:
  policies: [arc]
  capacities: [8, 32]
telemetry:
  metrics_file: /tmp/cacheanalysis.prom
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml", cfg.Input.Format)
	assert.True(t, cfg.Analysis.Multiset)
	assert.Equal(t, 5, cfg.Analysis.Top)
	assert.Equal(t, "plot", cfg.Output.Format)
	assert.Equal(t, "light", cfg.Output.Theme)
	assert.Equal(t, []string{"arc"}, cfg.Simulate.Policies)
	assert.Equal(t, []int{8, 32}, cfg.Simulate.Capacities)
	assert.Equal(t, "/tmp/cacheanalysis.prom", cfg.Telemetry.MetricsFile)

	maxSize, err := cfg.Input.MaxSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), maxSize)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("CACHEANALYSIS_OUTPUT_FORMAT", "json")
	t.Setenv("CACHEANALYSIS_LOGGING_LEVEL", "debug")
	t.Setenv("CACHEANALYSIS_ANALYSIS_MULTISET", "true")

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Analysis.Multiset)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"output_format", "output:\n  format: csv\n", config.ErrInvalidFormat},
		{"log_level", "logging:\n  level: loud\n", config.ErrInvalidLevel},
		{"max_size", "input:\n  max_size: lots\n", config.ErrInvalidSize},
		{"capacity", "simulate:\n  capacities: [0]\n", config.ErrInvalidCapacity},
		{"top", "analysis:\n  top: -1\n", config.ErrInvalidTop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, config.ErrInvalidConfig)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	require.NoError(t, config.Default().Validate())
}
