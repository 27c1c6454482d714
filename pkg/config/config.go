// Package config provides configuration loading and validation for cacheanalysis.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrInvalidFormat   = errors.New("invalid format")
	ErrInvalidLevel    = errors.New("invalid log level")
	ErrInvalidSize     = errors.New("invalid size")
	ErrInvalidCapacity = errors.New("simulation capacities must be positive")
	ErrInvalidTop      = errors.New("top must not be negative")
)

// Default configuration values.
const (
	defaultInputFormat  = "auto"
	defaultMaxSize      = "1GiB"
	defaultOutputFormat = "text"
	defaultTheme        = "dark"
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
	defaultServiceName  = "cacheanalysis"
	defaultTop          = 20
	envPrefix           = "CACHEANALYSIS"
)

var (
	defaultPolicies   = []string{"lru", "arc"}
	defaultCapacities = []int{16, 64, 256}

	inputFormats  = []string{"auto", "json", "yaml"}
	outputFormats = []string{"text", "json", "yaml", "plot"}
	themes        = []string{"light", "dark"}
	logLevels     = []string{"debug", "info", "warn", "error"}
	logFormats    = []string{"text", "json"}
)

// Config holds all configuration for cacheanalysis.
type Config struct {
	Input     InputConfig     `mapstructure:"input"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Simulate  SimulateConfig  `mapstructure:"simulate"`
}

// InputConfig controls document decoding.
type InputConfig struct {
	Format   string `mapstructure:"format"`
	MaxSize  string `mapstructure:"max_size"`
	Validate bool   `mapstructure:"validate"`
}

// MaxSizeBytes parses MaxSize. "0" and the empty string disable the cap.
func (c InputConfig) MaxSizeBytes() (int64, error) {
	if c.MaxSize == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(c.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("%w: input.max_size %q: %w", ErrInvalidSize, c.MaxSize, err)
	}

	return int64(min(n, uint64(1)<<62)), nil
}

// AnalysisConfig controls the record store and summaries.
type AnalysisConfig struct {
	// Multiset keeps records that are identical by value instead of collapsing them.
	Multiset bool `mapstructure:"multiset"`
	// Top caps per-block rows in text and plot output. Zero shows every block.
	Top int `mapstructure:"top"`
}

// OutputConfig controls rendering.
type OutputConfig struct {
	Format  string `mapstructure:"format"`
	Theme   string `mapstructure:"theme"`
	NoColor bool   `mapstructure:"no_color"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds tracing and metrics export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
	// MetricsFile is a Prometheus textfile written after each analysis.
	MetricsFile  string `mapstructure:"metrics_file"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// SimulateConfig holds the policy simulation defaults.
type SimulateConfig struct {
	Policies   []string `mapstructure:"policies"`
	Capacities []int    `mapstructure:"capacities"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/cacheanalysis")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, validateErr)
	}

	return &config, nil
}

// Default returns the configuration used when no file or environment is set.
func Default() *Config {
	return &Config{
		Input:     InputConfig{Format: defaultInputFormat, MaxSize: defaultMaxSize, Validate: true},
		Analysis:  AnalysisConfig{Top: defaultTop},
		Output:    OutputConfig{Format: defaultOutputFormat, Theme: defaultTheme},
		Logging:   LoggingConfig{Level: defaultLogLevel, Format: defaultLogFormat},
		Telemetry: TelemetryConfig{ServiceName: defaultServiceName},
		Simulate: SimulateConfig{
			Policies:   slices.Clone(defaultPolicies),
			Capacities: slices.Clone(defaultCapacities),
		},
	}
}

func setDefaults(viperCfg *viper.Viper) {
	def := Default()

	viperCfg.SetDefault("input.format", def.Input.Format)
	viperCfg.SetDefault("input.validate", def.Input.Validate)
	viperCfg.SetDefault("input.max_size", def.Input.MaxSize)

	viperCfg.SetDefault("analysis.multiset", def.Analysis.Multiset)
	viperCfg.SetDefault("analysis.top", def.Analysis.Top)

	viperCfg.SetDefault("output.format", def.Output.Format)
	viperCfg.SetDefault("output.theme", def.Output.Theme)
	viperCfg.SetDefault("output.no_color", def.Output.NoColor)

	viperCfg.SetDefault("logging.level", def.Logging.Level)
	viperCfg.SetDefault("logging.format", def.Logging.Format)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_file", "")
	viperCfg.SetDefault("telemetry.service_name", def.Telemetry.ServiceName)

	viperCfg.SetDefault("simulate.policies", def.Simulate.Policies)
	viperCfg.SetDefault("simulate.capacities", def.Simulate.Capacities)
}

// Validate checks every enumerated and numeric setting.
func (c *Config) Validate() error {
	checks := []struct {
		field, value string
		allowed      []string
		err          error
	}{
		{"input.format", c.Input.Format, inputFormats, ErrInvalidFormat},
		{"output.format", c.Output.Format, outputFormats, ErrInvalidFormat},
		{"output.theme", c.Output.Theme, themes, ErrInvalidFormat},
		{"logging.level", c.Logging.Level, logLevels, ErrInvalidLevel},
		{"logging.format", c.Logging.Format, logFormats, ErrInvalidFormat},
	}

	for _, chk := range checks {
		if !slices.Contains(chk.allowed, strings.ToLower(chk.value)) {
			return fmt.Errorf("%w: %s %q (want one of %s)", chk.err, chk.field, chk.value, strings.Join(chk.allowed, ", "))
		}
	}

	_, err := c.Input.MaxSizeBytes()
	if err != nil {
		return err
	}

	if c.Analysis.Top < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTop, c.Analysis.Top)
	}

	for _, capacity := range c.Simulate.Capacities {
		if capacity < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
		}
	}

	return nil
}
