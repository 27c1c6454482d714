// Package commands implements CLI command handlers for cacheanalysis.
package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/config"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/decode"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/observability"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/record"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/version"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
)

// documentLoader reads and ingests a trace document.
type documentLoader func(ctx context.Context, path string, opts decode.Options) (*decode.Result, error)

// NewRootCommand builds the cacheanalysis command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cacheanalysis",
		Short: "Offline analysis of block cache traces",
		Long: `cacheanalysis replays recorded block cache events (misses, hits and
deletes) and reports per-block reuse, reload gaps and the hit/miss ratio of
blocks referenced by block files against unreferenced blocks.

Commands:
  analyze   Analyse a trace document
  validate  Check trace documents against the input schema
  simulate  Replay a trace against LRU and ARC caches
  mcp       Serve the analysis as MCP tools on stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(flagConfig, "", "Path to a config file (default: ./config.yaml, ./config, /etc/cacheanalysis)")
	rootCmd.PersistentFlags().String(flagLogLevel, "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(NewAnalyzeCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewSimulateCommand())
	rootCmd.AddCommand(NewMCPCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// NewVersionCommand prints build metadata.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cacheanalysis %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}

// loadConfig reads the file named by --config (or the default search path)
// and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(stringFlag(cmd, flagConfig))
	if err != nil {
		return nil, err
	}

	if level := stringFlag(cmd, flagLogLevel); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}

// stringFlag returns the value of a possibly inherited flag, or "" when the
// command tree does not define it.
func stringFlag(cmd *cobra.Command, name string) string {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		return ""
	}

	return flag.Value.String()
}

// startTelemetry initialises logging, tracing and OTLP metrics from cfg.
func startTelemetry(cfg *config.Config, mode observability.AppMode, logOut io.Writer) (observability.Providers, error) {
	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Providers{}, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceName = cfg.Telemetry.ServiceName
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.LogLevel = level
	obsCfg.LogJSON = strings.EqualFold(cfg.Logging.Format, "json")
	obsCfg.LogOutput = logOut

	return observability.Init(obsCfg)
}

// shutdownTelemetry flushes providers and logs a failure instead of masking
// the command error.
func shutdownTelemetry(providers observability.Providers) {
	err := providers.Shutdown(context.Background())
	if err != nil {
		providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// decodeOptions maps the input section of cfg onto decode options.
func decodeOptions(cfg *config.Config) (decode.Options, error) {
	format, err := decode.ParseFormat(cfg.Input.Format)
	if err != nil {
		return decode.Options{}, err
	}

	maxSize, err := cfg.Input.MaxSizeBytes()
	if err != nil {
		return decode.Options{}, err
	}

	opts := decode.Options{
		Format:   format,
		Validate: cfg.Input.Validate,
		MaxSize:  maxSize,
	}

	if cfg.Analysis.Multiset {
		opts.StoreOptions = append(opts.StoreOptions, record.WithMultiset())
	}

	return opts, nil
}

// inputFlags are the document flags shared by analyze and simulate.
type inputFlags struct {
	inputFormat string
	maxSize     string
	noValidate  bool
	multiset    bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.inputFormat, "input-format", "", "Input format: auto, json, yaml (overrides config)")
	cmd.Flags().StringVar(&f.maxSize, "max-size", "", "Maximum decompressed input size, e.g. 512MiB (overrides config)")
	cmd.Flags().BoolVar(&f.noValidate, "no-validate", false, "Skip JSON schema validation of the input")
	cmd.Flags().BoolVar(&f.multiset, "multiset", false, "Keep duplicate records instead of collapsing them")
}

// apply copies explicitly set flags over cfg and revalidates it.
func (f *inputFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("input-format") {
		cfg.Input.Format = f.inputFormat
	}

	if flags.Changed("max-size") {
		cfg.Input.MaxSize = f.maxSize
	}

	if f.noValidate {
		cfg.Input.Validate = false
	}

	if f.multiset {
		cfg.Analysis.Multiset = true
	}

	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	return nil
}

// inputPath returns the single positional argument, "-" when absent.
func inputPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	return "-"
}
