package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/analysis"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/config"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/decode"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/observability"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/report"
)

// outputFlags are the rendering flags shared by analyze and simulate.
type outputFlags struct {
	format  string
	theme   string
	noColor bool
	output  string
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Output format: text, json, yaml, plot (overrides config)")
	cmd.Flags().StringVar(&f.theme, "theme", "", "Plot theme: light, dark (overrides config)")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colored text output")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write the report to a file instead of stdout")
}

func (f *outputFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("format") {
		cfg.Output.Format = f.format
	}

	if flags.Changed("theme") {
		cfg.Output.Theme = f.theme
	}

	if f.noColor {
		cfg.Output.NoColor = true
	}
}

func (f *outputFlags) options(cfg *config.Config, title string) (report.Options, error) {
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return report.Options{}, err
	}

	theme, err := report.ParseTheme(cfg.Output.Theme)
	if err != nil {
		return report.Options{}, err
	}

	return report.Options{
		Format:  format,
		Theme:   theme,
		NoColor: cfg.Output.NoColor,
		Top:     cfg.Analysis.Top,
		Title:   title,
	}, nil
}

// writer opens the --output file, or returns fallback with a no-op closer.
func (f *outputFlags) writer(fallback io.Writer) (io.Writer, func() error, error) {
	if f.output == "" {
		return fallback, func() error { return nil }, nil
	}

	file, err := os.Create(f.output)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}

	return file, file.Close, nil
}

// AnalyzeCommand holds configuration and dependencies for the analyze command.
type AnalyzeCommand struct {
	input       inputFlags
	out         outputFlags
	top         int
	metricsFile string

	load documentLoader
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	return newAnalyzeCommandWithDeps(decode.LoadFile)
}

func newAnalyzeCommandWithDeps(load documentLoader) *cobra.Command {
	ac := &AnalyzeCommand{load: load}

	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyse a cache trace document",
		Long: `Analyse a JSON or YAML cache trace document (optionally zstd or lz4
compressed). Reads standard input when path is omitted or "-".

The report covers event totals, the referenced/unreferenced partition,
per-file and per-block statistics and block residency over time.`,
		Args: cobra.MaximumNArgs(1),
		RunE: ac.run,
	}

	ac.input.register(cmd)
	ac.out.register(cmd)
	cmd.Flags().IntVar(&ac.top, "top", 0, "Rows shown in the block table and bar charts, 0 for all (overrides config)")
	cmd.Flags().StringVar(&ac.metricsFile, "metrics-file", "", "Write analysis gauges to a Prometheus textfile (overrides config)")

	return cmd
}

func (ac *AnalyzeCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ac.out.apply(cmd, cfg)

	if cmd.Flags().Changed("top") {
		cfg.Analysis.Top = ac.top
	}

	if cmd.Flags().Changed("metrics-file") {
		cfg.Telemetry.MetricsFile = ac.metricsFile
	}

	err = ac.input.apply(cmd, cfg)
	if err != nil {
		return err
	}

	providers, err := startTelemetry(cfg, observability.ModeCLI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	defer shutdownTelemetry(providers)

	ctx, span := providers.Tracer.Start(cmd.Context(), "cacheanalysis.analyze")
	defer span.End()

	path := inputPath(args)

	opts, err := decodeOptions(cfg)
	if err != nil {
		return err
	}

	res, err := ac.load(ctx, path, opts)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	providers.Logger.InfoContext(ctx, "document loaded",
		"path", path, "records", res.Store.Len(), "files", res.Registry.Len())

	rep := analysis.New(res.Store,
		analysis.WithRegistry(res.Registry),
		analysis.WithLogger(providers.Logger),
	).Report()

	err = recordMetrics(ctx, providers, cfg.Telemetry.MetricsFile, rep)
	if err != nil {
		return err
	}

	renderOpts, err := ac.out.options(cfg, "Cache analysis: "+path)
	if err != nil {
		return err
	}

	w, closeOut, err := ac.out.writer(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	err = report.Render(w, rep, renderOpts)
	if err != nil {
		_ = closeOut()

		return fmt.Errorf("render report: %w", err)
	}

	return closeOut()
}
