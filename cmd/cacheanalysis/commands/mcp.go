package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/mcp"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

Tools (each takes the path of a trace document, loaded fresh per call):
  - cache_overview: event totals, orphan hits and the overall hit/miss ratio
  - cache_block: statistics for a single block hash
  - cache_partition: referenced vs unreferenced ratio and per-file summaries`,
		Args: cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cobraCmd)
			if err != nil {
				return err
			}

			cfg.Logging.Format = "json"

			if debug {
				cfg.Logging.Level = "debug"
			}

			providers, err := startTelemetry(cfg, observability.ModeMCP, cobraCmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer shutdownTelemetry(providers)

			opts, err := decodeOptions(cfg)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:      providers.Logger,
				Tracer:      providers.Tracer,
				LoadOptions: opts,
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}
