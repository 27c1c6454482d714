package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/decode"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/observability"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/report"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/simulate"
)

// SimulateCommand holds configuration and dependencies for the simulate command.
type SimulateCommand struct {
	input      inputFlags
	out        outputFlags
	policies   []string
	capacities []int

	load documentLoader
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand() *cobra.Command {
	return newSimulateCommandWithDeps(decode.LoadFile)
}

func newSimulateCommandWithDeps(load documentLoader) *cobra.Command {
	sc := &SimulateCommand{load: load}

	cmd := &cobra.Command{
		Use:   "simulate [path]",
		Short: "Replay a trace against LRU and ARC caches",
		Long: `Replay every miss and hit of a trace document as an access against
simulated caches and compare their hit/miss ratio with the observed one.
Deletes are not replayed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: sc.run,
	}

	sc.input.register(cmd)
	sc.out.register(cmd)
	cmd.Flags().StringSliceVarP(&sc.policies, "policy", "p", nil, "Policies to simulate: lru, arc (overrides config)")
	cmd.Flags().IntSliceVarP(&sc.capacities, "capacity", "c", nil, "Cache capacities in blocks (overrides config)")

	return cmd
}

func (sc *SimulateCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sc.out.apply(cmd, cfg)

	if cmd.Flags().Changed("policy") {
		cfg.Simulate.Policies = sc.policies
	}

	if cmd.Flags().Changed("capacity") {
		cfg.Simulate.Capacities = sc.capacities
	}

	err = sc.input.apply(cmd, cfg)
	if err != nil {
		return err
	}

	policies := make([]simulate.Policy, 0, len(cfg.Simulate.Policies))

	for _, name := range cfg.Simulate.Policies {
		policy, parseErr := simulate.ParsePolicy(name)
		if parseErr != nil {
			return parseErr
		}

		policies = append(policies, policy)
	}

	providers, err := startTelemetry(cfg, observability.ModeCLI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	defer shutdownTelemetry(providers)

	ctx, span := providers.Tracer.Start(cmd.Context(), "cacheanalysis.simulate")
	defer span.End()

	path := inputPath(args)

	opts, err := decodeOptions(cfg)
	if err != nil {
		return err
	}

	res, err := sc.load(ctx, path, opts)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	cmp, err := simulate.Compare(ctx, res.Store, policies, cfg.Simulate.Capacities)
	if err != nil {
		return err
	}

	providers.Logger.InfoContext(ctx, "simulation finished",
		"path", path, "accesses", accesses(cmp), "runs", len(cmp.Results))

	renderOpts, err := sc.out.options(cfg, "Cache simulation: "+path)
	if err != nil {
		return err
	}

	w, closeOut, err := sc.out.writer(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	err = report.RenderComparison(w, cmp, renderOpts)
	if err != nil {
		_ = closeOut()

		return fmt.Errorf("render simulation: %w", err)
	}

	return closeOut()
}

func accesses(cmp simulate.Comparison) int {
	if len(cmp.Results) == 0 {
		return 0
	}

	return cmp.Results[0].Accesses
}
