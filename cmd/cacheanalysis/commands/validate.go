package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/decode"
)

// ErrValidationFailed is returned when at least one document is invalid.
var ErrValidationFailed = errors.New("validation failed")

// ValidateCommand holds configuration for the validate command.
type ValidateCommand struct {
	inputFormat string
	noColor     bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	vc := &ValidateCommand{}

	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Check trace documents without analysing them",
		Long: `Check each document against the input JSON schema, then decode every
record to catch unknown types and malformed timestamps.`,
		Args: cobra.MinimumNArgs(1),
		RunE: vc.run,
	}

	cmd.Flags().StringVar(&vc.inputFormat, "input-format", "", "Input format: auto, json, yaml (overrides config)")
	cmd.Flags().BoolVar(&vc.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func (vc *ValidateCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("input-format") {
		cfg.Input.Format = vc.inputFormat
	}

	opts, err := decodeOptions(cfg)
	if err != nil {
		return err
	}

	opts.Validate = true

	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	if vc.noColor || cfg.Output.NoColor {
		ok.DisableColor()
		bad.DisableColor()
	}

	out := cmd.OutOrStdout()
	failed := 0

	for _, path := range args {
		records, refs, checkErr := vc.check(cmd, path, opts)
		if checkErr != nil {
			failed++

			bad.Fprintf(out, "FAIL %s: %v\n", path, checkErr)

			continue
		}

		ok.Fprintf(out, "OK   %s: %d records, %d references\n", path, records, refs)
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d documents", ErrValidationFailed, failed, len(args))
	}

	return nil
}

func (vc *ValidateCommand) check(cmd *cobra.Command, path string, opts decode.Options) (int, int, error) {
	var in io.Reader = cmd.InOrStdin()

	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return 0, 0, fmt.Errorf("open input: %w", err)
		}

		defer f.Close()

		in = f
	}

	doc, err := decode.Read(cmd.Context(), in, path, opts)
	if err != nil {
		return 0, 0, err
	}

	records, err := doc.ToRecords()
	if err != nil {
		return 0, 0, err
	}

	return len(records), len(doc.References), nil
}
