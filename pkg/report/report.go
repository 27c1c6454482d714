// Package report renders analysis results as JSON, YAML, text tables or an
// HTML chart page.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/analysis"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/simulate"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Format names an output format.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatPlot Format = "plot"
)

// Formats lists every output format.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatPlot}

// ParseFormat resolves a format name. The empty string means text.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatPlot:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Options controls rendering.
type Options struct {
	Format Format
	Theme  Theme
	// NoColor disables ANSI colors in text output.
	NoColor bool
	// Top caps the per-block rows and bars. Zero shows every block.
	Top int
	// Title is used as the plot page title.
	Title string
}

// Render writes rep in the requested format.
func Render(w io.Writer, rep analysis.Report, opts Options) error {
	switch opts.Format {
	case FormatText, "":
		return RenderText(w, rep, opts)
	case FormatJSON:
		return writeJSON(w, rep)
	case FormatYAML:
		return writeYAML(w, rep)
	case FormatPlot:
		return RenderPlot(w, rep, opts)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

// RenderComparison writes simulation results in the requested format.
func RenderComparison(w io.Writer, cmp simulate.Comparison, opts Options) error {
	switch opts.Format {
	case FormatText, "":
		return RenderComparisonText(w, cmp, opts)
	case FormatJSON:
		return writeJSON(w, cmp)
	case FormatYAML:
		return writeYAML(w, cmp)
	case FormatPlot:
		return RenderComparisonPlot(w, cmp, opts)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal to JSON: %w", err)
	}

	data = append(data, '\n')

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write JSON: %w", err)
	}

	return nil
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal to YAML: %w", err)
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write YAML: %w", err)
	}

	return nil
}
