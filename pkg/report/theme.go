package report

import (
	"fmt"
	"strings"

	"github.com/go-echarts/go-echarts/v2/opts"
)

// Theme is a plot color theme.
type Theme string

// Themes.
const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme resolves a theme name. The empty string means dark.
func ParseTheme(name string) (Theme, error) {
	switch t := Theme(strings.ToLower(name)); t {
	case "":
		return ThemeDark, nil
	case ThemeLight, ThemeDark:
		return t, nil
	default:
		return "", fmt.Errorf("%w: theme %q", ErrUnknownFormat, name)
	}
}

// themeConfig holds the chart colors of a theme.
type themeConfig struct {
	background string
	grid       string
	axis       string
	text       string
	textMuted  string
	series     []string
	good       string
	bad        string
}

var lightTheme = themeConfig{
	background: "#fafaf9", // stone-50.
	grid:       "#e7e5e4", // stone-200.
	axis:       "#a8a29e", // stone-400.
	text:       "#44403c", // stone-700.
	textMuted:  "#78716c", // stone-500.
	series:     []string{"#a16207", "#0369a1", "#4d7c0f", "#7c3aed"},
	good:       "#16a34a",
	bad:        "#dc2626",
}

var darkTheme = themeConfig{
	background: "#0c0a09", // stone-950.
	grid:       "#44403c", // stone-700.
	axis:       "#57534e", // stone-600.
	text:       "#d6d3d1", // stone-300.
	textMuted:  "#a8a29e", // stone-400.
	series:     []string{"#fbbf24", "#38bdf8", "#a3e635", "#a78bfa"},
	good:       "#4ade80",
	bad:        "#f87171",
}

func getThemeConfig(theme Theme) themeConfig {
	if theme == ThemeLight {
		return lightTheme
	}

	return darkTheme
}

// dataZoomEndPercent shows the whole axis initially.
const dataZoomEndPercent = 100

// chartOpts provides themed chart options.
type chartOpts struct {
	theme themeConfig
}

func newChartOpts(theme Theme) *chartOpts {
	return &chartOpts{theme: getThemeConfig(theme)}
}

func (c *chartOpts) color(i int) string {
	return c.theme.series[i%len(c.theme.series)]
}

func (c *chartOpts) Init(width, height string) opts.Initialization {
	return opts.Initialization{
		Width:           width,
		Height:          height,
		BackgroundColor: c.theme.background,
	}
}

func (c *chartOpts) Title(title, subtitle string) opts.Title {
	return opts.Title{
		Title:         title,
		Subtitle:      subtitle,
		Left:          "center",
		TitleStyle:    &opts.TextStyle{Color: c.theme.text},
		SubtitleStyle: &opts.TextStyle{Color: c.theme.textMuted},
	}
}

func (c *chartOpts) Legend() opts.Legend {
	return opts.Legend{
		Show:      opts.Bool(true),
		Top:       "10%",
		Left:      "center",
		TextStyle: &opts.TextStyle{Color: c.theme.textMuted},
	}
}

func (c *chartOpts) XAxis(name string) opts.XAxis {
	return opts.XAxis{
		Name:      name,
		AxisLabel: &opts.AxisLabel{Color: c.theme.textMuted},
		AxisLine:  &opts.AxisLine{LineStyle: &opts.LineStyle{Color: c.theme.axis}},
	}
}

func (c *chartOpts) YAxis(name string) opts.YAxis {
	return opts.YAxis{
		Name:      name,
		AxisLabel: &opts.AxisLabel{Color: c.theme.textMuted},
		AxisLine:  &opts.AxisLine{LineStyle: &opts.LineStyle{Color: c.theme.axis}},
		SplitLine: &opts.SplitLine{
			Show:      opts.Bool(true),
			LineStyle: &opts.LineStyle{Color: c.theme.grid},
		},
	}
}

func (c *chartOpts) Grid() opts.Grid {
	return opts.Grid{
		Top:          "20%",
		Bottom:       "15%",
		Left:         "5%",
		Right:        "5%",
		ContainLabel: opts.Bool(true),
	}
}

func (c *chartOpts) DataZoom() []opts.DataZoom {
	return []opts.DataZoom{
		{Type: "slider", Start: 0, End: dataZoomEndPercent},
		{Type: "inside"},
	}
}

func (c *chartOpts) Tooltip(trigger string) opts.Tooltip {
	return opts.Tooltip{Show: opts.Bool(true), Trigger: trigger}
}
