package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"levelscope/internal/analysis"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	boldColor    = color.New(color.Bold)
	dimColor     = color.New(color.Faint)
)

// Output handles formatted output for the CLI.
type Output struct {
	writer   io.Writer
	jsonMode bool
}

// NewOutput creates a new Output instance. Colors follow color.NoColor,
// which is set from --no-color, the config and whether stdout is a terminal.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:   cmd.OutOrStdout(),
		jsonMode: jsonMode,
	}
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

func (o *Output) line(c *color.Color, format string, args ...interface{}) {
	if o.jsonMode {
		return
	}
	c.Fprintln(o.writer, fmt.Sprintf(format, args...))
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) { o.line(successColor, format, args...) }

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) { o.line(errorColor, format, args...) }

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) { o.line(warnColor, format, args...) }

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) { o.line(infoColor, format, args...) }

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) { o.line(boldColor, format, args...) }

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) { o.line(dimColor, format, args...) }

// Green returns green colored text.
func (o *Output) Green(text string) string { return successColor.Sprint(text) }

// Red returns red colored text.
func (o *Output) Red(text string) string { return errorColor.Sprint(text) }

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string { return warnColor.Sprint(text) }

// DimText returns dimmed text.
func (o *Output) DimText(text string) string { return dimColor.Sprint(text) }

// LevelType colors a level type: support green, resistance red.
func (o *Output) LevelType(t analysis.LevelType) string {
	if t == analysis.LevelSupport {
		return o.Green(string(t))
	}
	return o.Red(string(t))
}

// Zone colors a confluence zone type.
func (o *Output) Zone(t analysis.ZoneType) string {
	switch t {
	case analysis.ZoneSupport:
		return o.Green(string(t))
	case analysis.ZoneResistance:
		return o.Red(string(t))
	default:
		return o.Yellow(string(t))
	}
}

// Bias colors a market bias.
func (o *Output) Bias(b analysis.MarketBias) string {
	switch b {
	case analysis.BiasBullish:
		return o.Green("▲ " + strings.ToUpper(string(b)))
	case analysis.BiasBearish:
		return o.Red("▼ " + strings.ToUpper(string(b)))
	default:
		return o.Yellow("→ " + strings.ToUpper(string(b)))
	}
}

// Status colors a liquidity grab confirmation status.
func (o *Output) Status(s analysis.ConfirmationStatus) string {
	switch s {
	case analysis.ConfirmationConfirmed:
		return o.Green(string(s))
	case analysis.ConfirmationFailed:
		return o.Red(string(s))
	default:
		return o.Yellow(string(s))
	}
}

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		output:  output,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], visibleLen(cell))
			}
		}
	}

	t.printRow(t.headers, widths, true)
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w)
	}
	t.output.Println(dimColor.Sprint(strings.Join(parts, "──")))

	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	var parts []string
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padded := cell + strings.Repeat(" ", max(0, widths[i]-visibleLen(cell)))
		if isHeader {
			padded = boldColor.Sprint(padded)
		}
		parts = append(parts, padded)
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

// visibleLen is the printed width of s, ignoring ANSI escapes.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			n++
		}
	}
	return n
}
