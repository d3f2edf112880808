package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

// TableFormatter helps format tabular output
type TableFormatter struct {
	writer *tabwriter.Writer
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	return &TableFormatter{writer: tw}
}

// Header writes the column titles and a rule under them
func (t *TableFormatter) Header(columns ...string) {
	fmt.Fprintln(t.writer, strings.Join(columns, "\t"))
	rules := make([]string, len(columns))
	for i, c := range columns {
		rules[i] = strings.Repeat("-", max(len(c), 4))
	}
	fmt.Fprintln(t.writer, strings.Join(rules, "\t"))
}

// Row writes a table row
func (t *TableFormatter) Row(values ...string) {
	fmt.Fprintln(t.writer, strings.Join(values, "\t"))
}

// Flush writes the buffered table to output
func (t *TableFormatter) Flush() error {
	return t.writer.Flush()
}

// OutputResults writes data as json or yaml. For text the caller renders
// the data itself and this only prints its default formatting.
func OutputResults(w io.Writer, format string, data any) error {
	switch OutputFormat(format) {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()

	case FormatText, "":
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err

	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// IsStructured reports whether format is rendered by OutputResults
func IsStructured(format string) bool {
	return OutputFormat(format) == FormatJSON || OutputFormat(format) == FormatYAML
}

// TruncateString shortens s to maxLen runes, marking the cut with "..."
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// FormatStrength renders a strength the way the stack shows it
func FormatStrength(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// FormatTags joins tags for a table cell, colored unless color is off
func FormatTags(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = ColorizeTag(t)
	}
	return strings.Join(out, ",")
}

// ColorizeTag paints a tag with its palette color
func ColorizeTag(tag string) string {
	if noColor {
		return tag
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(models.GetTagColor(tag))).Render(tag)
}

// CheckMark renders a boolean column
func CheckMark(v bool) string {
	if v {
		return "✓"
	}
	return " "
}
