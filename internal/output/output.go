// Package output renders command results as JSON, YAML, tables or markdown.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates and normalizes a format string. Empty means JSON.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatJSON):
		return FormatJSON, nil
	case string(FormatTable):
		return FormatTable, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// Extension returns the file extension conventionally used for format.
func (f Format) Extension() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTable:
		return "txt"
	default:
		return "json"
	}
}

// TableFunc builds the table view of a value. Commands without a table view
// pass nil and fall back to JSON.
type TableFunc func() table.Writer

// Write renders value to w in the requested format.
func Write(w io.Writer, format Format, value any, tableFn TableFunc) error {
	switch format {
	case FormatTable:
		if tableFn != nil {
			_, err := fmt.Fprintln(w, tableFn().Render())
			return err
		}
		return writeJSON(w, value)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return writeJSON(w, value)
	}
}

func writeJSON(w io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// NewTable returns a rounded table with the given header.
func NewTable(header ...any) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if len(header) > 0 {
		t.AppendHeader(table.Row(header))
	}
	return t
}

// Dash renders empty values as "-" in table cells.
func Dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
