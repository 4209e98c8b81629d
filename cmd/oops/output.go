// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/olekukonko/tablewriter"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format.
const (
	formatText     outputFormat = "text"
	formatJSON     outputFormat = "json"
	formatYAML     outputFormat = "yaml"
	formatTOML     outputFormat = "toml"
	formatCSV      outputFormat = "csv"
	formatMarkdown outputFormat = "markdown"
)

// ErrInvalidFormat is the sentinel error wrapped by InvalidFormatError.
var ErrInvalidFormat = errors.New("invalid output format")

type (
	// outputFormat selects how listings are written.
	outputFormat string

	// InvalidFormatError is returned when --format names an unknown or
	// unsupported format.
	InvalidFormatError struct {
		Value   string
		Allowed []outputFormat
	}

	// listing is a table view of records. Records is what structured
	// formats encode; Headers and Rows are what tabular formats print.
	listing struct {
		// Key names the record list in TOML, which needs a top-level table.
		Key     string
		Headers []string
		Rows    [][]string
		Records any
	}
)

// Error implements the error interface.
func (e *InvalidFormatError) Error() string {
	names := make([]string, len(e.Allowed))
	for i, f := range e.Allowed {
		names[i] = string(f)
	}
	return fmt.Sprintf("invalid format %q (valid: %s)", e.Value, strings.Join(names, ", "))
}

// Unwrap returns ErrInvalidFormat.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// parseFormat validates value against allowed.
func parseFormat(value string, allowed ...outputFormat) (outputFormat, error) {
	f := outputFormat(strings.ToLower(strings.TrimSpace(value)))
	if slices.Contains(allowed, f) {
		return f, nil
	}
	return "", &InvalidFormatError{Value: value, Allowed: allowed}
}

// writeListing prints l in format.
func writeListing(w io.Writer, format outputFormat, l listing) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(l.Records)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(l.Records); err != nil {
			return err
		}
		return enc.Close()
	case formatTOML:
		return toml.NewEncoder(w).Encode(map[string]any{l.Key: l.Records})
	case formatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(l.Headers); err != nil {
			return err
		}
		if err := cw.WriteAll(l.Rows); err != nil {
			return err
		}
		return cw.Error()
	case formatMarkdown:
		return writeMarkdownTable(w, l.Headers, l.Rows)
	default:
		_, err := fmt.Fprintln(w, renderTable(l.Headers, l.Rows))
		return err
	}
}

// renderTable draws a bordered terminal table.
func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		String()
}

// writeMarkdownTable prints a GitHub flavored Markdown table.
func writeMarkdownTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	tw.SetCenterSeparator("|")
	tw.AppendBulk(rows)
	tw.Render()
	return nil
}

// yesNo renders a flag column.
func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
