// Package render writes command output as an aligned table, JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// Formats accepted by New.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Table is the tabular form of a value.
type Table struct {
	Header []string
	Rows   [][]string
}

// Renderer writes values to w in one output format.
type Renderer struct {
	w      io.Writer
	format string
}

// New returns a renderer for format. Unknown formats fall back to table.
func New(w io.Writer, format string) *Renderer {
	switch format {
	case FormatJSON, FormatYAML:
	default:
		format = FormatTable
	}

	return &Renderer{w: w, format: format}
}

// Format returns the active output format.
func (r *Renderer) Format() string {
	return r.format
}

// Render writes v. In table format the table function supplies the rows;
// JSON and YAML encode v directly using its json field names.
func (r *Renderer) Render(v any, table func() Table) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}

		return nil
	case FormatYAML:
		return r.yaml(v)
	}

	return r.table(table())
}

// Message writes a one-line confirmation. Structured formats wrap it in
// a {"message": ...} object so output stays machine readable.
func (r *Renderer) Message(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	if r.format == FormatTable {
		_, err := fmt.Fprintln(r.w, msg)
		return err
	}

	return r.Render(map[string]string{"message": msg}, nil)
}

func (r *Renderer) table(t Table) error {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)

	if len(t.Header) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
	}

	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}

	return nil
}

// yaml round-trips v through JSON so the YAML keys match the API field
// names, then clears the flow styles the JSON parse leaves behind.
func (r *Renderer) yaml(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}

	blockStyle(&node)

	enc := yaml.NewEncoder(r.w)
	enc.SetIndent(2)

	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}

	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// Time formats t for table cells. The zero time renders as "-".
func Time(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Local().Format("2006-01-02 15:04")
}

// Or returns s, or "-" when s is empty.
func Or(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
