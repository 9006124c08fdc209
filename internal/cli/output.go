package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Table renders rows as aligned columns.
type Table struct {
	headers []string
	rows    [][]string
	writer  io.Writer
}

func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{headers: headers, writer: w}
}

func (t *Table) AddRow(cols ...string) {
	t.rows = append(t.rows, cols)
}

func (t *Table) Render() {
	w := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(t.headers, "\t"))
	sep := make([]string, len(t.headers))
	for i, h := range t.headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(sep, "\t"))
	for _, row := range t.rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

func (o *options) print(data interface{}) error {
	switch o.outputFormat {
	case "yaml":
		enc := yaml.NewEncoder(o.out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	case "json":
		enc := json.NewEncoder(o.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	default:
		return fmt.Errorf("unsupported output format %q", o.outputFormat)
	}
}
