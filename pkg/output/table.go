// pkg/output/table.go

package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// TableWriter aligns rows into columns.
type TableWriter struct {
	writer     *tabwriter.Writer
	headers    []string
	rows       [][]string
	showBorder bool
}

// NewTableTo creates a table writing to w.
func NewTableTo(w io.Writer) *TableWriter {
	return &TableWriter{
		writer:     tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		showBorder: true,
	}
}

func (t *TableWriter) WithHeaders(headers ...string) *TableWriter {
	t.headers = headers
	return t
}

// WithBorder controls the rule drawn under the headers.
func (t *TableWriter) WithBorder(show bool) *TableWriter {
	t.showBorder = show
	return t
}

func (t *TableWriter) AddRow(values ...string) *TableWriter {
	t.rows = append(t.rows, values)
	return t
}

// Render writes the table and flushes.
func (t *TableWriter) Render() error {
	if len(t.headers) > 0 {
		fmt.Fprintln(t.writer, strings.Join(t.headers, "\t"))
		if t.showBorder {
			rules := make([]string, len(t.headers))
			for i, h := range t.headers {
				rules[i] = strings.Repeat("-", len(h))
			}
			fmt.Fprintln(t.writer, strings.Join(rules, "\t"))
		}
	}
	for _, row := range t.rows {
		fmt.Fprintln(t.writer, strings.Join(row, "\t"))
	}
	return t.writer.Flush()
}
