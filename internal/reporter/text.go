package reporter

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
)

// TextOptions controls what the text report shows
type TextOptions struct {
	// ShowIDs prints the ID and ParentID columns
	ShowIDs bool
	// ShowVerbose prints Verbose messages
	ShowVerbose bool
	// Color tags severities with ANSI colours
	Color bool
	// Title and Timestamp, when set, print a header line
	Title     string
	Timestamp time.Time
}

// TextRenderer writes the dataset as a human-readable report: one section
// per table in dataset.RenderOrder, each followed by its messages
type TextRenderer struct {
	writer io.Writer
	opts   TextOptions
	colors map[diag.Severity]*color.Color
	err    error
}

// NewTextRenderer creates a new text renderer
func NewTextRenderer(writer io.Writer, opts TextOptions) *TextRenderer {
	colors := map[diag.Severity]*color.Color{
		diag.Verbose:   color.New(color.Faint),
		diag.Info:      color.New(color.FgCyan),
		diag.Warning:   color.New(color.FgYellow),
		diag.Critical:  color.New(color.FgRed, color.Bold),
		diag.Exception: color.New(color.FgMagenta, color.Bold),
		diag.Heading:   color.New(color.Bold),
	}
	for _, c := range colors {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return &TextRenderer{writer: writer, opts: opts, colors: colors}
}

// Render prints the report. The dataset is only read.
func (r *TextRenderer) Render(ds *dataset.Dataset) error {
	r.err = nil
	if r.opts.Title != "" {
		r.printHeader()
	}

	idx := diag.NewIndex(r.visible(diag.Messages(ds)))
	for _, name := range dataset.RenderOrder {
		t, ok := ds.Lookup(name)
		if !ok {
			continue
		}
		r.renderTable(t, idx)
		if r.err != nil {
			return r.err
		}
	}
	return r.err
}

func (r *TextRenderer) printHeader() {
	r.printf("%s\n", r.opts.Title)
	if !r.opts.Timestamp.IsZero() {
		r.printf("Collected: %s\n", r.opts.Timestamp.Format(dataset.TimeLayout))
	}
	r.printf("\n")
}

// visible drops messages the options hide
func (r *TextRenderer) visible(msgs []diag.Message) []diag.Message {
	if r.opts.ShowVerbose {
		return msgs
	}
	out := msgs[:0:0]
	for _, m := range msgs {
		if m.Severity != diag.Verbose {
			out = append(out, m)
		}
	}
	return out
}

func (r *TextRenderer) renderTable(t *dataset.Table, idx *diag.Index) {
	tableMsgs := idx.ForTable(t.Name())
	if t.Len() == 0 && len(tableMsgs) == 0 {
		return
	}

	r.printf("%s\n%s\n", t.Name(), strings.Repeat("=", utf8.RuneCountInString(t.Name())))
	r.printMessages(tableMsgs, "")
	if len(tableMsgs) > 0 && t.Len() > 0 {
		r.printf("\n")
	}

	if t.Len() == 0 {
		r.printf("\n")
		return
	}
	cols := r.columns(t)
	if t.Schema().Vertical {
		r.renderVertical(t, cols, idx)
	} else {
		r.renderGrid(t, cols, idx)
	}
	r.printf("\n")
}

// columns returns the columns to print
func (r *TextRenderer) columns(t *dataset.Table) []dataset.Column {
	if r.opts.ShowIDs {
		return t.Columns()
	}
	out := make([]dataset.Column, 0, len(t.Columns()))
	for _, c := range t.Columns() {
		if c.Name == dataset.ColID || c.Name == dataset.ColParentID {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (r *TextRenderer) renderVertical(t *dataset.Table, cols []dataset.Column, idx *diag.Index) {
	labelWidth := 0
	for _, c := range cols {
		labelWidth = max(labelWidth, width(c.Name))
	}
	for n, row := range t.Rows() {
		if n > 0 {
			r.printf("\n")
		}
		for _, c := range cols {
			r.printf("%s : %s\n", pad(c.Name, labelWidth, false), row.Format(c.Name))
		}
		r.printMessages(idx.ForRow(t.Name(), row.ID()), "")
	}
}

func (r *TextRenderer) renderGrid(t *dataset.Table, cols []dataset.Column, idx *diag.Index) {
	rows := t.Rows()
	widths := ColumnWidths(t, cols)

	cells := make([]string, len(cols))
	for n, c := range cols {
		cells[n] = pad(c.Name, widths[n], c.Type == dataset.Int)
	}
	r.printf("%s\n", strings.TrimRight(strings.Join(cells, " "), " "))
	for n := range cols {
		cells[n] = strings.Repeat("-", widths[n])
	}
	r.printf("%s\n", strings.Join(cells, " "))

	for _, row := range rows {
		for n, c := range cols {
			cells[n] = pad(row.Format(c.Name), widths[n], c.Type == dataset.Int)
		}
		r.printf("%s\n", strings.TrimRight(strings.Join(cells, " "), " "))
		r.printMessages(idx.ForRow(t.Name(), row.ID()), "    ")
	}
}

// ColumnWidths returns, per column, the widest of the header and every value
func ColumnWidths(t *dataset.Table, cols []dataset.Column) []int {
	widths := make([]int, len(cols))
	for n, c := range cols {
		widths[n] = width(c.Name)
	}
	for _, row := range t.Rows() {
		for n, c := range cols {
			widths[n] = max(widths[n], width(row.Format(c.Name)))
		}
	}
	return widths
}

func (r *TextRenderer) printMessages(msgs []diag.Message, indent string) {
	for _, m := range msgs {
		if m.Severity == diag.Heading {
			r.printf("%s%s\n", indent, r.colors[diag.Heading].Sprint(m.Text))
			continue
		}
		tag := r.colors[m.Severity].Sprintf("%s:", m.Severity)
		r.printf("%s%s %s\n", indent, tag, m.Text)
		if m.Severity == diag.Exception && m.ExceptionType != "" {
			r.printf("%s    %s: %s\n", indent, m.ExceptionType, m.ExceptionMessage)
		}
	}
}

func (r *TextRenderer) printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.writer, format, args...)
}

func width(s string) int { return utf8.RuneCountInString(s) }

// pad aligns s within w columns, right-aligned when right is set
func pad(s string, w int, right bool) string {
	gap := w - width(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}
