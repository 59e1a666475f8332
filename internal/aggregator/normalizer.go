package aggregator

import (
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/models"
)

// Normalizer converts dataset tables and the message log into their
// serialisable form
type Normalizer struct{}

// NewNormalizer creates a new normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Tables returns every table except Message, in render order. Null values
// are omitted from the row maps.
func (n *Normalizer) Tables(ds *dataset.Dataset) []models.Table {
	out := make([]models.Table, 0, len(dataset.RenderOrder))
	for _, name := range dataset.RenderOrder {
		t, ok := ds.Lookup(name)
		if !ok {
			continue
		}
		ts := t.Schema()
		table := models.Table{
			Name:   ts.Name,
			Parent: ts.Parent,
			Rows:   make([]map[string]any, 0, t.Len()),
		}
		for _, c := range ts.Columns {
			table.Columns = append(table.Columns, models.Column{Name: c.Name, Type: c.Type.String()})
		}
		for _, r := range t.Rows() {
			table.Rows = append(table.Rows, r.Values())
		}
		out = append(out, table)
	}
	return out
}

// Findings returns every logged message except headings, in log order
func (n *Normalizer) Findings(ds *dataset.Dataset) []models.Finding {
	msgs := diag.Messages(ds)
	out := make([]models.Finding, 0, len(msgs))
	for _, m := range msgs {
		if m.Severity == diag.Heading {
			continue
		}
		out = append(out, models.Finding{
			Table:            m.Table,
			Row:              m.Row,
			Severity:         m.Severity.String(),
			Message:          m.Text,
			ExceptionType:    m.ExceptionType,
			ExceptionMessage: m.ExceptionMessage,
		})
	}
	return out
}
