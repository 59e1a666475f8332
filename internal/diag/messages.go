package diag

import "github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"

// Message is a decoded row of the Message table
type Message struct {
	Table            string
	Row              int64 // 0 for table-scoped messages
	Severity         Severity
	Text             string
	ExceptionType    string
	ExceptionMessage string
	StackTrace       string
}

// RowScoped reports whether the message is attached to a single row
func (m Message) RowScoped() bool { return m.Row != 0 }

// Messages decodes every logged message in insertion order
func Messages(ds *dataset.Dataset) []Message {
	rows := ds.Table(dataset.TableMessage).Rows()
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		sev, _ := ParseSeverity(r.GetString("Severity"))
		out = append(out, Message{
			Table:            r.GetString("TableName"),
			Row:              r.GetInteger("TableRow"),
			Severity:         sev,
			Text:             r.GetString("Message"),
			ExceptionType:    r.GetString("ExceptionType"),
			ExceptionMessage: r.GetString("ExceptionMessage"),
			StackTrace:       r.GetString("StackTrace"),
		})
	}
	return out
}

// Index groups messages by owner for rendering
type Index struct {
	table map[string][]Message
	row   map[string]map[int64][]Message
}

// NewIndex builds an Index over msgs
func NewIndex(msgs []Message) *Index {
	idx := &Index{
		table: make(map[string][]Message),
		row:   make(map[string]map[int64][]Message),
	}
	for _, m := range msgs {
		if !m.RowScoped() {
			idx.table[m.Table] = append(idx.table[m.Table], m)
			continue
		}
		byRow, ok := idx.row[m.Table]
		if !ok {
			byRow = make(map[int64][]Message)
			idx.row[m.Table] = byRow
		}
		byRow[m.Row] = append(byRow[m.Row], m)
	}
	return idx
}

// ForTable returns the table-scoped messages of a table
func (i *Index) ForTable(table string) []Message { return i.table[table] }

// ForRow returns the messages attached to one row
func (i *Index) ForRow(table string, id int64) []Message {
	return i.row[table][id]
}
