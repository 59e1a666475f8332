// Package dataset holds the in-memory tables one sqlcheck run fills in.
//
// A Dataset is created once per run with a fixed set of tables (see Schema),
// populated by the collectors and handed whole to the report renderer. Rows
// are maps from column name to a typed value; reads of absent or null
// columns return the type's sentinel instead of failing.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the display format for DateTime columns
const TimeLayout = "2006-01-02 15:04:05"

// Dataset is the named collection of tables for one run
type Dataset struct {
	tables map[string]*Table
	order  []string
}

// New builds an empty dataset shaped by Schema
func New() *Dataset {
	return NewWithSchema(Schema)
}

// NewWithSchema builds an empty dataset from an explicit table list
func NewWithSchema(schema []TableSchema) *Dataset {
	d := &Dataset{tables: make(map[string]*Table, len(schema))}
	for _, ts := range schema {
		d.tables[ts.Name] = newTable(ts)
		d.order = append(d.order, ts.Name)
	}
	return d
}

// Table returns the named table. Asking for a table that is not part of the
// schema is a programming error and panics.
func (d *Dataset) Table(name string) *Table {
	tbl, ok := d.tables[name]
	if !ok {
		panic(fmt.Sprintf("dataset: unknown table %q", name))
	}
	return tbl
}

// Lookup returns the named table and whether it exists
func (d *Dataset) Lookup(name string) (*Table, bool) {
	tbl, ok := d.tables[name]
	return tbl, ok
}

// Tables returns every table in schema order
func (d *Dataset) Tables() []*Table {
	out := make([]*Table, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.tables[name])
	}
	return out
}

// Table is a named, ordered list of rows sharing one column layout
type Table struct {
	schema TableSchema
	index  map[string]int
	keyed  bool
	nextID int64
	rows   []*Row
}

func newTable(ts TableSchema) *Table {
	keyed := ts.Name != TableMessage
	cols := make([]Column, 0, len(ts.Columns)+2)
	if keyed {
		cols = append(cols, Column{Name: ColID, Type: Int}, Column{Name: ColParentID, Type: Int})
	}
	cols = append(cols, ts.Columns...)
	ts.Columns = cols

	index := make(map[string]int, len(cols))
	for n, c := range cols {
		index[c.Name] = n
	}
	return &Table{schema: ts, index: index, keyed: keyed, nextID: 1}
}

// Name returns the table name
func (t *Table) Name() string { return t.schema.Name }

// Schema returns the table's layout including the ID and ParentID columns
func (t *Table) Schema() TableSchema { return t.schema }

// Columns returns the table's columns in declaration order
func (t *Table) Columns() []Column { return t.schema.Columns }

// HasColumn reports whether name is a column of this table
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Keyed reports whether rows of this table carry an ID
func (t *Table) Keyed() bool { return t.keyed }

// TableName identifies the table as the owner of table-scoped messages
func (t *Table) TableName() string { return t.schema.Name }

// RowID is always absent for a table owner
func (t *Table) RowID() (int64, bool) { return 0, false }

// NewRow appends an empty row and assigns it the next ID
func (t *Table) NewRow() *Row {
	r := &Row{table: t, values: make([]any, len(t.schema.Columns))}
	if t.keyed {
		r.values[t.index[ColID]] = t.nextID
		t.nextID++
	}
	t.rows = append(t.rows, r)
	return r
}

// NewChildRow appends a row whose ParentID points at parent. A nil parent
// behaves like NewRow.
func (t *Table) NewChildRow(parent *Row) *Row {
	r := t.NewRow()
	if parent != nil && t.keyed {
		r.values[t.index[ColParentID]] = parent.ID()
	}
	return r
}

// Rows returns the rows in insertion order
func (t *Table) Rows() []*Row {
	out := make([]*Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Len returns the row count
func (t *Table) Len() int { return len(t.rows) }

// First returns the first row, or nil for an empty table
func (t *Table) First() *Row {
	if len(t.rows) == 0 {
		return nil
	}
	return t.rows[0]
}

// Find returns the row with the given ID, or nil
func (t *Table) Find(id int64) *Row {
	for _, r := range t.rows {
		if r.ID() == id {
			return r
		}
	}
	return nil
}

// Children returns the rows whose ParentID equals parentID
func (t *Table) Children(parentID int64) []*Row {
	var out []*Row
	for _, r := range t.rows {
		if r.ParentID() == parentID {
			out = append(out, r)
		}
	}
	return out
}

// Row is one record of a table
type Row struct {
	table  *Table
	values []any
}

// Table returns the table the row belongs to
func (r *Row) Table() *Table { return r.table }

// TableName identifies the owning table for row-scoped messages
func (r *Row) TableName() string { return r.table.schema.Name }

// RowID returns the row's ID; Message rows have none
func (r *Row) RowID() (int64, bool) {
	if !r.table.keyed {
		return 0, false
	}
	return r.ID(), true
}

// ID returns the surrogate key assigned at creation
func (r *Row) ID() int64 { return r.GetInteger(ColID) }

// ParentID returns the parent row's ID, 0 when unset
func (r *Row) ParentID() int64 { return r.GetInteger(ColParentID) }

// SetParent points ParentID at parent
func (r *Row) SetParent(parent *Row) {
	if parent == nil || !r.table.keyed {
		return
	}
	r.values[r.table.index[ColParentID]] = parent.ID()
}

// Set stores v in col after coercing it to the column type. Unknown columns,
// the ID column and values that cannot be coerced panic: they are bugs in the
// caller, never data problems.
func (r *Row) Set(col string, v any) {
	n, ok := r.table.index[col]
	if !ok {
		panic(fmt.Sprintf("dataset: table %s has no column %q", r.table.schema.Name, col))
	}
	if col == ColID {
		panic(fmt.Sprintf("dataset: %s.ID is assigned by the table", r.table.schema.Name))
	}
	if v == nil {
		r.values[n] = nil
		return
	}
	cv, err := coerce(r.table.schema.Columns[n].Type, v)
	if err != nil {
		panic(fmt.Sprintf("dataset: %s.%s: %v", r.table.schema.Name, col, err))
	}
	r.values[n] = cv
}

// SetNull clears a column back to "not collected"
func (r *Row) SetNull(col string) { r.Set(col, nil) }

// IsNull reports whether col is absent or was never set
func (r *Row) IsNull(col string) bool {
	n, ok := r.table.index[col]
	return !ok || r.values[n] == nil
}

// Value returns the raw stored value, nil when absent or unset
func (r *Row) Value(col string) any {
	n, ok := r.table.index[col]
	if !ok {
		return nil
	}
	return r.values[n]
}

// GetString returns a String column's value. Absent or null columns read as
// "" (not collected); other column types are formatted.
func (r *Row) GetString(col string) string {
	v := r.Value(col)
	if v == nil {
		return ""
	}
	if sv, ok := v.(string); ok {
		return sv
	}
	return r.Format(col)
}

// GetInteger returns an Int column's value, 0 when absent, null or not an Int
func (r *Row) GetInteger(col string) int64 {
	if iv, ok := r.Value(col).(int64); ok {
		return iv
	}
	return 0
}

// GetBoolean returns a Bool column's value, false when absent, null or not a Bool
func (r *Row) GetBoolean(col string) bool {
	if bv, ok := r.Value(col).(bool); ok {
		return bv
	}
	return false
}

// GetDateTime returns a DateTime column's value, the zero time when absent
func (r *Row) GetDateTime(col string) time.Time {
	if tv, ok := r.Value(col).(time.Time); ok {
		return tv
	}
	return time.Time{}
}

// Format renders a column for display; null reads as ""
func (r *Row) Format(col string) string {
	switch v := r.Value(col).(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "True"
		}
		return "False"
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(TimeLayout)
	default:
		return fmt.Sprint(v)
	}
}

// Values returns the non-null values keyed by column name
func (r *Row) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for n, v := range r.values {
		if v != nil {
			out[r.table.schema.Columns[n].Name] = v
		}
	}
	return out
}

func coerce(ct ColumnType, v any) (any, error) {
	switch ct {
	case String:
		switch sv := v.(type) {
		case string:
			return sv, nil
		case []string:
			return strings.Join(sv, ", "), nil
		case fmt.Stringer:
			return sv.String(), nil
		default:
			return fmt.Sprint(v), nil
		}
	case Int:
		switch iv := v.(type) {
		case int:
			return int64(iv), nil
		case int8:
			return int64(iv), nil
		case int16:
			return int64(iv), nil
		case int32:
			return int64(iv), nil
		case int64:
			return iv, nil
		case uint:
			return int64(iv), nil
		case uint8:
			return int64(iv), nil
		case uint16:
			return int64(iv), nil
		case uint32:
			return int64(iv), nil
		case uint64:
			return int64(iv), nil
		}
	case Bool:
		if bv, ok := v.(bool); ok {
			return bv, nil
		}
	case DateTime:
		if tv, ok := v.(time.Time); ok {
			return tv, nil
		}
	}
	return nil, fmt.Errorf("cannot store %T in a %s column", v, ct)
}
