// Package table provides the loose tabular value model shared by the
// spreadsheet parser, the columnar cache, and the fact builders.
//
// A Table is an ordered set of named columns plus a slice of rows. Cells are
// deliberately dynamic (string, float64, bool, or nil): source spreadsheets
// change shape between months, so strict typing is deferred to the fact
// builders, which know the schema they require.
package table

import (
	"fmt"
	"strconv"
)

// Row maps column names to cell values. A missing key and an explicit nil
// both mean "absent" for that column.
type Row map[string]any

// Table is an in-memory table with a stable column order.
type Table struct {
	cols    []string
	colSeen map[string]struct{}
	rows    []Row
}

// New returns an empty table with the given column order.
func New(cols ...string) *Table {
	t := &Table{colSeen: make(map[string]struct{}, len(cols))}
	for _, c := range cols {
		t.addColumn(c)
	}
	return t
}

func (t *Table) addColumn(name string) {
	if _, ok := t.colSeen[name]; ok {
		return
	}
	t.colSeen[name] = struct{}{}
	t.cols = append(t.cols, name)
}

// AddColumn declares a column without touching any rows. Needed when a
// transformation fills a new column by mutating rows in place, since row
// maps do not know about the table's column order.
func (t *Table) AddColumn(name string) {
	t.addColumn(name)
}

// Columns returns the column names in order. The slice is a copy.
func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	copy(out, t.cols)
	return out
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colSeen[name]
	return ok
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.rows) }

// NumCols returns the number of declared columns.
func (t *Table) NumCols() int { return len(t.cols) }

// AppendRow adds a row. Columns not yet declared on the table are appended
// to the column order in the row's key set's first-seen position.
func (t *Table) AppendRow(r Row) {
	for name := range r {
		t.addColumn(name)
	}
	t.rows = append(t.rows, r)
}

// Row returns the i-th row. The returned map is live; callers that must not
// mutate the table (fact builders reading shared sources) work on a Clone.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Value returns the cell at (row, col), or nil when the column is absent
// from that row.
func (t *Table) Value(i int, col string) any { return t.rows[i][col] }

// Clone returns a deep copy. Builders clone their primary input before any
// mutation so the same loaded source can feed several builders in one run.
func (t *Table) Clone() *Table {
	out := New(t.cols...)
	out.rows = make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		cp := make(Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out.rows = append(out.rows, cp)
	}
	return out
}

// Filter returns a new table containing the rows for which keep returns
// true. Rows are shared with the receiver, not copied.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := New(t.cols...)
	for _, r := range t.rows {
		if keep(r) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// Concat row-wise unions the given tables. Column sets may differ between
// parts; the result's column order is first-seen across parts and rows keep
// their original key sets, so cells for columns a part never had read as nil.
func Concat(parts ...*Table) *Table {
	out := New()
	for _, p := range parts {
		if p == nil {
			continue
		}
		for _, c := range p.cols {
			out.addColumn(c)
		}
		out.rows = append(out.rows, p.rows...)
	}
	return out
}

// AsString coerces a cell to its string form. Nil cells report ok=false.
func AsString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return fmt.Sprint(x), true
	}
}

// AsFloat coerces a cell to float64. Strings are parsed; nil and
// non-numeric text report ok=false.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
