package cachestore

import (
	"github.com/parquet-go/parquet-go"

	"github.com/vk/factbuild/internal/table"
)

// colKind is the storage type chosen for one column. The dynamic value
// model narrows to three leaf types; a column mixing kinds across rows is
// stored as text (documented type-widening, mirrored on read).
type colKind int

const (
	kindUnset colKind = iota
	kindDouble
	kindBool
	kindString
)

// inferKinds scans every cell once and picks a leaf type per column.
// Columns with no values at all are stored as text.
func inferKinds(t *table.Table, cols []string) map[string]colKind {
	kinds := make(map[string]colKind, len(cols))
	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)
		for _, col := range cols {
			v, ok := row[col]
			if !ok || v == nil {
				continue
			}
			var k colKind
			switch v.(type) {
			case float64, int:
				k = kindDouble
			case bool:
				k = kindBool
			default:
				k = kindString
			}
			switch prev := kinds[col]; {
			case prev == kindUnset:
				kinds[col] = k
			case prev != k:
				kinds[col] = kindString
			}
		}
	}
	for _, col := range cols {
		if kinds[col] == kindUnset {
			kinds[col] = kindString
		}
	}
	return kinds
}

// buildSchema maps the inferred kinds onto an all-optional parquet group.
// Every column is optional because concatenated monthly files may each
// carry a different column subset.
func buildSchema(name string, cols []string, kinds map[string]colKind) *parquet.Schema {
	group := parquet.Group{}
	for _, col := range cols {
		var leaf parquet.Node
		switch kinds[col] {
		case kindDouble:
			leaf = parquet.Leaf(parquet.DoubleType)
		case kindBool:
			leaf = parquet.Leaf(parquet.BooleanType)
		default:
			leaf = parquet.String()
		}
		group[col] = parquet.Optional(leaf)
	}
	return parquet.NewSchema(name, group)
}

// encodeRow converts one table row to the map shape the generic writer
// expects, coercing each cell to its column's storage kind. Nil cells stay
// absent and become parquet nulls.
func encodeRow(row table.Row, cols []string, kinds map[string]colKind) map[string]any {
	out := make(map[string]any, len(row))
	for _, col := range cols {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		switch kinds[col] {
		case kindDouble:
			if f, ok := table.AsFloat(v); ok {
				out[col] = f
			}
		case kindBool:
			if b, ok := v.(bool); ok {
				out[col] = b
			}
		default:
			if s, ok := table.AsString(v); ok {
				out[col] = s
			}
		}
	}
	return out
}

// decodeRow normalizes values read back from parquet onto the dynamic
// value model: byte slices become strings, narrower numerics widen to
// float64, nulls disappear from the key set.
func decodeRow(raw map[string]any) table.Row {
	row := make(table.Row, len(raw))
	for col, v := range raw {
		switch x := v.(type) {
		case nil:
			// absent
		case []byte:
			row[col] = string(x)
		case string:
			row[col] = x
		case float64:
			row[col] = x
		case float32:
			row[col] = float64(x)
		case int64:
			row[col] = float64(x)
		case int32:
			row[col] = float64(x)
		case bool:
			row[col] = x
		default:
			if s, ok := table.AsString(x); ok {
				row[col] = s
			}
		}
	}
	return row
}
