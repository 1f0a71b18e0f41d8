// Package table holds row-aligned tabular data flattened from JSON records.
//
// A Table is an ordered column list plus rows keyed by column name. A column
// that a row does not carry reads as nil, which is how tables of different
// shape are concatenated without padding.
package table

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Separator joins nested object keys when records are flattened.
const Separator = "."

// Row maps column name to cell value.
type Row map[string]any

// Table is a set of rows sharing an ordered column list.
type Table struct {
	Columns []string
	Rows    []Row
}

// Named tags a table with the dataset name it is exported under.
type Named struct {
	Name  string
	Table *Table
}

// New returns an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the values of one column, row-aligned.
func (t *Table) Column(name string) []any {
	out := make([]any, t.Len())
	if t == nil {
		return out
	}
	for i, row := range t.Rows {
		out[i] = row[name]
	}
	return out
}

// Append adds a row. Keys not yet in Columns are appended in the order given by keys.
func (t *Table) Append(row Row, keys ...string) {
	for _, k := range keys {
		if !t.HasColumn(k) {
			t.Columns = append(t.Columns, k)
		}
	}
	t.Rows = append(t.Rows, row)
}

// Normalize flattens records into a table. Nested objects become columns named
// parent.child; arrays are kept as cell values. Columns appear in first-seen order.
func Normalize(records []*Record) *Table {
	t := &Table{}
	seen := make(map[string]struct{})
	for _, rec := range records {
		row := make(Row, rec.Len())
		var keys []string
		flattenInto(row, &keys, "", rec)
		for _, k := range keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				t.Columns = append(t.Columns, k)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func flattenInto(row Row, keys *[]string, prefix string, rec *Record) {
	for _, k := range rec.Keys() {
		name := k
		if prefix != "" {
			name = prefix + Separator + k
		}
		v, _ := rec.Get(k)
		if nested, ok := v.(*Record); ok {
			if nested.Len() > 0 {
				flattenInto(row, keys, name, nested)
				continue
			}
			v = nil
		}
		row[name] = v
		*keys = append(*keys, name)
	}
}

// Concat stacks tables vertically. The result has the union of all columns in
// first-seen order; rows are shallow copies. No input yields a zero-column table.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	seen := make(map[string]struct{})
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				out.Columns = append(out.Columns, c)
			}
		}
		for _, row := range t.Rows {
			cp := make(Row, len(row))
			for k, v := range row {
				cp[k] = v
			}
			out.Rows = append(out.Rows, cp)
		}
	}
	return out
}

// Reindex projects the table onto columns, in that order. Columns the table
// lacks are present with nil values; columns not listed are dropped.
func (t *Table) Reindex(columns []string) *Table {
	out := &Table{Columns: append([]string(nil), columns...)}
	if t == nil {
		return out
	}
	for _, row := range t.Rows {
		cp := make(Row, len(columns))
		for _, c := range columns {
			if v, ok := row[c]; ok {
				cp[c] = v
			}
		}
		out.Rows = append(out.Rows, cp)
	}
	return out
}

// Rename renames columns in place. A rename onto an existing column replaces it.
func (t *Table) Rename(mapping map[string]string) {
	if len(mapping) == 0 {
		return
	}
	overwritten := make(map[string]bool)
	for from, to := range mapping {
		if t.HasColumn(from) {
			overwritten[to] = true
		}
	}
	var cols []string
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		name := c
		if to, ok := mapping[c]; ok {
			name = to
		} else if overwritten[c] {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		cols = append(cols, name)
	}
	t.Columns = cols
	for _, row := range t.Rows {
		moved := make(map[string]any, len(mapping))
		for from, to := range mapping {
			if v, ok := row[from]; ok {
				moved[to] = v
				delete(row, from)
			}
		}
		for c := range overwritten {
			if _, isSource := mapping[c]; !isSource {
				delete(row, c)
			}
		}
		for k, v := range moved {
			row[k] = v
		}
	}
}

// SetColumn sets name to value on every row, appending the column if new.
func (t *Table) SetColumn(name string, value any) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
	for _, row := range t.Rows {
		row[name] = value
	}
}

// Apply replaces every non-nil value of column name with fn(value).
func (t *Table) Apply(name string, fn func(any) any) {
	if t == nil {
		return
	}
	for _, row := range t.Rows {
		if v, ok := row[name]; ok && v != nil {
			row[name] = fn(v)
		}
	}
}

// Records converts rows back to ordered records, one key per column.
func (t *Table) Records() []*Record {
	out := make([]*Record, 0, t.Len())
	for _, row := range t.Rows {
		rec := &Record{values: make(map[string]any, len(t.Columns))}
		for _, c := range t.Columns {
			rec.Set(c, row[c])
		}
		out = append(out, rec)
	}
	return out
}

// Int64 converts a decoded JSON number (or a Go integer) to int64.
// Floats are accepted only when integral.
func Int64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n.String())
		}
		return Int64(f)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", n)
		}
		return i, nil
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
