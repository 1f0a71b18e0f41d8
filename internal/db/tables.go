package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"arboreal/harvest/internal/export"
	"arboreal/harvest/internal/table"
)

// Column affinities used for snapshot tables
const (
	affinityInteger = "INTEGER"
	affinityReal    = "REAL"
	affinityText    = "TEXT"
)

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// inferAffinity picks the narrowest affinity that holds every non-nil value
// of a column. Booleans count as integers.
func inferAffinity(values []any) string {
	affinity := ""
	for _, v := range values {
		var kind string
		switch x := v.(type) {
		case nil:
			continue
		case bool, int, int32, int64:
			kind = affinityInteger
		case float32, float64:
			kind = affinityReal
		case json.Number:
			if _, err := x.Int64(); err == nil {
				kind = affinityInteger
			} else if _, err := x.Float64(); err == nil {
				kind = affinityReal
			} else {
				return affinityText
			}
		default:
			return affinityText
		}
		if affinity == "" || (affinity == affinityInteger && kind == affinityReal) {
			affinity = kind
		}
	}
	if affinity == "" {
		return affinityText
	}
	return affinity
}

// sqlValue converts a cell to what the driver stores under affinity.
func sqlValue(v any, affinity string) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch affinity {
	case affinityInteger:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return table.Int64(v)
	case affinityReal:
		switch x := v.(type) {
		case json.Number:
			return x.Float64()
		case float32:
			return float64(x), nil
		case float64:
			return x, nil
		case bool:
			if x {
				return 1.0, nil
			}
			return 0.0, nil
		default:
			n, err := table.Int64(v)
			return float64(n), err
		}
	default:
		return export.FormatValue(v)
	}
}

// WriteTable replaces the table name with the contents of t. Rows are
// inserted in a single transaction. A table without columns only drops name.
func (d *DB) WriteTable(ctx context.Context, name string, t *table.Table) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return fmt.Errorf("dropping %s: %w", name, err)
	}
	if t == nil || len(t.Columns) == 0 {
		return tx.Commit()
	}

	affinities := make([]string, len(t.Columns))
	defs := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		affinities[i] = inferAffinity(t.Column(col))
		defs[i] = quoteIdent(col) + " " + affinities[i]
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}

	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = quoteIdent(col)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name), strings.Join(cols, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("preparing insert into %s: %w", name, err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for r, row := range t.Rows {
		for i, col := range t.Columns {
			v, err := sqlValue(row[col], affinities[i])
			if err != nil {
				return fmt.Errorf("%s row %d column %s: %w", name, r, col, err)
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting into %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// WriteTables writes every named table.
func (d *DB) WriteTables(ctx context.Context, tables []table.Named) error {
	for _, n := range tables {
		if err := d.WriteTable(ctx, n.Name, n.Table); err != nil {
			return err
		}
	}
	return nil
}

// ReadTable reads a snapshot table back in insertion order. Values come back
// as the driver returns them: int64, float64, string or nil.
func (d *DB) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT * FROM "+quoteIdent(name)+" ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := table.New(cols...)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(table.Row, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = string(b)
			}
			row[col] = vals[i]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}
