package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"arboreal/harvest/internal/table"
)

// openTestDB opens a fresh snapshot database in a temp dir.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := OpenDB(filepath.Join(t.TempDir(), "harvest.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestInferAffinity(t *testing.T) {
	tests := []struct {
		name   string
		values []any
		want   string
	}{
		{"empty", nil, "TEXT"},
		{"all nil", []any{nil, nil}, "TEXT"},
		{"ints", []any{json.Number("1"), int64(2), nil}, "INTEGER"},
		{"bools", []any{true, false}, "INTEGER"},
		{"mixed numeric", []any{json.Number("1"), json.Number("2.5")}, "REAL"},
		{"real then int", []any{20.0, json.Number("3")}, "REAL"},
		{"strings", []any{json.Number("1"), "x"}, "TEXT"},
		{"nested", []any{[]any{1}}, "TEXT"},
	}
	for _, tt := range tests {
		got := inferAffinity(tt.values)
		if got != tt.want {
			t.Errorf("inferAffinity(%s) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestWriteReadTable(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	stems := &table.Table{
		Columns: []string{"stem_id", "diameter", "stem_name", "alive", "sample_id"},
		Rows: []table.Row{
			{"stem_id": json.Number("10"), "diameter": 20.0, "stem_name": "s1", "alive": true, "sample_id": int64(7)},
			{"stem_id": json.Number("11"), "diameter": json.Number("35"), "sample_id": int64(7)},
		},
	}
	if err := d.WriteTable(ctx, "Stems", stems); err != nil {
		t.Fatal(err)
	}

	got, err := d.ReadTable(ctx, "Stems")
	if err != nil {
		t.Fatal(err)
	}
	wantCols := []string{"stem_id", "diameter", "stem_name", "alive", "sample_id"}
	if len(got.Columns) != len(wantCols) {
		t.Fatalf("columns = %v, want %v", got.Columns, wantCols)
	}
	for i, c := range wantCols {
		if got.Columns[i] != c {
			t.Errorf("column %d = %q, want %q", i, got.Columns[i], c)
		}
	}
	if got.Len() != 2 {
		t.Fatalf("rows = %d, want 2", got.Len())
	}
	first := got.Rows[0]
	if first["stem_id"] != int64(10) {
		t.Errorf("stem_id = %#v, want int64(10)", first["stem_id"])
	}
	if first["diameter"] != 20.0 {
		t.Errorf("diameter = %#v, want 20.0", first["diameter"])
	}
	if first["alive"] != int64(1) {
		t.Errorf("alive = %#v, want int64(1)", first["alive"])
	}
	if got.Rows[1]["diameter"] != 35.0 {
		t.Errorf("second diameter = %#v, want 35.0", got.Rows[1]["diameter"])
	}
	if got.Rows[1]["stem_name"] != nil {
		t.Errorf("missing stem_name = %#v, want nil", got.Rows[1]["stem_name"])
	}
}

func TestWriteTable_Replaces(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	old := &table.Table{Columns: []string{"a"}, Rows: []table.Row{{"a": "x"}, {"a": "y"}}}
	if err := d.WriteTable(ctx, "Trees", old); err != nil {
		t.Fatal(err)
	}
	fresh := &table.Table{Columns: []string{"b"}, Rows: []table.Row{{"b": json.Number("1")}}}
	if err := d.WriteTable(ctx, "Trees", fresh); err != nil {
		t.Fatal(err)
	}

	got, err := d.ReadTable(ctx, "Trees")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Columns) != 1 || got.Columns[0] != "b" || got.Len() != 1 {
		t.Errorf("got columns %v with %d rows, want [b] with 1 row", got.Columns, got.Len())
	}
}

func TestWriteTable_NoColumnsDrops(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if err := d.WriteTable(ctx, "Heights", &table.Table{Columns: []string{"h"}, Rows: []table.Row{{"h": 1}}}); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteTable(ctx, "Heights", table.New()); err != nil {
		t.Fatal(err)
	}
	if _, err := d.ReadTable(ctx, "Heights"); err == nil {
		t.Error("expected error reading a dropped table")
	}
}

func TestWriteTable_QuotesIdentifiers(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	tbl := &table.Table{
		Columns: []string{"position.x", `odd"name`, "order"},
		Rows:    []table.Row{{"position.x": 1.5, `odd"name`: "v", "order": json.Number("2")}},
	}
	if err := d.WriteTable(ctx, "Trees", tbl); err != nil {
		t.Fatal(err)
	}
	got, err := d.ReadTable(ctx, "Trees")
	if err != nil {
		t.Fatal(err)
	}
	if got.Rows[0][`odd"name`] != "v" || got.Rows[0]["position.x"] != 1.5 {
		t.Errorf("unexpected row %v", got.Rows[0])
	}
}

func TestWriteTables(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	named := []table.Named{
		{Name: "Samples", Table: &table.Table{Columns: []string{"sample_id"}, Rows: []table.Row{{"sample_id": int64(1)}}}},
		{Name: "Calculations", Table: &table.Table{Columns: []string{"k"}, Rows: []table.Row{{"k": "a"}, {"k": "b"}}}},
	}
	if err := d.WriteTables(ctx, named); err != nil {
		t.Fatal(err)
	}
	got, err := d.ReadTable(ctx, "Calculations")
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 2 || got.Rows[1]["k"] != "b" {
		t.Errorf("calculations = %v", got.Rows)
	}
}
