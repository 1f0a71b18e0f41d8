package table

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) []*Record {
	t.Helper()
	recs, err := ParseRecords(s)
	require.NoError(t, err)
	return recs
}

func TestParseRecords_PreservesKeyOrder(t *testing.T) {
	recs := mustParse(t, `[{"zeta":1,"alpha":{"y":2,"x":3},"mid":[1,2]}]`)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, recs[0].Keys())

	nested, ok := recs[0].Get("alpha")
	require.True(t, ok)
	assert.Equal(t, []string{"y", "x"}, nested.(*Record).Keys())

	v, _ := recs[0].Get("zeta")
	assert.Equal(t, json.Number("1"), v)
}

func TestParseRecords_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "list of objects", input: `[{"a":1},{"a":2}]`, want: 2},
		{name: "bare object", input: `{"a":1}`, want: 1},
		{name: "null", input: `null`, want: 0},
		{name: "empty list", input: `[]`, want: 0},
		{name: "list of scalars", input: `[1,2]`, wantErr: true},
		{name: "scalar", input: `"nope"`, wantErr: true},
		{name: "truncated", input: `[{"a":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := ParseRecords(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, recs, tt.want)
		})
	}
}

func TestRecord_MarshalJSONKeepsOrder(t *testing.T) {
	rec := NewRecord("b", 1, "a", NewRecord("d", true, "c", nil))
	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":{"d":true,"c":null}}`, string(out))

	var back Record
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, []string{"b", "a"}, back.Keys())
}

func TestRecord_Without(t *testing.T) {
	rec := NewRecord("tree_id", 1, "stems", []any{}, "species", "pine")
	got := rec.Without("stems")
	assert.Equal(t, []string{"tree_id", "species"}, got.Keys())
	assert.Equal(t, 3, rec.Len(), "original untouched")
}

func TestNormalize_FlattensNestedObjects(t *testing.T) {
	recs := mustParse(t, `[
		{"id":1,"pos":{"x":1.5,"y":2},"tags":["a"]},
		{"id":2,"extra":"e","pos":{"x":3}}
	]`)
	tbl := Normalize(recs)
	assert.Equal(t, []string{"id", "pos.x", "pos.y", "tags", "extra"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, json.Number("1.5"), tbl.Rows[0]["pos.x"])
	assert.Equal(t, []any{"a"}, tbl.Rows[0]["tags"])
	assert.Nil(t, tbl.Rows[1]["pos.y"])
	assert.Equal(t, "e", tbl.Rows[1]["extra"])
}

func TestNormalize_EmptyNestedObjectIsNil(t *testing.T) {
	tbl := Normalize(mustParse(t, `[{"a":{}}]`))
	assert.Equal(t, []string{"a"}, tbl.Columns)
	assert.Nil(t, tbl.Rows[0]["a"])
}

func TestConcat(t *testing.T) {
	a := &Table{Columns: []string{"x", "y"}, Rows: []Row{{"x": 1, "y": 2}}}
	b := &Table{Columns: []string{"y", "z"}, Rows: []Row{{"y": 3, "z": 4}, {"y": 5}}}

	got := Concat(a, nil, b)
	assert.Equal(t, []string{"x", "y", "z"}, got.Columns)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, []any{2, 3, 5}, got.Column("y"))
	assert.Equal(t, []any{nil, 4, nil}, got.Column("z"))

	got.Rows[0]["x"] = 99
	assert.Equal(t, 1, a.Rows[0]["x"], "concat copies rows")
}

func TestConcat_EmptyIsZeroColumns(t *testing.T) {
	got := Concat()
	assert.Empty(t, got.Columns)
	assert.Equal(t, 0, got.Len())
}

func TestReindex(t *testing.T) {
	tbl := &Table{Columns: []string{"b", "a", "junk"}, Rows: []Row{{"a": 1, "b": 2, "junk": 3}}}
	got := tbl.Reindex([]string{"a", "b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, got.Columns)
	assert.Equal(t, Row{"a": 1, "b": 2}, got.Rows[0])
	assert.Nil(t, got.Rows[0]["c"])

	var nilTable *Table
	assert.Equal(t, []string{"a"}, nilTable.Reindex([]string{"a"}).Columns)
}

func TestRename(t *testing.T) {
	tbl := &Table{
		Columns: []string{"id", "name", "diameter"},
		Rows:    []Row{{"id": 10, "name": "s1", "diameter": 0.2}},
	}
	tbl.Rename(map[string]string{"id": "stem_id", "name": "stem_name"})
	assert.Equal(t, []string{"stem_id", "stem_name", "diameter"}, tbl.Columns)
	assert.Equal(t, Row{"stem_id": 10, "stem_name": "s1", "diameter": 0.2}, tbl.Rows[0])
}

func TestRename_OntoExistingColumnReplacesIt(t *testing.T) {
	tbl := &Table{
		Columns: []string{"stem_id", "id"},
		Rows:    []Row{{"stem_id": "old", "id": "new"}, {"stem_id": "orphan"}},
	}
	tbl.Rename(map[string]string{"id": "stem_id"})
	assert.Equal(t, []string{"stem_id"}, tbl.Columns)
	assert.Equal(t, "new", tbl.Rows[0]["stem_id"])
	assert.Nil(t, tbl.Rows[1]["stem_id"])
}

func TestSetColumnAndApply(t *testing.T) {
	tbl := &Table{Columns: []string{"d"}, Rows: []Row{{"d": 2}, {"d": nil}, {}}}
	tbl.SetColumn("sample_id", int64(7))
	tbl.Apply("d", func(v any) any { return v.(int) * 10 })

	assert.Equal(t, []string{"d", "sample_id"}, tbl.Columns)
	assert.Equal(t, []any{20, nil, nil}, tbl.Column("d"))
	assert.Equal(t, []any{int64(7), int64(7), int64(7)}, tbl.Column("sample_id"))
	_, present := tbl.Rows[2]["d"]
	assert.False(t, present, "missing cells stay missing")
}

func TestRecords_RoundTripsColumnOrder(t *testing.T) {
	tbl := &Table{Columns: []string{"b", "a"}, Rows: []Row{{"a": 1}}}
	recs := tbl.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"b", "a"}, recs[0].Keys())
	v, ok := recs[0].Get("b")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestInt64(t *testing.T) {
	tests := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{in: json.Number("42"), want: 42},
		{in: json.Number("42.0"), want: 42},
		{in: json.Number("4.2"), wantErr: true},
		{in: 7, want: 7},
		{in: int64(8), want: 8},
		{in: 9.0, want: 9},
		{in: "10", want: 10},
		{in: "x", wantErr: true},
		{in: nil, wantErr: true},
		{in: true, wantErr: true},
	}
	for _, tt := range tests {
		got, err := Int64(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %v", tt.in)
			continue
		}
		assert.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got)
	}
}
