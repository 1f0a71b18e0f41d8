package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arboreal/harvest/internal/table"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "string", in: "pine, scots", want: "pine, scots"},
		{name: "number verbatim", in: json.Number("0.350"), want: "0.350"},
		{name: "integral float", in: 20.0, want: "20.0"},
		{name: "fractional float", in: 12.5, want: "12.5"},
		{name: "nan", in: math.NaN(), want: ""},
		{name: "int64", in: int64(42), want: "42"},
		{name: "true", in: true, want: "True"},
		{name: "false", in: false, want: "False"},
		{name: "list", in: []any{json.Number("1"), "a"}, want: `[1,"a"]`},
		{name: "object", in: table.NewRecord("b", 1, "a", 2), want: `{"b":1,"a":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteCSV(t *testing.T) {
	tbl := &table.Table{
		Columns: []string{"stem_id", "diameter", "comment"},
		Rows: []table.Row{
			{"stem_id": json.Number("10"), "diameter": 20.0, "comment": "bent, \"old\""},
			{"stem_id": json.Number("11")},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, "stem_id,diameter,comment\n10,20.0,\"bent, \"\"old\"\"\"\n11,,\n", buf.String())
}

func TestWriteCSV_NoColumnsIsEmptyFile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table.New()))
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Empty(t, buf.Bytes())
}

func TestWriteCSV_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table.New("a", "b")))
	assert.Equal(t, "a,b\n", buf.String())
}

func TestWriteCSV_SingleEmptyCellKeepsRow(t *testing.T) {
	tbl := &table.Table{
		Columns: []string{"diameter"},
		Rows:    []table.Row{{"diameter": nil}, {"diameter": 1.0}, {}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, "diameter\n\"\"\n1.0\n\"\"\n", buf.String())

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, []any{"", "1.0", ""}, back.Column("diameter"))
}

func TestArchive_RoundTrip(t *testing.T) {
	named := []table.Named{
		{Name: "Samples", Table: &table.Table{Columns: []string{"sample_id", "name"}, Rows: []table.Row{{"sample_id": int64(1), "name": "plot"}}}},
		{Name: "Trees", Table: table.New()},
		{Name: "Stems", Table: &table.Table{Columns: []string{"diameter"}, Rows: []table.Row{{"diameter": 35.0}, {"diameter": nil}}}},
	}
	data, err := Archive(named)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		assert.Equal(t, zip.Deflate, f.Method)
	}
	assert.Equal(t, []string{"Samples.csv", "Trees.csv", "Stems.csv"}, names)

	back, err := ReadZip(data)
	require.NoError(t, err)
	require.Len(t, back, 3)
	assert.Equal(t, "Samples", back[0].Name)
	assert.Equal(t, []string{"sample_id", "name"}, back[0].Table.Columns)
	assert.Equal(t, table.Row{"sample_id": "1", "name": "plot"}, back[0].Table.Rows[0])
	assert.Empty(t, back[1].Table.Columns)
	assert.Equal(t, []any{"35.0", ""}, back[2].Table.Column("diameter"))
}

func TestReadZip_NotAZip(t *testing.T) {
	_, err := ReadZip([]byte("nope"))
	assert.Error(t, err)
}
