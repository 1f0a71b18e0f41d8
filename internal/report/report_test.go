package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arboreal/harvest/internal/aggregate"
	"arboreal/harvest/internal/db"
	"arboreal/harvest/internal/table"
)

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0.0s"},
		{500, "0.5s"},
		{1200, "1.2s"},
		{65000, "1m5s"},
		{3700000, "1h1m"},
	}

	for _, tt := range tests {
		got := FormatDurationShort(tt.ms)
		if got != tt.want {
			t.Errorf("FormatDurationShort(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestTruncateMiddle(t *testing.T) {
	tests := []struct {
		s      string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"abcdefghij", 7, "ab...ij"},
		{"hello world!", 9, "hel...ld!"},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
	}

	for _, tt := range tests {
		got := TruncateMiddle(tt.s, tt.maxLen)
		if got != tt.want {
			t.Errorf("TruncateMiddle(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
		}
		if len(got) > tt.maxLen {
			t.Errorf("TruncateMiddle(%q, %d) length %d exceeds max %d", tt.s, tt.maxLen, len(got), tt.maxLen)
		}
	}
}

func TestFormatMillis(t *testing.T) {
	assert.Equal(t, "-", FormatMillis(0))
	assert.Equal(t, "2026-01-02 03:04:05", FormatMillis(1767323045000))
}

func sampleResult() *aggregate.Result {
	return &aggregate.Result{
		Samples:      &table.Table{Columns: []string{"sample_id"}, Rows: []table.Row{{"sample_id": 1}, {"sample_id": 2}}},
		Trees:        &table.Table{Columns: []string{"tree_id", "sample_id"}, Rows: []table.Row{{"tree_id": 1, "sample_id": 1}}},
		Stems:        table.New(),
		Calculations: table.New(),
		Heights:      table.New(),
		Skipped:      1,
		Diagnostics: []aggregate.Diagnostic{
			{SampleID: 2, Stage: aggregate.StageFetch, Reason: aggregate.ReasonFetchError, Message: "timeout"},
		},
	}
}

func TestNewSummaryAndWrite(t *testing.T) {
	s := NewSummary(sampleResult())
	s.Archive = "arboreal_data.zip"
	s.ElapsedMs = 1500

	require.Len(t, s.Tables, 5)
	assert.Equal(t, TableCount{Name: "Trees", Rows: 1, Columns: 2}, s.Tables[1])

	var buf bytes.Buffer
	WriteSummary(&buf, s)
	out := buf.String()
	assert.Contains(t, strings.ToLower(out), "dataset")
	assert.Contains(t, out, "Samples: 2 (1 skipped)")
	assert.Contains(t, out, "Archive: arboreal_data.zip")
	assert.Contains(t, out, "Elapsed: 1.5s")
	assert.Contains(t, out, "sample 2")
	assert.Contains(t, out, "fetch_error")
}

func TestSummaryJSON(t *testing.T) {
	res := sampleResult()
	res.Diagnostics = nil
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, NewSummary(res)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, []any{}, decoded["diagnostics"])
	assert.EqualValues(t, 2, decoded["samples"])
}

func TestWriteDiagnostics_Limit(t *testing.T) {
	var diags []aggregate.Diagnostic
	for i := 0; i < 5; i++ {
		diags = append(diags, aggregate.Diagnostic{SampleID: int64(i), Stage: aggregate.StageTrees, Reason: aggregate.ReasonNoTrees})
	}
	var buf bytes.Buffer
	WriteDiagnostics(&buf, diags, 2)
	assert.Contains(t, buf.String(), "... 3 more")
	assert.Equal(t, 2, strings.Count(buf.String(), "no_trees"))
}

func TestWriteTable(t *testing.T) {
	tbl := &table.Table{Columns: []string{"sample_id", "name"}, Rows: []table.Row{
		{"sample_id": json.Number("1"), "name": strings.Repeat("x", 100)},
		{"sample_id": json.Number("2"), "name": nil},
	}}
	var buf bytes.Buffer
	WriteTable(&buf, tbl, 1)
	out := buf.String()
	assert.Contains(t, strings.ToLower(out), "sample_id")
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "(1 of 2 rows)")

	buf.Reset()
	WriteTable(&buf, table.New("a"), 0)
	assert.Equal(t, "(0 rows)\n", buf.String())
}

func TestWriteRuns(t *testing.T) {
	var buf bytes.Buffer
	WriteRuns(&buf, nil)
	assert.Equal(t, "No runs recorded.\n", buf.String())

	archive := "/data/arboreal_data.zip"
	buf.Reset()
	WriteRuns(&buf, []db.Run{{ID: "0123456789abcdef", StartedAt: 1000, FinishedAt: 3500, SampleCount: 4, ArchivePath: &archive}})
	out := buf.String()
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "2.5s")
	assert.Contains(t, out, "arboreal_data.zip")
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf)
	fn := p.Func()
	fn(1, 2)
	fn(2, 2)
	assert.Equal(t, 2, p.Completed())
	assert.Contains(t, buf.String(), "Processing samples 1/2 (50%)")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}
