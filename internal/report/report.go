// Package report renders download results for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	prettytable "github.com/jedib0t/go-pretty/v6/table"

	"arboreal/harvest/internal/aggregate"
	"arboreal/harvest/internal/db"
	"arboreal/harvest/internal/export"
	"arboreal/harvest/internal/table"
)

// maxCellWidth caps cell text in terminal tables.
const maxCellWidth = 40

// maxDiagnostics is how many diagnostics the human summary lists.
const maxDiagnostics = 10

// TableCount is the size of one exported dataset.
type TableCount struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// Summary describes one completed download.
type Summary struct {
	RunID       string                     `json:"run_id,omitempty"`
	Samples     int                        `json:"samples"`
	Skipped     int                        `json:"skipped"`
	Tables      []TableCount               `json:"tables"`
	Archive     string                     `json:"archive,omitempty"`
	SQLite      string                     `json:"sqlite,omitempty"`
	UploadKey   string                     `json:"upload_key,omitempty"`
	UploadURL   string                     `json:"upload_url,omitempty"`
	ElapsedMs   int64                      `json:"elapsed_ms"`
	Diagnostics []aggregate.Diagnostic     `json:"diagnostics"`
	Integrity   *aggregate.IntegrityReport `json:"integrity,omitempty"`
}

// NewSummary collects counts from res.
func NewSummary(res *aggregate.Result) *Summary {
	s := &Summary{
		Samples:     res.Samples.Len(),
		Skipped:     res.Skipped,
		Diagnostics: res.Diagnostics,
	}
	if s.Diagnostics == nil {
		s.Diagnostics = []aggregate.Diagnostic{}
	}
	for _, n := range res.Tables() {
		cols := 0
		if n.Table != nil {
			cols = len(n.Table.Columns)
		}
		s.Tables = append(s.Tables, TableCount{Name: n.Name, Rows: n.Table.Len(), Columns: cols})
	}
	return s
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSummary prints the human-readable download summary.
func WriteSummary(w io.Writer, s *Summary) {
	t := prettytable.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(prettytable.StyleLight)
	t.AppendHeader(prettytable.Row{"Dataset", "Rows", "Columns"})
	for _, tc := range s.Tables {
		t.AppendRow(prettytable.Row{tc.Name, tc.Rows, tc.Columns})
	}
	t.Render()

	fmt.Fprintf(w, "Samples: %d (%d skipped)\n", s.Samples, s.Skipped)
	if s.Archive != "" {
		fmt.Fprintf(w, "Archive: %s\n", s.Archive)
	}
	if s.SQLite != "" {
		fmt.Fprintf(w, "SQLite:  %s\n", s.SQLite)
	}
	if s.UploadKey != "" {
		fmt.Fprintf(w, "Upload:  %s\n", s.UploadKey)
	}
	if s.UploadURL != "" {
		fmt.Fprintf(w, "URL:     %s\n", s.UploadURL)
	}
	if s.RunID != "" {
		fmt.Fprintf(w, "Run:     %s\n", s.RunID)
	}
	if s.Integrity != nil && !s.Integrity.OK() {
		fmt.Fprintf(w, "Integrity: %d orphan stems, %d unknown sample ids\n",
			s.Integrity.OrphanStems, len(s.Integrity.UnknownSampleIDs))
	}
	fmt.Fprintf(w, "Elapsed: %s\n", FormatDurationShort(s.ElapsedMs))

	WriteDiagnostics(w, s.Diagnostics, maxDiagnostics)
}

// WriteDiagnostics lists up to limit diagnostics. limit <= 0 means all.
func WriteDiagnostics(w io.Writer, diags []aggregate.Diagnostic, limit int) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintf(w, "\nDiagnostics (%d):\n", len(diags))
	for i, d := range diags {
		if limit > 0 && i == limit {
			fmt.Fprintf(w, "  ... %d more\n", len(diags)-limit)
			break
		}
		line := fmt.Sprintf("  sample %d  %-12s %s", d.SampleID, d.Stage, d.Reason)
		if d.Message != "" {
			line += "  " + TruncateMiddle(d.Message, 80)
		}
		fmt.Fprintln(w, line)
	}
}

// WriteTable renders the first limit rows of t. limit <= 0 means all rows.
func WriteTable(w io.Writer, t *table.Table, limit int) {
	if t.Len() == 0 {
		fmt.Fprintln(w, "(0 rows)")
		return
	}
	pt := prettytable.NewWriter()
	pt.SetOutputMirror(w)
	pt.SetStyle(prettytable.StyleLight)

	header := make(prettytable.Row, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	pt.AppendHeader(header)

	shown := t.Len()
	if limit > 0 && limit < shown {
		shown = limit
	}
	for _, r := range t.Rows[:shown] {
		row := make(prettytable.Row, len(t.Columns))
		for i, c := range t.Columns {
			s, err := export.FormatValue(r[c])
			if err != nil {
				s = fmt.Sprint(r[c])
			}
			row[i] = TruncateMiddle(s, maxCellWidth)
		}
		pt.AppendRow(row)
	}
	pt.Render()
	if shown < t.Len() {
		fmt.Fprintf(w, "(%d of %d rows)\n", shown, t.Len())
	} else {
		fmt.Fprintf(w, "(%d rows)\n", t.Len())
	}
}

// WriteRuns renders the run history.
func WriteRuns(w io.Writer, runs []db.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	t := prettytable.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(prettytable.StyleLight)
	t.AppendHeader(prettytable.Row{"Run", "Started", "Took", "Samples", "Skipped", "Trees", "Stems", "Calcs", "Heights", "Archive"})
	for _, r := range runs {
		archive := "-"
		if r.ArchivePath != nil {
			archive = TruncateMiddle(*r.ArchivePath, maxCellWidth)
		}
		if r.UploadKey != nil {
			archive = TruncateMiddle(*r.UploadKey, maxCellWidth)
		}
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		t.AppendRow(prettytable.Row{
			id, FormatMillis(r.StartedAt), FormatDurationShort(r.FinishedAt - r.StartedAt),
			r.SampleCount, r.Skipped, r.Trees, r.Stems, r.Calculations, r.Heights, archive,
		})
	}
	t.Render()
}
