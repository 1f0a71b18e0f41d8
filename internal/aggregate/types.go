package aggregate

import (
	"context"
	"fmt"

	"arboreal/harvest/internal/table"
)

// Dataset names, in export order
const (
	SamplesTable      = "Samples"
	TreesTable        = "Trees"
	StemsTable        = "Stems"
	CalculationsTable = "Calculations"
	HeightsTable      = "Heights"
)

// SampleIDColumn identifies a sample across all five datasets.
const SampleIDColumn = "sample_id"

// SampleColumns is the Samples dataset layout. Order is significant.
var SampleColumns = []string{
	"sample_id", "external_id", "external_name", "name", "unix_time",
	"area", "sample_radius", "measure_method_type", "longitude", "latitude",
	"altitude", "gps_stamp_horizontal_accuracy", "center_x", "center_y",
	"center_z", "tracking_not_available", "tracking_limited",
	"tracking_normal", "latest_sync", "heading", "comment", "customer_id",
	"app_version", "model",
}

// SampleLister returns the flat list of sample summaries.
type SampleLister interface {
	FetchSampleList(ctx context.Context) ([]*table.Record, error)
}

// DetailFetcher returns the detail payload of one sample.
// A nil slice with a nil error means the sample is absent upstream.
type DetailFetcher interface {
	FetchSampleDetail(ctx context.Context, sampleID int64) ([]*table.Record, error)
}

// DetailFetcherFunc adapts a function to DetailFetcher.
type DetailFetcherFunc func(ctx context.Context, sampleID int64) ([]*table.Record, error)

func (f DetailFetcherFunc) FetchSampleDetail(ctx context.Context, sampleID int64) ([]*table.Record, error) {
	return f(ctx, sampleID)
}

// ProgressFunc observes aggregation progress. It is called once per sample,
// never concurrently, with completed rising from 1 to total.
type ProgressFunc func(completed, total int)

// Stage is the part of a sample record a diagnostic refers to
type Stage string

const (
	StageFetch        Stage = "fetch"
	StageTrees        Stage = "trees"
	StageStems        Stage = "stems"
	StageCalculations Stage = "calculations"
	StageHeights      Stage = "heights"
)

// SkipReason classifies why rows were not produced
type SkipReason string

const (
	ReasonFetchError SkipReason = "fetch_error"
	ReasonAbsent     SkipReason = "absent"
	ReasonMalformed  SkipReason = "malformed_record"
	ReasonNoTrees    SkipReason = "no_trees"
)

// Diagnostic records a recovered per-sample problem.
type Diagnostic struct {
	SampleID int64      `json:"sample_id"`
	Stage    Stage      `json:"stage"`
	Reason   SkipReason `json:"reason"`
	Message  string     `json:"message,omitempty"`
	Err      error      `json:"-"`
}

// DropsSample reports whether the diagnostic removed the whole sample from the
// output, as opposed to a single sub-structure.
func (d Diagnostic) DropsSample() bool {
	return d.Stage == StageFetch || d.Stage == StageTrees
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("sample %d: %s (%s)", d.SampleID, d.Reason, d.Stage)
	if d.Message != "" {
		s += ": " + d.Message
	}
	return s
}

// StructuralError means the summary input cannot be processed at all.
type StructuralError struct {
	Row    int // -1 when not tied to a row
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Row < 0 {
		return "invalid sample input: " + e.Reason
	}
	return fmt.Sprintf("invalid sample input at row %d: %s", e.Row, e.Reason)
}

// Result is the merged output of one aggregation.
type Result struct {
	Samples      *table.Table
	Trees        *table.Table
	Stems        *table.Table
	Calculations *table.Table
	Heights      *table.Table

	Diagnostics []Diagnostic
	Skipped     int // samples that contributed no rows at all
}

// Tables returns the five datasets tagged by name, in export order.
func (r *Result) Tables() []table.Named {
	return []table.Named{
		{Name: SamplesTable, Table: r.Samples},
		{Name: TreesTable, Table: r.Trees},
		{Name: StemsTable, Table: r.Stems},
		{Name: CalculationsTable, Table: r.Calculations},
		{Name: HeightsTable, Table: r.Heights},
	}
}

// Counts returns the row count per dataset name.
func (r *Result) Counts() map[string]int {
	out := make(map[string]int, 5)
	for _, n := range r.Tables() {
		out[n.Name] = n.Table.Len()
	}
	return out
}
