package aggregate

import (
	"fmt"
	"sort"

	"arboreal/harvest/internal/table"
)

// IntegrityReport checks the key relationships between the merged datasets
type IntegrityReport struct {
	Samples          int     `json:"samples"`
	SamplesWithTrees int     `json:"samples_with_trees"`
	Coverage         float64 `json:"coverage"` // SamplesWithTrees / Samples, 0 when there are no samples
	OrphanStems      int     `json:"orphan_stems"`
	OrphanStemRows   []int   `json:"orphan_stem_rows"` // first topN, ascending
	UnknownSampleIDs []int64 `json:"unknown_sample_ids"`
}

// OK reports whether every stem hangs off an exported tree and every row
// refers to a known sample.
func (r *IntegrityReport) OK() bool {
	return r.OrphanStems == 0 && len(r.UnknownSampleIDs) == 0
}

type treeKey struct {
	sampleID int64
	treeID   string
}

// CheckIntegrity verifies that each Stems row's (sample_id, tree_id) matches a
// Trees row and that every sample_id used by the derived datasets appears in
// Samples.
func CheckIntegrity(res *Result, topN int) *IntegrityReport {
	report := &IntegrityReport{Samples: res.Samples.Len()}

	known := make(map[int64]struct{}, res.Samples.Len())
	for _, v := range res.Samples.Column(SampleIDColumn) {
		if id, err := table.Int64(v); err == nil {
			known[id] = struct{}{}
		}
	}

	trees := make(map[treeKey]struct{}, res.Trees.Len())
	withTrees := make(map[int64]struct{})
	for _, row := range res.Trees.Rows {
		id, err := table.Int64(row[SampleIDColumn])
		if err != nil {
			continue
		}
		withTrees[id] = struct{}{}
		trees[treeKey{sampleID: id, treeID: keyString(row[treeIDColumn])}] = struct{}{}
	}
	report.SamplesWithTrees = len(withTrees)
	if report.Samples > 0 {
		report.Coverage = float64(report.SamplesWithTrees) / float64(report.Samples)
	}

	for i, row := range res.Stems.Rows {
		id, err := table.Int64(row[SampleIDColumn])
		if err == nil {
			if _, ok := trees[treeKey{sampleID: id, treeID: keyString(row[treeIDColumn])}]; ok {
				continue
			}
		}
		report.OrphanStems++
		if len(report.OrphanStemRows) < topN {
			report.OrphanStemRows = append(report.OrphanStemRows, i)
		}
	}

	unknown := make(map[int64]struct{})
	for _, t := range res.Tables()[1:] {
		for _, v := range t.Table.Column(SampleIDColumn) {
			id, err := table.Int64(v)
			if err != nil {
				continue
			}
			if _, ok := known[id]; !ok {
				unknown[id] = struct{}{}
			}
		}
	}
	for id := range unknown {
		report.UnknownSampleIDs = append(report.UnknownSampleIDs, id)
	}
	sort.Slice(report.UnknownSampleIDs, func(i, j int) bool {
		return report.UnknownSampleIDs[i] < report.UnknownSampleIDs[j]
	})
	return report
}

func keyString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
