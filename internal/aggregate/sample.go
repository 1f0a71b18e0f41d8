package aggregate

import (
	"context"
	"errors"
	"fmt"

	"arboreal/harvest/internal/table"
)

const (
	treesKey        = "trees"
	stemsKey        = "stems"
	treeIDKey       = "tree_id"
	calculationsKey = "calculations"
	heightsKey      = "heightAgeGrowth"
	diameterColumn  = "diameter"
	treeIDColumn    = "tree_id"
)

var (
	stemRenames   = map[string]string{"id": "stem_id", "name": "stem_name"}
	heightRenames = map[string]string{"id": "height_id", "name": "stem_name"}
)

// sampleResult is the outcome of flattening one sample. When dropped is set
// the sample contributes no rows and diagnostics say why.
type sampleResult struct {
	tree         *table.Table
	stems        *table.Table
	calculations *table.Table
	heights      *table.Table
	diagnostics  []Diagnostic
	dropped      bool
}

func (r *sampleResult) note(id int64, stage Stage, reason SkipReason, err error) {
	d := Diagnostic{SampleID: id, Stage: stage, Reason: reason, Err: err}
	if err != nil {
		d.Message = err.Error()
	}
	r.diagnostics = append(r.diagnostics, d)
}

func (r *sampleResult) drop(id int64, stage Stage, reason SkipReason, err error) sampleResult {
	r.note(id, stage, reason, err)
	r.dropped = true
	return *r
}

// processSample fetches and flattens one sample. It never fails: problems
// become diagnostics on the returned result.
func (a *Aggregator) processSample(ctx context.Context, id int64, fetcher DetailFetcher) sampleResult {
	var res sampleResult

	records, err := fetcher.FetchSampleDetail(ctx, id)
	if err != nil {
		return res.drop(id, StageFetch, ReasonFetchError, err)
	}
	if records == nil {
		return res.drop(id, StageFetch, ReasonAbsent, nil)
	}
	if len(records) == 0 || records[0] == nil {
		return res.drop(id, StageFetch, ReasonMalformed, errors.New("empty sample record"))
	}
	detail := records[0]

	rawTrees, ok := detail.Get(treesKey)
	if !ok || rawTrees == nil {
		return res.drop(id, StageTrees, ReasonNoTrees, nil)
	}
	trees, ok := rawTrees.([]any)
	if !ok {
		return res.drop(id, StageTrees, ReasonMalformed, fmt.Errorf("trees is %s, not a list", jsonKind(rawTrees)))
	}
	if len(trees) == 0 {
		return res.drop(id, StageTrees, ReasonNoTrees, nil)
	}
	// Only the first tree of a sample is exported.
	tree, ok := trees[0].(*table.Record)
	if !ok {
		return res.drop(id, StageTrees, ReasonMalformed, fmt.Errorf("first tree is %s, not an object", jsonKind(trees[0])))
	}

	res.tree = table.Normalize([]*table.Record{tree.Without(stemsKey)})
	res.tree.SetColumn(SampleIDColumn, id)

	if stems, err := subList(tree, stemsKey); err != nil {
		res.note(id, StageStems, ReasonMalformed, err)
	} else if len(stems) > 0 {
		treeID, _ := tree.Get(treeIDKey)
		res.stems = table.Normalize(stems)
		res.stems.Rename(stemRenames)
		res.stems.SetColumn(treeIDColumn, treeID)
		res.stems.SetColumn(SampleIDColumn, id)
	}

	if calcs, err := subList(detail, calculationsKey); err != nil {
		res.note(id, StageCalculations, ReasonMalformed, err)
	} else if len(calcs) > 0 {
		res.calculations = table.Normalize(calcs)
		res.calculations.SetColumn(SampleIDColumn, id)
	}

	if heights, err := subList(detail, heightsKey); err != nil {
		res.note(id, StageHeights, ReasonMalformed, err)
	} else if len(heights) > 0 {
		res.heights = table.Normalize(heights)
		res.heights.Rename(heightRenames)
		res.heights.SetColumn(SampleIDColumn, id)
	}

	return res
}

// subList returns the objects stored under key. A missing or null key is an
// empty list; anything that is not a list of objects is an error.
func subList(rec *table.Record, key string) ([]*table.Record, error) {
	raw, ok := rec.Get(key)
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s is %s, not a list", key, jsonKind(raw))
	}
	out := make([]*table.Record, 0, len(items))
	for i, item := range items {
		obj, ok := item.(*table.Record)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is %s, not an object", key, i, jsonKind(item))
		}
		out = append(out, obj)
	}
	return out, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case *table.Record:
		return "an object"
	case []any:
		return "a list"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	default:
		return "a number"
	}
}
