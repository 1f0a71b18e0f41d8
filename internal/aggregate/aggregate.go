// Package aggregate turns per-sample Arboreal detail records into the five
// export datasets: Samples, Trees, Stems, Calculations and Heights.
//
// Every sample is fetched and flattened on its own. A sample that cannot be
// fetched, or whose record is malformed, is recorded as a Diagnostic and the
// batch moves on; only a structurally unusable summary table fails the call.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"arboreal/harvest/internal/table"
)

// Options configures an Aggregator.
type Options struct {
	// Concurrency bounds parallel detail fetches. Values below 2 process
	// samples strictly one after another.
	Concurrency int
	Progress    ProgressFunc
	Logger      *slog.Logger
}

// Aggregator fetches and flattens sample details.
type Aggregator struct {
	concurrency int
	progress    ProgressFunc
	logger      *slog.Logger
}

// New constructs an Aggregator.
func New(opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Aggregator{concurrency: concurrency, progress: opts.Progress, logger: logger}
}

// LoadSamples fetches the sample index and projects it onto SampleColumns.
func LoadSamples(ctx context.Context, lister SampleLister) (*table.Table, error) {
	records, err := lister.FetchSampleList(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching sample list: %w", err)
	}
	return table.Normalize(records).Reindex(SampleColumns), nil
}

// Aggregate fetches the detail record of every sample in samples and merges
// the flattened rows into the five datasets. The samples table is returned
// unmodified as the Samples dataset.
func (a *Aggregator) Aggregate(ctx context.Context, samples *table.Table, fetcher DetailFetcher) (*Result, error) {
	if fetcher == nil {
		return nil, errors.New("aggregate: nil detail fetcher")
	}
	ids, err := sampleIDs(samples)
	if err != nil {
		return nil, err
	}

	results := make([]sampleResult, len(ids))
	if a.concurrency == 1 || len(ids) < 2 {
		for i, id := range ids {
			results[i] = a.processSample(ctx, id, fetcher)
			a.notify(i+1, len(ids))
		}
	} else {
		a.fetchParallel(ctx, ids, fetcher, results)
	}

	res := merge(samples, results)
	for _, d := range res.Diagnostics {
		a.logger.Warn("sample record problem",
			slog.Int64("sample_id", d.SampleID),
			slog.String("stage", string(d.Stage)),
			slog.String("reason", string(d.Reason)),
			slog.String("detail", d.Message))
	}
	a.logger.Debug("aggregation complete",
		slog.Int("samples", len(ids)),
		slog.Int("skipped", res.Skipped),
		slog.Int("trees", res.Trees.Len()),
		slog.Int("stems", res.Stems.Len()),
		slog.Int("calculations", res.Calculations.Len()),
		slog.Int("heights", res.Heights.Len()))
	return res, nil
}

// fetchParallel keeps results positional so row order still follows input
// order. Progress is reported under mu, which serializes the observer.
func (a *Aggregator) fetchParallel(ctx context.Context, ids []int64, fetcher DetailFetcher, results []sampleResult) {
	var (
		g         errgroup.Group
		mu        sync.Mutex
		completed int
	)
	g.SetLimit(a.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			r := a.processSample(ctx, id, fetcher)
			mu.Lock()
			defer mu.Unlock()
			results[i] = r
			completed++
			a.notify(completed, len(ids))
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Aggregator) notify(completed, total int) {
	if a.progress != nil {
		a.progress(completed, total)
	}
}

func sampleIDs(samples *table.Table) ([]int64, error) {
	if samples == nil {
		return nil, &StructuralError{Row: -1, Reason: "sample table is nil"}
	}
	if !samples.HasColumn(SampleIDColumn) {
		return nil, &StructuralError{Row: -1, Reason: "missing " + SampleIDColumn + " column"}
	}
	ids := make([]int64, 0, samples.Len())
	for i, row := range samples.Rows {
		id, err := table.Int64(row[SampleIDColumn])
		if err != nil {
			return nil, &StructuralError{Row: i, Reason: fmt.Sprintf("%s: %v", SampleIDColumn, err)}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func merge(samples *table.Table, results []sampleResult) *Result {
	var trees, stems, calcs, heights []*table.Table
	res := &Result{Samples: samples}
	for _, r := range results {
		res.Diagnostics = append(res.Diagnostics, r.diagnostics...)
		if r.dropped {
			res.Skipped++
			continue
		}
		trees = appendNonEmpty(trees, r.tree)
		stems = appendNonEmpty(stems, r.stems)
		calcs = appendNonEmpty(calcs, r.calculations)
		heights = appendNonEmpty(heights, r.heights)
	}
	res.Trees = table.Concat(trees...)
	res.Stems = table.Concat(stems...)
	res.Calculations = table.Concat(calcs...)
	res.Heights = table.Concat(heights...)

	res.Stems.Apply(diameterColumn, metersToCentimeters)
	res.Heights.Apply(diameterColumn, metersToCentimeters)
	return res
}

func appendNonEmpty(acc []*table.Table, t *table.Table) []*table.Table {
	if t.Len() == 0 {
		return acc
	}
	return append(acc, t)
}
