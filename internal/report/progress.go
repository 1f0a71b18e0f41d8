package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"arboreal/harvest/internal/aggregate"
)

// Progress prints a single self-overwriting status line. It is safe to use
// as an aggregate.ProgressFunc.
type Progress struct {
	mu    sync.Mutex
	w     io.Writer
	start time.Time
	last  int
}

// NewProgress writes progress to w, typically stderr.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w, start: time.Now()}
}

// Func returns the observer to hand to the aggregator.
func (p *Progress) Func() aggregate.ProgressFunc {
	return p.Update
}

// Update records that completed of total samples are done.
func (p *Progress) Update(completed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = completed
	pct := 100
	if total > 0 {
		pct = completed * 100 / total
	}
	fmt.Fprintf(p.w, "\rProcessing samples %d/%d (%d%%) %s", completed, total, pct, FormatElapsed(time.Since(p.start)))
	if completed == total {
		fmt.Fprintln(p.w)
	}
}

// Completed returns the last reported count.
func (p *Progress) Completed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
