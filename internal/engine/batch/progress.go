package batch

import (
	"sync"
	"time"
)

// Progress tracks completed items and batches. Safe for concurrent use.
type Progress struct {
	mu        sync.Mutex
	total     int
	batches   int
	processed int
	done      int
	start     time.Time
}

// NewProgress starts tracking totalItems split into totalBatches.
func NewProgress(totalItems, totalBatches int) *Progress {
	return &Progress{total: totalItems, batches: totalBatches, start: time.Now()}
}

// Add records one completed batch of items and returns the new state.
func (p *Progress) Add(items int) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed += items
	p.done++
	return p.snapshotLocked()
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Progress) snapshotLocked() Snapshot {
	return Snapshot{
		TotalItems:       p.total,
		ProcessedItems:   p.processed,
		TotalBatches:     p.batches,
		ProcessedBatches: p.done,
		Elapsed:          time.Since(p.start),
	}
}

// Snapshot is an immutable view of progress.
type Snapshot struct {
	TotalItems       int
	ProcessedItems   int
	TotalBatches     int
	ProcessedBatches int
	Elapsed          time.Duration
}

// Percent returns completion in the range 0-100.
func (s Snapshot) Percent() float64 {
	if s.TotalItems == 0 {
		return 100
	}
	const percent = 100
	return float64(s.ProcessedItems) / float64(s.TotalItems) * percent
}

// Complete reports whether every item was processed.
func (s Snapshot) Complete() bool { return s.ProcessedItems >= s.TotalItems }
