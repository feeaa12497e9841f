// Package batch runs a callback over fixed-size batches of items, either
// sequentially or with bounded concurrency, and reports progress.
package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchSize is the default number of items per batch.
	DefaultBatchSize = 25

	// MaxBatchSize is the largest accepted batch size.
	MaxBatchSize = 1000
)

// ErrInvalidBatchSize is returned for sizes outside [1, MaxBatchSize].
var ErrInvalidBatchSize = fmt.Errorf("batch size must be between 1 and %d", MaxBatchSize)

// ErrNilCallback is returned when no callback is supplied.
var ErrNilCallback = errors.New("batch callback cannot be nil")

// Callback processes one batch. index is zero-based.
type Callback[T any] func(ctx context.Context, batch []T, index int) error

// ProgressFunc receives a snapshot after each completed batch.
type ProgressFunc func(Snapshot)

// Processor splits items into batches.
type Processor[T any] struct {
	size       int
	onProgress ProgressFunc
}

// NewProcessor returns a Processor with the given batch size.
func NewProcessor[T any](size int) (*Processor[T], error) {
	if size < 1 || size > MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, size)
	}
	return &Processor[T]{size: size}, nil
}

// WithProgress sets the progress callback. It may be called concurrently by
// ProcessConcurrent.
func (p *Processor[T]) WithProgress(fn ProgressFunc) *Processor[T] {
	p.onProgress = fn
	return p
}

// Size returns the batch size.
func (p *Processor[T]) Size() int { return p.size }

// Process runs callback over each batch in order and stops at the first error.
// An empty items slice is a no-op.
func (p *Processor[T]) Process(ctx context.Context, items []T, callback Callback[T]) error {
	if callback == nil {
		return ErrNilCallback
	}
	bounds := p.Batches(len(items))
	progress := NewProgress(len(items), len(bounds))
	for i, b := range bounds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := callback(ctx, items[b[0]:b[1]], i); err != nil {
			return fmt.Errorf("batch %d failed: %w", i, err)
		}
		p.report(progress, b[1]-b[0])
	}
	return nil
}

// ProcessConcurrent runs up to maxConcurrency batches at once. Every batch
// runs; failures are joined into the returned error.
func (p *Processor[T]) ProcessConcurrent(
	ctx context.Context,
	items []T,
	callback Callback[T],
	maxConcurrency int,
) error {
	if callback == nil {
		return ErrNilCallback
	}
	bounds := p.Batches(len(items))
	progress := NewProgress(len(items), len(bounds))
	errs := make([]error, len(bounds))

	var g errgroup.Group
	g.SetLimit(max(maxConcurrency, 1))
	for i, b := range bounds {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			break
		}
		g.Go(func() error {
			if err := callback(ctx, items[b[0]:b[1]], i); err != nil {
				errs[i] = fmt.Errorf("batch %d failed: %w", i, err)
				return nil
			}
			p.report(progress, b[1]-b[0])
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Batches returns the [start, end) bounds of each batch for n items.
func (p *Processor[T]) Batches(n int) [][2]int {
	out := make([][2]int, 0, (n+p.size-1)/p.size)
	for start := 0; start < n; start += p.size {
		out = append(out, [2]int{start, min(start+p.size, n)})
	}
	return out
}

func (p *Processor[T]) report(progress *Progress, items int) {
	snap := progress.Add(items)
	if p.onProgress != nil {
		p.onProgress(snap)
	}
}
