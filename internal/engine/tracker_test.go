package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/engine/batch"
	"github.com/rshade/adcarbon/internal/totals"
)

func newTestTracker(t *testing.T, comp Computer) *Tracker {
	t.Helper()
	o := New(comp, testEstimator(t))
	t.Cleanup(o.Close)
	return NewTracker(activity.NewMemoryStore(), o, totals.NewAggregator(totals.DefaultTotalPrecision))
}

func TestTrackerLifecycle(t *testing.T) {
	ctx := context.Background()
	comp := &fakeComputer{rate: 1}
	tr := newTestTracker(t, comp)

	a := testActivity("")
	added, err := tr.Add(ctx, a)
	require.NoError(t, err)
	require.NotEmpty(t, added.ID)
	tr.Orchestrator().Wait()

	rep, err := tr.Report(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, rep.Totals.Total, 1e-9)
	assert.Equal(t, 2, rep.Resolved)
	assert.Zero(t, rep.Pending)
	assert.False(t, rep.Totals.Provisional)

	added.Units = map[string]activity.Quantity{"km": {Label: "Kilometres travelled", Value: 10}}
	updated, err := tr.Update(ctx, added)
	require.NoError(t, err)
	assert.Equal(t, added.CreatedAt, updated.CreatedAt)
	tr.Orchestrator().Wait()

	rep, err = tr.Report(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, rep.Totals.Total, 1e-9)
	assert.Equal(t, int32(3), comp.calls.Load())

	require.NoError(t, tr.Remove(ctx, added.ID))
	require.ErrorIs(t, tr.Remove(ctx, added.ID), activity.ErrNotFound)
	_, err = tr.Update(ctx, added)
	require.ErrorIs(t, err, activity.ErrNotFound)

	rep, err = tr.Report(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Totals.Total)
	assert.Len(t, rep.Totals.ByScope, 3)
}

func TestTrackerReportIsProvisionalWhilePending(t *testing.T) {
	ctx := context.Background()
	comp := &fakeComputer{rate: 1, block: make(chan struct{})}
	tr := newTestTracker(t, comp)
	defer close(comp.block)

	_, err := tr.Add(ctx, testActivity(""))
	require.NoError(t, err)

	rep, err := tr.Report(ctx)
	require.NoError(t, err)
	assert.True(t, rep.Totals.Provisional)
	assert.Equal(t, 2, rep.Pending)
	assert.Zero(t, rep.Totals.Total)
}

func TestTrackerResolveAll(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, nil)
	store := tr.store
	for i := range 5 {
		a := testActivity(activity.NewID())
		a.Market = []string{"UK", "France"}[i%2]
		require.NoError(t, store.Put(ctx, a))
	}

	var (
		mu   sync.Mutex
		last batch.Snapshot
	)
	require.NoError(t, tr.ResolveAll(ctx, 2, 2, func(s batch.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if s.ProcessedItems > last.ProcessedItems {
			last = s
		}
	}))
	assert.Equal(t, 5, last.TotalItems)

	rep, err := tr.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Fallbacks, "no compute service configured")
	// 100 km * 0.5 + 20 kWh * 0.1 per activity.
	assert.InDelta(t, 5*52.0, rep.Totals.Total, 1e-9)
	assert.InDelta(t, 3*52.0, rep.Totals.ByMarket["UK"], 1e-9)
}

func TestPreview(t *testing.T) {
	comp := &fakeComputer{rate: 1}
	o := New(comp, testEstimator(t))
	defer o.Close()

	published := make(chan PreviewResult, 4)
	p := NewPreview(o, 20*time.Millisecond, func(r PreviewResult) { published <- r })
	defer p.Stop()

	draft := testActivity("")
	p.Update(context.Background(), draft)
	draft.Units = map[string]activity.Quantity{"km": {Value: 7}}
	gen := p.Update(context.Background(), draft)

	select {
	case r := <-published:
		assert.Equal(t, gen, r.Generation)
		require.Len(t, r.Results, 1)
		assert.InDelta(t, 7.0, r.KgCO2e, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("preview never published")
	}
	assert.Equal(t, int32(1), comp.calls.Load(), "the superseded draft was never computed")

	p.Update(context.Background(), draft)
	p.Cancel()
	select {
	case <-published:
		t.Fatal("cancelled preview published")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestTrackerUpdateNeverServesOldInputs(t *testing.T) {
	ctx := context.Background()
	comp := &fakeComputer{rate: 1, block: make(chan struct{})}
	tr := newTestTracker(t, comp)

	added, err := tr.Add(ctx, testActivity(""))
	require.NoError(t, err)
	next := added.Clone()
	next.Units["km"] = activity.Quantity{Label: "Kilometres travelled", Value: 150}
	updated, err := tr.Update(ctx, next)
	require.NoError(t, err)

	close(comp.block)
	results, err := tr.Orchestrator().ResolveActivity(ctx, updated)
	require.NoError(t, err)
	tr.Orchestrator().Wait()

	require.Len(t, results, 2)
	assert.InDelta(t, 20.0, results[0].KgCO2e, 1e-9, "kWh")
	assert.InDelta(t, 150.0, results[1].KgCO2e, 1e-9, "km")
	assert.InDelta(t, 150.0, results[1].Quantity, 1e-9)

	rep, err := tr.Report(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 170.0, rep.Totals.Total, 1e-9)
	assert.Equal(t, 2, rep.Resolved)
}

func TestTrackerRemoveForgetsActivity(t *testing.T) {
	ctx := context.Background()
	comp := &fakeComputer{rate: 1}
	tr := newTestTracker(t, comp)

	added, err := tr.Add(ctx, testActivity(""))
	require.NoError(t, err)
	require.NoError(t, tr.Remove(ctx, added.ID))
	tr.Orchestrator().Wait()

	o := tr.Orchestrator()
	o.mu.Lock()
	_, tracked := o.states[added.ID]
	o.mu.Unlock()
	assert.False(t, tracked)
}

func TestTrackerReportCountsOnlyCurrentResults(t *testing.T) {
	ctx := context.Background()
	comp := &fakeComputer{rate: 1}
	tr := newTestTracker(t, comp)

	added, err := tr.Add(ctx, testActivity(""))
	require.NoError(t, err)
	tr.Orchestrator().Wait()

	// Stored behind the tracker's back: the cached results no longer match.
	changed := added.Clone()
	changed.Market = "France"
	require.NoError(t, tr.store.Put(ctx, changed))

	rep, err := tr.Report(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Resolved)
	assert.Zero(t, rep.Fallbacks)
	assert.Equal(t, 2, rep.Pending)
	assert.True(t, rep.Totals.Provisional)
	assert.Empty(t, rep.Activities[0].Results)
}

func TestPreviewSupersededWhileComputing(t *testing.T) {
	comp := &fakeComputer{rate: 1, block: make(chan struct{})}
	o := New(comp, testEstimator(t))
	defer o.Close()

	published := make(chan PreviewResult, 4)
	p := NewPreview(o, 5*time.Millisecond, func(r PreviewResult) { published <- r })
	defer p.Stop()

	draft := testActivity("")
	draft.Units = map[string]activity.Quantity{"km": {Value: 7}}
	first := p.Update(context.Background(), draft)
	require.Eventually(t, func() bool { return comp.calls.Load() == 1 }, time.Second, time.Millisecond)

	draft.Units = map[string]activity.Quantity{"km": {Value: 9}}
	second := p.Update(context.Background(), draft)
	require.NotEqual(t, first, second)
	close(comp.block)

	select {
	case r := <-published:
		assert.Equal(t, second, r.Generation)
		assert.InDelta(t, 9.0, r.KgCO2e, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("current preview never published")
	}
	select {
	case r := <-published:
		t.Fatalf("superseded preview published generation %d", r.Generation)
	case <-time.After(60 * time.Millisecond):
	}
}
