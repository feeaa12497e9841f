package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/engine/batch"
	"github.com/rshade/adcarbon/internal/logging"
	"github.com/rshade/adcarbon/internal/totals"
)

// Tracker keeps stored activities and their emission results in step.
// Writes invalidate cached results and start background recalculation.
type Tracker struct {
	store activity.Store
	orch  *Orchestrator
	agg   *totals.Aggregator
	now   func() time.Time
}

// NewTracker wires a store, an orchestrator and an aggregator.
func NewTracker(store activity.Store, orch *Orchestrator, agg *totals.Aggregator) *Tracker {
	return &Tracker{store: store, orch: orch, agg: agg, now: time.Now}
}

// Orchestrator returns the tracker's orchestrator.
func (t *Tracker) Orchestrator() *Orchestrator { return t.orch }

// Add stores a new activity, assigning an ID if it has none, and starts
// resolving its emissions.
func (t *Tracker) Add(ctx context.Context, a activity.Activity) (activity.Activity, error) {
	if a.ID == "" {
		a.ID = activity.NewID()
	}
	now := t.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if err := t.store.Put(ctx, a); err != nil {
		return activity.Activity{}, err
	}
	t.orch.Invalidate(ctx, a.ID)
	t.kick(ctx, a)

	logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "tracker").
		Str("operation", "add").
		Str("activity_id", a.ID).
		Str("channel", a.Channel).
		Int("units", len(a.Units)).
		Msg("activity added")
	return a, nil
}

// Update replaces an existing activity wholesale. Every result of the
// activity is discarded before recalculation starts.
func (t *Tracker) Update(ctx context.Context, a activity.Activity) (activity.Activity, error) {
	prev, err := t.store.Get(ctx, a.ID)
	if err != nil {
		return activity.Activity{}, err
	}
	a.CreatedAt = prev.CreatedAt
	a.UpdatedAt = t.now().UTC()
	if err = t.store.Put(ctx, a); err != nil {
		return activity.Activity{}, err
	}
	t.orch.Invalidate(ctx, a.ID)
	t.kick(ctx, a)

	logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "tracker").
		Str("operation", "update").
		Str("activity_id", a.ID).
		Msg("activity updated")
	return a, nil
}

// Remove deletes an activity and its results.
func (t *Tracker) Remove(ctx context.Context, id string) error {
	if err := t.store.Delete(ctx, id); err != nil {
		return err
	}
	t.orch.Forget(ctx, id)
	return nil
}

// Get returns one activity.
func (t *Tracker) Get(ctx context.Context, id string) (activity.Activity, error) {
	return t.store.Get(ctx, id)
}

// List returns every activity.
func (t *Tracker) List(ctx context.Context) ([]activity.Activity, error) {
	return t.store.List(ctx)
}

// kick starts background resolution for every unit of a.
func (t *Tracker) kick(ctx context.Context, a activity.Activity) {
	for _, unit := range a.UnitNames() {
		t.orch.Display(ctx, a, unit)
	}
}

// ResolveAll resolves every stored activity, batchSize activities at a time.
func (t *Tracker) ResolveAll(ctx context.Context, batchSize, concurrency int, progress batch.ProgressFunc) error {
	items, err := t.store.List(ctx)
	if err != nil {
		return err
	}
	p, err := batch.NewProcessor[activity.Activity](batchSize)
	if err != nil {
		return err
	}
	p.WithProgress(progress)
	return p.ProcessConcurrent(ctx, items, func(ctx context.Context, chunk []activity.Activity, _ int) error {
		var errs []error
		for _, a := range chunk {
			if _, resolveErr := t.orch.ResolveActivity(ctx, a); resolveErr != nil {
				errs = append(errs, resolveErr)
			}
		}
		return errors.Join(errs...)
	}, concurrency)
}

// ActivityEmissions is one activity with its current emission state.
type ActivityEmissions struct {
	Activity    activity.Activity `json:"activity"`
	Results     []Result          `json:"results"`
	KgCO2e      float64           `json:"kg_co2e"`
	Provisional bool              `json:"provisional"`
}

// Report is the totals view over every activity.
type Report struct {
	Totals     totals.Snapshot     `json:"totals"`
	Activities []ActivityEmissions `json:"activities"`
	Resolved   int                 `json:"resolved"`
	Fallbacks  int                 `json:"fallbacks"`
	Pending    int                 `json:"pending"`
}

// Report folds the currently available results. It never waits for pending
// calculations; their activities are marked provisional.
func (t *Tracker) Report(ctx context.Context) (Report, error) {
	items, err := t.store.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing activities: %w", err)
	}
	rep := Report{Activities: make([]ActivityEmissions, 0, len(items))}
	rows := make([]totals.Row, 0, len(items))
	for _, a := range items {
		kg, provisional := t.orch.ActivityTotal(a)
		results := t.orch.CurrentResults(a)
		for _, r := range results {
			switch r.Status {
			case StatusResolved:
				rep.Resolved++
			case StatusFallback:
				rep.Fallbacks++
			case StatusPending:
			}
		}
		rep.Pending += len(a.Units) - len(results)
		rep.Activities = append(rep.Activities, ActivityEmissions{
			Activity:    a,
			Results:     results,
			KgCO2e:      kg,
			Provisional: provisional,
		})
		rows = append(rows, totals.Row{
			ActivityID:  a.ID,
			Channel:     a.Channel,
			Market:      a.Market,
			Scope:       a.Scope,
			KgCO2e:      kg,
			Provisional: provisional,
		})
	}
	rep.Totals = t.agg.Snapshot(rows)
	return rep, nil
}
