package engine

import (
	"context"
	"time"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/logging"
	"github.com/rshade/adcarbon/internal/schedule"
)

// DefaultPreviewDelay is the quiet period before a preview recomputes.
const DefaultPreviewDelay = 300 * time.Millisecond

// PreviewResult is a completed preview of a draft.
type PreviewResult struct {
	Generation uint64
	Results    []Result
	KgCO2e     float64
}

// Preview recomputes the emissions of an unsaved draft after input settles.
// Every Update supersedes earlier ones; a superseded run never publishes.
type Preview struct {
	orch     *Orchestrator
	id       string
	debounce *schedule.Debouncer
	gen      schedule.Generation
	publish  func(PreviewResult)
}

// NewPreview returns a Preview that resolves drafts through orch and passes
// each current result to publish. publish runs on a background goroutine.
func NewPreview(orch *Orchestrator, delay time.Duration, publish func(PreviewResult)) *Preview {
	if delay <= 0 {
		delay = DefaultPreviewDelay
	}
	return &Preview{
		orch:     orch,
		id:       "preview-" + activity.NewID(),
		debounce: schedule.NewDebouncer(delay),
		publish:  publish,
	}
}

// Update schedules a recomputation for draft, cancelling any pending one.
// It returns the generation that will be published if nothing supersedes it.
func (p *Preview) Update(ctx context.Context, draft activity.Activity) uint64 {
	gen := p.gen.Next()
	draft = draft.Clone()
	draft.ID = p.id
	p.debounce.Schedule(func() { p.run(ctx, draft, gen) })
	return gen
}

func (p *Preview) run(ctx context.Context, draft activity.Activity, gen uint64) {
	if !p.gen.IsCurrent(gen) {
		return
	}
	p.orch.Invalidate(ctx, p.id)
	results, err := p.orch.ResolveActivity(ctx, draft)
	log := logging.FromContext(ctx)
	if err != nil {
		log.Debug().Ctx(ctx).Str("component", "preview").Err(err).Msg("preview resolution failed")
		return
	}
	if !p.gen.IsCurrent(gen) {
		log.Debug().Ctx(ctx).Str("component", "preview").Uint64("generation", gen).Msg("preview superseded")
		return
	}
	out := PreviewResult{Generation: gen, Results: results}
	for _, r := range results {
		out.KgCO2e += r.KgCO2e
	}
	p.publish(out)
}

// Current returns the generation of the latest Update.
func (p *Preview) Current() uint64 { return p.gen.Current() }

// Cancel drops the pending recomputation and supersedes any running one.
func (p *Preview) Cancel() {
	p.gen.Next()
	p.debounce.Cancel()
}

// Stop cancels pending work, rejects further updates and drops the draft's
// results.
func (p *Preview) Stop() {
	p.gen.Next()
	p.debounce.Stop()
	p.orch.Forget(context.Background(), p.id)
}
