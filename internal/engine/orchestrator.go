package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/emission"
	"github.com/rshade/adcarbon/internal/logging"
)

// Orchestrator defaults.
const (
	DefaultTimeout        = 10 * time.Second
	DefaultMaxConcurrency = 4
)

var errComputeDisabled = fmt.Errorf("%w: no compute service configured", ErrComputeFailed)

// errSuperseded stops a background resolution whose activity changed after it
// was scheduled.
var errSuperseded = errors.New("resolution superseded")

// ResultStore persists terminal results between runs.
type ResultStore interface {
	Load(key EntryKey) (Result, bool)
	Save(r Result) error
	DeleteActivity(activityID string) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithResultStore persists terminal results in s.
func WithResultStore(s ResultStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithTimeout bounds each remote call.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxConcurrency bounds the units resolved in parallel by ResolveActivity.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrency = n
		}
	}
}

// WithClock overrides the clock used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// activityState tracks one activity's results. gen survives invalidation so
// that calls started for a superseded version can be recognized. latest holds
// the fingerprint of the newest inputs seen per unit.
type activityState struct {
	gen     uint64
	results map[string]Result
	pending map[string]uint64
	latest  map[string]string
}

// Orchestrator resolves and caches emission results. A nil Computer makes
// every resolution fall back to the estimator.
type Orchestrator struct {
	computer       Computer
	estimator      emission.Estimator
	store          ResultStore
	timeout        time.Duration
	maxConcurrency int
	now            func() time.Time

	mu      sync.Mutex
	genSeq  uint64
	states  map[string]*activityState
	subs    map[int]func(Result)
	nextSub int
	closed  bool

	flights singleflight.Group
	bg      sync.WaitGroup
	calls   atomic.Int64
}

// New creates an Orchestrator.
func New(computer Computer, estimator emission.Estimator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		computer:       computer,
		estimator:      estimator,
		timeout:        DefaultTimeout,
		maxConcurrency: DefaultMaxConcurrency,
		now:            time.Now,
		states:         make(map[string]*activityState),
		subs:           make(map[int]func(Result)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// nextGenLocked hands out generations unique across activities, so a state
// recreated after Forget never matches a call started before it.
func (o *Orchestrator) nextGenLocked() uint64 {
	o.genSeq++
	return o.genSeq
}

func (o *Orchestrator) stateLocked(id string) *activityState {
	st, ok := o.states[id]
	if !ok {
		st = &activityState{
			gen:     o.nextGenLocked(),
			results: map[string]Result{},
			pending: map[string]uint64{},
			latest:  map[string]string{},
		}
		o.states[id] = st
	}
	return st
}

// cachedLocked returns the terminal result for unit if it was computed for the
// activity as given. A result computed for different inputs invalidates the
// whole activity.
func (o *Orchestrator) cachedLocked(ctx context.Context, a activity.Activity, unit, fp string) (Result, bool) {
	st := o.stateLocked(a.ID)
	r, ok := st.results[unit]
	if !ok {
		return Result{}, false
	}
	if r.Fingerprint == fp {
		return r, true
	}
	logging.FromContext(ctx).Debug().
		Ctx(ctx).
		Str("component", "engine").
		Str("activity_id", a.ID).
		Str("unit", unit).
		Msg("activity changed without invalidation, dropping cached results")
	o.invalidateLocked(a.ID)
	return Result{}, false
}

// Resolve returns the terminal result for unit of a, computing it if needed.
// Concurrent callers for the same pair share one remote call. The returned
// error is non-nil only for unknown units, a closed orchestrator or ctx
// cancellation; compute failures produce a Fallback result.
func (o *Orchestrator) Resolve(ctx context.Context, a activity.Activity, unit string) (Result, error) {
	return o.resolve(ctx, a, unit, 0)
}

// resolve implements Resolve. A non-zero pin is the generation a background
// resolution was scheduled under; if the activity was invalidated or its
// inputs changed since, it returns errSuperseded without computing.
func (o *Orchestrator) resolve(ctx context.Context, a activity.Activity, unit string, pin uint64) (Result, error) {
	q, ok := a.Units[unit]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s/%s", ErrUnknownUnit, a.ID, unit)
	}
	key := EntryKey{ActivityID: a.ID, Unit: unit}
	fp := fingerprint(a, unit)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return Result{}, ErrClosed
	}
	if pin != 0 {
		if st := o.states[a.ID]; st == nil || st.gen != pin || st.latest[unit] != fp {
			o.mu.Unlock()
			logging.FromContext(ctx).Debug().
				Ctx(ctx).
				Str("component", "engine").
				Str("key", key.String()).
				Uint64("generation", pin).
				Msg("background resolution superseded")
			return Result{}, errSuperseded
		}
	}
	if r, cached := o.cachedLocked(ctx, a, unit, fp); cached {
		o.mu.Unlock()
		return r, nil
	}
	st := o.stateLocked(a.ID)
	gen := st.gen
	st.pending[unit] = gen
	st.latest[unit] = fp
	o.mu.Unlock()

	flight := key.String() + "#" + strconv.FormatUint(gen, 10) + "#" + fp
	ch := o.flights.DoChan(flight, func() (any, error) {
		return o.compute(context.WithoutCancel(ctx), a, key, q.Value, fp, gen), nil
	})
	select {
	case res := <-ch:
		r, _ := res.Val.(Result)
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// compute produces a terminal result for one flight and commits it.
func (o *Orchestrator) compute(
	ctx context.Context,
	a activity.Activity,
	key EntryKey,
	quantity float64,
	fp string,
	gen uint64,
) Result {
	log := logging.FromContext(ctx)

	if o.store != nil {
		if r, ok := o.store.Load(key); ok && r.Fingerprint == fp && r.Status.Terminal() {
			log.Debug().
				Ctx(ctx).
				Str("component", "engine").
				Str("operation", "resolve").
				Str("key", key.String()).
				Msg("using persisted emission result")
			o.commit(ctx, r, gen, false)
			return r
		}
	}

	start := time.Now()
	kg, err := o.callRemote(ctx, a, key.Unit)
	r := Result{Key: key, Quantity: quantity, Fingerprint: fp, UpdatedAt: o.now()}
	if err != nil {
		r.KgCO2e = o.estimator.Estimate(quantity, key.Unit)
		r.Status = StatusFallback
		r.Source = SourceEstimator
		r.Reason = err.Error()

		ev := log.Warn()
		if errors.Is(err, errComputeDisabled) {
			ev = log.Debug()
		}
		ev.Ctx(ctx).
			Str("component", "engine").
			Str("operation", "resolve").
			Str("activity_id", key.ActivityID).
			Str("unit", key.Unit).
			Float64("quantity", quantity).
			Float64("fallback_kg", r.KgCO2e).
			Err(err).
			Msg("emission compute failed, using local estimate")
	} else {
		r.KgCO2e = kg
		r.Status = StatusResolved
		r.Source = SourceRemote

		log.Debug().
			Ctx(ctx).
			Str("component", "engine").
			Str("operation", "resolve").
			Str("key", key.String()).
			Float64("kg_co2e", kg).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("emission resolved remotely")
	}

	o.commit(ctx, r, gen, true)
	return r
}

func (o *Orchestrator) callRemote(ctx context.Context, a activity.Activity, unit string) (float64, error) {
	if o.computer == nil {
		return 0, errComputeDisabled
	}
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	o.calls.Add(1)
	kg, err := o.computer.Compute(callCtx, NewDescriptor(a, unit))
	if err != nil {
		if !errors.Is(err, ErrComputeFailed) {
			err = fmt.Errorf("%w: %w", ErrComputeFailed, err)
		}
		return 0, err
	}
	if math.IsNaN(kg) || math.IsInf(kg, 0) || kg < 0 {
		return 0, fmt.Errorf("%w: invalid emissions %v", ErrComputeFailed, kg)
	}
	return kg, nil
}

// commit stores r unless its activity was invalidated or forgotten after the
// flight began, or newer inputs for the same unit were seen since.
func (o *Orchestrator) commit(ctx context.Context, r Result, gen uint64, persist bool) bool {
	o.mu.Lock()
	st, known := o.states[r.Key.ActivityID]
	if known && st.gen == gen {
		if g, ok := st.pending[r.Key.Unit]; ok && g == gen && st.latest[r.Key.Unit] == r.Fingerprint {
			delete(st.pending, r.Key.Unit)
		}
	}
	if !known || st.gen != gen || st.latest[r.Key.Unit] != r.Fingerprint || o.closed {
		o.mu.Unlock()
		logging.FromContext(ctx).Debug().
			Ctx(ctx).
			Str("component", "engine").
			Str("key", r.Key.String()).
			Uint64("generation", gen).
			Msg("discarding stale emission result")
		return false
	}
	st.results[r.Key.Unit] = r
	subs := make([]func(Result), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	if persist && o.store != nil {
		if err := o.store.Save(r); err != nil {
			logging.FromContext(ctx).Warn().
				Ctx(ctx).
				Str("component", "engine").
				Str("key", r.Key.String()).
				Err(err).
				Msg("failed to persist emission result")
		}
	}
	for _, fn := range subs {
		fn(r)
	}
	return true
}

// Display returns the value to show for unit of a right now without blocking.
// Without a terminal result it returns the local estimate flagged Pending and
// starts a background resolution unless one is already in flight.
func (o *Orchestrator) Display(ctx context.Context, a activity.Activity, unit string) Result {
	key := EntryKey{ActivityID: a.ID, Unit: unit}
	q, ok := a.Units[unit]
	if !ok {
		return Result{Key: key, Status: StatusPending, Source: SourceEstimator}
	}
	fp := fingerprint(a, unit)

	o.mu.Lock()
	if r, cached := o.cachedLocked(ctx, a, unit, fp); cached {
		o.mu.Unlock()
		return r
	}
	if !o.closed {
		st := o.stateLocked(a.ID)
		if g, inFlight := st.pending[unit]; !inFlight || g != st.gen || st.latest[unit] != fp {
			gen := st.gen
			st.pending[unit] = gen
			st.latest[unit] = fp
			o.bg.Add(1)
			go func() {
				defer o.bg.Done()
				_, _ = o.resolve(context.WithoutCancel(ctx), a, unit, gen)
			}()
		}
	}
	o.mu.Unlock()

	return Result{
		Key:         key,
		Quantity:    q.Value,
		KgCO2e:      o.estimator.Estimate(q.Value, unit),
		Status:      StatusPending,
		Source:      SourceEstimator,
		Fingerprint: fp,
		UpdatedAt:   o.now(),
	}
}

// ActivityTotal sums the terminal results available for a. provisional is
// true when any unit has no terminal result yet.
func (o *Orchestrator) ActivityTotal(a activity.Activity) (kg float64, provisional bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.states[a.ID]
	for unit := range a.Units {
		if st == nil {
			return 0, true
		}
		r, ok := st.results[unit]
		if !ok || r.Fingerprint != fingerprint(a, unit) {
			provisional = true
			continue
		}
		kg += r.KgCO2e
	}
	return kg, provisional
}

// Results returns the terminal results cached for activityID, sorted by unit.
func (o *Orchestrator) Results(activityID string) []Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.states[activityID]
	if st == nil {
		return nil
	}
	out := make([]Result, 0, len(st.results))
	for _, r := range st.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Unit < out[j].Key.Unit })
	return out
}

// CurrentResults returns the terminal results computed from a as given,
// sorted by unit. Results cached for other inputs are left out.
func (o *Orchestrator) CurrentResults(a activity.Activity) []Result {
	all := o.Results(a.ID)
	out := make([]Result, 0, len(all))
	for _, r := range all {
		if _, ok := a.Units[r.Key.Unit]; ok && r.Fingerprint == fingerprint(a, r.Key.Unit) {
			out = append(out, r)
		}
	}
	return out
}

// ResolveActivity resolves every unit of a independently and returns the
// results in unit order.
func (o *Orchestrator) ResolveActivity(ctx context.Context, a activity.Activity) ([]Result, error) {
	units := a.UnitNames()
	out := make([]Result, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrency)
	for i, unit := range units {
		g.Go(func() error {
			r, err := o.Resolve(gctx, a, unit)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolving activity %s: %w", a.ID, err)
	}
	return out, nil
}

// Invalidate discards every result for activityID. Calls already in flight
// for it complete but their results are dropped.
func (o *Orchestrator) Invalidate(ctx context.Context, activityID string) {
	o.mu.Lock()
	o.invalidateLocked(activityID)
	o.mu.Unlock()

	if o.store != nil {
		if err := o.store.DeleteActivity(activityID); err != nil {
			logging.FromContext(ctx).Warn().
				Ctx(ctx).
				Str("component", "engine").
				Str("activity_id", activityID).
				Err(err).
				Msg("failed to delete persisted emission results")
		}
	}
}

func (o *Orchestrator) invalidateLocked(activityID string) {
	st := o.stateLocked(activityID)
	st.gen = o.nextGenLocked()
	clear(st.results)
	clear(st.pending)
	clear(st.latest)
}

// Forget invalidates activityID and releases its state. Use it for activities
// that will not be resolved again.
func (o *Orchestrator) Forget(ctx context.Context, activityID string) {
	o.Invalidate(ctx, activityID)
	o.mu.Lock()
	delete(o.states, activityID)
	o.mu.Unlock()
}


// Subscribe registers fn to be called after each stored result. The returned
// function unregisters it.
func (o *Orchestrator) Subscribe(fn func(Result)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

// Calls returns the number of remote compute calls issued.
func (o *Orchestrator) Calls() int64 { return o.calls.Load() }

// Wait blocks until background resolutions started by Display finish.
func (o *Orchestrator) Wait() { o.bg.Wait() }

// Close rejects new work and waits for background resolutions.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.bg.Wait()
}

// fingerprint identifies the inputs a result was computed from.
func fingerprint(a activity.Activity, unit string) string {
	b, err := json.Marshal(NewDescriptor(a, unit))
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
