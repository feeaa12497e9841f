package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/emission"
)

// fakeComputer answers quantity*rate. When block is set, calls wait on it.
type fakeComputer struct {
	rate  float64
	err   error
	block chan struct{}
	calls atomic.Int32

	mu    sync.Mutex
	units []string
}

func (f *fakeComputer) Compute(ctx context.Context, d Descriptor) (float64, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.units = append(f.units, d.Unit)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if f.err != nil {
		return 0, f.err
	}
	return d.Quantity * f.rate, nil
}

func testEstimator(t *testing.T) emission.Estimator {
	t.Helper()
	est, err := emission.NewFactorTable(map[string]float64{"km": 0.5, "kWh": 0.1}, 0)
	require.NoError(t, err)
	return est
}

func testActivity(id string) activity.Activity {
	return activity.Activity{
		ID:      id,
		Channel: "Ad Production",
		Market:  "UK",
		Scope:   activity.Scope3,
		Date:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Units: map[string]activity.Quantity{
			"km":  {Label: "Kilometres travelled", Value: 100},
			"kWh": {Label: "Electricity used", Value: 20},
		},
	}
}

func TestResolveSuccessIsCached(t *testing.T) {
	comp := &fakeComputer{rate: 2}
	o := New(comp, testEstimator(t))
	a := testActivity("a1")

	r, err := o.Resolve(context.Background(), a, "km")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, r.Status)
	assert.Equal(t, SourceRemote, r.Source)
	assert.InDelta(t, 200.0, r.KgCO2e, 1e-9)

	again, err := o.Resolve(context.Background(), a, "km")
	require.NoError(t, err)
	assert.Equal(t, r, again)
	assert.Equal(t, int32(1), comp.calls.Load(), "terminal results are not recomputed")
}

func TestResolveFallback(t *testing.T) {
	tests := []struct {
		name string
		comp Computer
	}{
		{name: "transport error", comp: &fakeComputer{err: errors.New("connection refused")}},
		{name: "negative value", comp: &fakeComputer{rate: -1}},
		{name: "no computer", comp: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(tt.comp, testEstimator(t))
			r, err := o.Resolve(context.Background(), testActivity("a1"), "km")
			require.NoError(t, err)
			assert.Equal(t, StatusFallback, r.Status)
			assert.Equal(t, SourceEstimator, r.Source)
			assert.InDelta(t, 50.0, r.KgCO2e, 1e-9, "100 km * 0.5")
			assert.NotEmpty(t, r.Reason)
		})
	}
}

func TestFallbackIsNotRetried(t *testing.T) {
	comp := &fakeComputer{err: errors.New("boom")}
	o := New(comp, testEstimator(t))
	a := testActivity("a1")
	for range 3 {
		_, err := o.Resolve(context.Background(), a, "km")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), comp.calls.Load())
}

func TestTimeoutFallsBack(t *testing.T) {
	comp := &fakeComputer{rate: 1, block: make(chan struct{})}
	o := New(comp, testEstimator(t), WithTimeout(20*time.Millisecond))
	r, err := o.Resolve(context.Background(), testActivity("a1"), "km")
	require.NoError(t, err)
	assert.Equal(t, StatusFallback, r.Status)
	assert.Contains(t, r.Reason, context.DeadlineExceeded.Error())
}

func TestAtMostOneInFlight(t *testing.T) {
	comp := &fakeComputer{rate: 1, block: make(chan struct{})}
	o := New(comp, testEstimator(t))
	a := testActivity("a1")

	const callers = 8
	var wg sync.WaitGroup
	results := make([]Result, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := o.Resolve(context.Background(), a, "km")
			assert.NoError(t, err)
			results[i] = r
		}()
	}
	// Display while pending must not start another call either.
	require.Eventually(t, func() bool { return comp.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, StatusPending, o.Display(context.Background(), a, "km").Status)

	close(comp.block)
	wg.Wait()
	o.Wait()

	assert.Equal(t, int32(1), comp.calls.Load())
	for _, r := range results {
		assert.Equal(t, StatusResolved, r.Status)
		assert.InDelta(t, 100.0, r.KgCO2e, 1e-9)
	}
}

func TestDisplayNeverBlocks(t *testing.T) {
	comp := &fakeComputer{rate: 1, block: make(chan struct{})}
	o := New(comp, testEstimator(t))
	a := testActivity("a1")

	done := make(chan Result, 1)
	go func() { done <- o.Display(context.Background(), a, "km") }()

	select {
	case r := <-done:
		assert.Equal(t, StatusPending, r.Status)
		assert.InDelta(t, 50.0, r.KgCO2e, 1e-9, "placeholder is the local estimate")
	case <-time.After(time.Second):
		t.Fatal("Display blocked on a hung remote call")
	}

	require.Eventually(t, func() bool { return comp.calls.Load() == 1 }, time.Second, time.Millisecond)
	o.Display(context.Background(), a, "km")
	assert.Equal(t, int32(1), comp.calls.Load(), "second read does not start another call")

	close(comp.block)
	o.Wait()
	r := o.Display(context.Background(), a, "km")
	assert.Equal(t, StatusResolved, r.Status)
	assert.InDelta(t, 100.0, r.KgCO2e, 1e-9)
}

func TestInvalidateDropsEveryUnit(t *testing.T) {
	comp := &fakeComputer{rate: 1}
	o := New(comp, testEstimator(t))
	a := testActivity("a1")

	_, err := o.ResolveActivity(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, o.Results("a1"), 2)
	assert.Equal(t, int32(2), comp.calls.Load())

	// Editing the km quantity drops kWh as well.
	a.Units["km"] = activity.Quantity{Label: "Kilometres travelled", Value: 150}
	o.Invalidate(context.Background(), a.ID)
	assert.Empty(t, o.Results("a1"))
	kg, provisional := o.ActivityTotal(a)
	assert.Zero(t, kg)
	assert.True(t, provisional)

	results, err := o.ResolveActivity(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int32(4), comp.calls.Load(), "both units recomputed")
	assert.InDelta(t, 20.0, results[0].KgCO2e, 1e-9, "kWh")
	assert.InDelta(t, 150.0, results[1].KgCO2e, 1e-9, "km")
}

func TestStaleResultIsDiscarded(t *testing.T) {
	comp := &fakeComputer{rate: 1, block: make(chan struct{})}
	o := New(comp, testEstimator(t))
	a := testActivity("a1")

	var stored atomic.Int32
	unsubscribe := o.Subscribe(func(Result) { stored.Add(1) })
	defer unsubscribe()

	o.Display(context.Background(), a, "km")
	require.Eventually(t, func() bool { return comp.calls.Load() == 1 }, time.Second, time.Millisecond)

	o.Invalidate(context.Background(), a.ID)
	close(comp.block)
	o.Wait()

	assert.Empty(t, o.Results("a1"), "result for the superseded version is dropped")
	assert.Zero(t, stored.Load())

	r, err := o.Resolve(context.Background(), a, "km")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, r.Status)
	assert.Equal(t, int32(2), comp.calls.Load())
	assert.Equal(t, int32(1), stored.Load())
}

func TestChangedActivityIsNotServedFromCache(t *testing.T) {
	comp := &fakeComputer{rate: 1}
	o := New(comp, testEstimator(t))
	a := testActivity("a1")
	_, err := o.Resolve(context.Background(), a, "km")
	require.NoError(t, err)

	a.Market = "France"
	r, err := o.Resolve(context.Background(), a, "km")
	require.NoError(t, err)
	assert.Equal(t, int32(2), comp.calls.Load())
	assert.Equal(t, StatusResolved, r.Status)
}

func TestActivityTotal(t *testing.T) {
	comp := &fakeComputer{rate: 1}
	o := New(comp, testEstimator(t))
	a := testActivity("a1")

	_, err := o.Resolve(context.Background(), a, "km")
	require.NoError(t, err)
	kg, provisional := o.ActivityTotal(a)
	assert.InDelta(t, 100.0, kg, 1e-9)
	assert.True(t, provisional, "kWh still missing")

	_, err = o.Resolve(context.Background(), a, "kWh")
	require.NoError(t, err)
	kg, provisional = o.ActivityTotal(a)
	assert.InDelta(t, 120.0, kg, 1e-9)
	assert.False(t, provisional)
}

func TestResolveErrors(t *testing.T) {
	o := New(&fakeComputer{rate: 1}, testEstimator(t))
	_, err := o.Resolve(context.Background(), testActivity("a1"), "miles")
	require.ErrorIs(t, err, ErrUnknownUnit)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocked := New(&fakeComputer{rate: 1, block: make(chan struct{})}, testEstimator(t), WithTimeout(50*time.Millisecond))
	_, err = blocked.Resolve(ctx, testActivity("a1"), "km")
	require.ErrorIs(t, err, context.Canceled)
	blocked.Close()

	o.Close()
	_, err = o.Resolve(context.Background(), testActivity("a1"), "km")
	require.ErrorIs(t, err, ErrClosed)
}

type memoryResultStore struct {
	mu      sync.Mutex
	results map[EntryKey]Result
	deleted []string
}

func (m *memoryResultStore) Load(key EntryKey) (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[key]
	return r, ok
}

func (m *memoryResultStore) Save(r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.Key] = r
	return nil
}

func (m *memoryResultStore) DeleteActivity(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.results {
		if k.ActivityID == id {
			delete(m.results, k)
		}
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func TestPersistedResultsAreReused(t *testing.T) {
	store := &memoryResultStore{results: map[EntryKey]Result{}}
	a := testActivity("a1")

	first := &fakeComputer{rate: 3}
	_, err := New(first, testEstimator(t), WithResultStore(store)).ResolveActivity(context.Background(), a)
	require.NoError(t, err)
	assert.Len(t, store.results, 2)

	second := &fakeComputer{rate: 3}
	o := New(second, testEstimator(t), WithResultStore(store))
	r, err := o.Resolve(context.Background(), a, "km")
	require.NoError(t, err)
	assert.InDelta(t, 300.0, r.KgCO2e, 1e-9)
	assert.Zero(t, second.calls.Load())

	// A persisted result for different inputs is ignored.
	a.Units["km"] = activity.Quantity{Value: 1}
	r, err = New(second, testEstimator(t), WithResultStore(store)).Resolve(context.Background(), a, "km")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, r.KgCO2e, 1e-9)
	assert.Equal(t, int32(1), second.calls.Load())

	o.Invalidate(context.Background(), "a1")
	assert.Equal(t, []string{"a1"}, store.deleted)
	assert.Empty(t, store.results)
}

func TestStatusText(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusResolved, StatusFallback} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back Status
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}
	var s Status
	require.Error(t, s.UnmarshalText([]byte("done")))
	assert.Equal(t, "a1/km", EntryKey{ActivityID: "a1", Unit: "km"}.String())
	assert.False(t, StatusPending.Terminal())
}

func TestUpdatedActivityDoesNotJoinOlderCall(t *testing.T) {
	ctx := context.Background()
	comp := &fakeComputer{rate: 1, block: make(chan struct{})}
	o := New(comp, testEstimator(t))
	prev := testActivity("a1")
	next := prev.Clone()
	next.Units["km"] = activity.Quantity{Label: "Kilometres travelled", Value: 150}

	var (
		wg               sync.WaitGroup
		prevRes, nextRes Result
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		r, err := o.Resolve(ctx, prev, "km")
		assert.NoError(t, err)
		prevRes = r
	}()
	require.Eventually(t, func() bool { return comp.calls.Load() == 1 }, time.Second, time.Millisecond)
	go func() {
		defer wg.Done()
		r, err := o.Resolve(ctx, next, "km")
		assert.NoError(t, err)
		nextRes = r
	}()
	require.Eventually(t, func() bool { return comp.calls.Load() == 2 }, time.Second, time.Millisecond)
	close(comp.block)
	wg.Wait()

	assert.InDelta(t, 100.0, prevRes.Quantity, 1e-9)
	assert.InDelta(t, 150.0, nextRes.Quantity, 1e-9)
	assert.InDelta(t, 150.0, nextRes.KgCO2e, 1e-9)

	assert.Empty(t, o.CurrentResults(prev), "older inputs are not cached")
	require.Len(t, o.CurrentResults(next), 1)
	r, err := o.Resolve(ctx, next, "km")
	require.NoError(t, err)
	assert.InDelta(t, 150.0, r.KgCO2e, 1e-9)
	assert.Equal(t, int32(2), comp.calls.Load())
}

func TestSupersededBackgroundResolveSkipsCompute(t *testing.T) {
	ctx := context.Background()
	comp := &fakeComputer{rate: 1}
	o := New(comp, testEstimator(t))
	a := testActivity("a1")

	o.mu.Lock()
	gen := o.stateLocked(a.ID).gen
	o.mu.Unlock()
	o.Invalidate(ctx, a.ID)

	_, err := o.resolve(ctx, a, "km", gen)
	require.ErrorIs(t, err, errSuperseded)

	o.mu.Lock()
	st := o.stateLocked(a.ID)
	gen = st.gen
	st.latest["km"] = "newer-inputs"
	o.mu.Unlock()

	_, err = o.resolve(ctx, a, "km", gen)
	require.ErrorIs(t, err, errSuperseded)
	assert.Zero(t, comp.calls.Load())
	assert.Empty(t, o.Results(a.ID))
}

func TestForgetReleasesState(t *testing.T) {
	ctx := context.Background()
	comp := &fakeComputer{rate: 1, block: make(chan struct{})}
	o := New(comp, testEstimator(t))
	a := testActivity("a1")

	o.Display(ctx, a, "km")
	require.Eventually(t, func() bool { return comp.calls.Load() == 1 }, time.Second, time.Millisecond)

	o.Forget(ctx, a.ID)
	close(comp.block)
	o.Wait()

	o.mu.Lock()
	_, tracked := o.states[a.ID]
	o.mu.Unlock()
	assert.False(t, tracked, "a late result does not bring the state back")
	assert.Empty(t, o.Results(a.ID))

	r, err := o.Resolve(ctx, a, "km")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, r.Status)
	assert.Equal(t, int32(2), comp.calls.Load())
}
