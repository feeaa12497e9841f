package reconcile

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Sentinel errors for reconciliation.
var (
	// ErrPassInProgress is returned by BeginPass when a pass is already running.
	ErrPassInProgress = errors.New("reconciliation pass already in progress")
	// ErrUnknownUnit is returned when an edit names a unit outside the channel.
	ErrUnknownUnit = errors.New("unit is not part of this channel")
)

// Lookuper resolves a conversion factor for an ordered unit pair.
// *conversion.Table satisfies it.
type Lookuper interface {
	Lookup(source, target string) (float64, bool)
}

// FieldWriter receives derived field updates while a pass is running. UI
// layers use it to push the new text into their input widgets; if the widget
// fires a change event synchronously, the resulting Edit is ignored.
type FieldWriter func(unit, raw string)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the reconciler's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithFieldWriter registers a FieldWriter.
func WithFieldWriter(w FieldWriter) Option {
	return func(r *Reconciler) { r.writer = w }
}

// Outcome describes what a single Edit did.
type Outcome struct {
	Unit string
	// Ignored is true when the edit arrived during a running pass.
	Ignored bool
	// Cleared is true when the edit removed Unit from the Manual set.
	Cleared bool
	// Changed lists units whose state or value changed, in channel order.
	Changed []string
	// Generation is the draft generation after the pass.
	Generation uint64
}

// Reconciler owns the unit entries of one draft. It is not safe for
// concurrent use; the owning UI loop serializes calls.
type Reconciler struct {
	table   Lookuper
	units   []string
	entries map[string]Entry

	inPass     bool
	passes     int
	generation uint64

	writer FieldWriter
	logger zerolog.Logger
}

// New returns a Reconciler over the given channel units.
func New(table Lookuper, units []string, opts ...Option) *Reconciler {
	r := &Reconciler{
		table:  table,
		units:  append([]string(nil), units...),
		logger: zerolog.Nop(),
	}
	r.entries = make(map[string]Entry, len(units))
	for _, u := range units {
		r.entries[u] = Entry{Unit: u}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BeginPass marks the start of a reconciliation pass.
func (r *Reconciler) BeginPass() error {
	if r.inPass {
		return ErrPassInProgress
	}
	r.inPass = true
	return nil
}

// EndPass marks the end of a pass and advances the generation.
func (r *Reconciler) EndPass() {
	if !r.inPass {
		return
	}
	r.inPass = false
	r.passes++
	r.generation++
}

// InPass reports whether a pass is running.
func (r *Reconciler) InPass() bool { return r.inPass }

// Passes returns the number of completed passes.
func (r *Reconciler) Passes() int { return r.passes }

// Generation returns a counter that advances once per completed pass or reset.
func (r *Reconciler) Generation() uint64 { return r.generation }

// Units returns the channel units in order.
func (r *Reconciler) Units() []string { return append([]string(nil), r.units...) }

// Edit applies the text the user typed into unit and reconciles every other
// field. Non-positive or unparsable text clears the field. Edits arriving while
// a pass is running are ignored.
func (r *Reconciler) Edit(unit, raw string) (Outcome, error) {
	if _, ok := r.entries[unit]; !ok {
		return Outcome{Unit: unit}, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
	if err := r.BeginPass(); err != nil {
		r.logger.Debug().
			Str("operation", "edit").
			Str("unit", unit).
			Msg("edit ignored during reconciliation pass")
		return Outcome{Unit: unit, Ignored: true, Generation: r.generation}, nil
	}

	before := r.snapshot()
	out := Outcome{Unit: unit}

	if v, ok := ParsePositive(raw); ok {
		r.entries[unit] = Entry{Unit: unit, Raw: raw, Value: v, State: StateManual}
	} else {
		// Leaves the Manual set; the recompute below derives it or empties it.
		out.Cleared = true
		r.entries[unit] = Entry{Unit: unit}
	}

	r.recompute()

	var writes []Entry
	for _, u := range r.units {
		now := r.entries[u]
		if now != before[u] {
			out.Changed = append(out.Changed, u)
			if u != unit || now.State != StateManual {
				writes = append(writes, now)
			}
		}
	}

	// Derived writes happen inside the pass so that echoed change events are dropped.
	if r.writer != nil {
		for _, e := range writes {
			r.writer(e.Unit, e.Raw)
		}
	}

	r.EndPass()
	out.Generation = r.generation

	r.logger.Debug().
		Str("operation", "edit").
		Str("unit", unit).
		Bool("cleared", out.Cleared).
		Strs("changed", out.Changed).
		Uint64("generation", out.Generation).
		Msg("reconciliation pass complete")
	return out, nil
}

// recompute derives every non-Manual unit from the current Manual set.
func (r *Reconciler) recompute() {
	for _, t := range r.units {
		cur := r.entries[t]
		if cur.State == StateManual {
			continue
		}
		if v, n := r.derive(t); n > 0 {
			r.entries[t] = Entry{Unit: t, Raw: FormatQuantity(v), Value: v, State: StateDerived}
			continue
		}
		// No supporting Manual source: a value is never guessed.
		r.entries[t] = Entry{Unit: t}
	}
}

// derive returns the unweighted mean of the candidates every Manual source
// yields for target, and the number of candidates.
func (r *Reconciler) derive(target string) (float64, int) {
	var sum float64
	n := 0
	for _, s := range r.units {
		src := r.entries[s]
		if s == target || src.State != StateManual {
			continue
		}
		if f, ok := r.table.Lookup(s, target); ok {
			sum += src.Value * f
			n++
			continue
		}
		if f, ok := r.table.Lookup(target, s); ok && f != 0 {
			sum += src.Value / f
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

func (r *Reconciler) snapshot() map[string]Entry {
	s := make(map[string]Entry, len(r.entries))
	for k, v := range r.entries {
		s[k] = v
	}
	return s
}

// Entry returns the entry for unit.
func (r *Reconciler) Entry(unit string) (Entry, bool) {
	e, ok := r.entries[unit]
	return e, ok
}

// Entries returns all entries in channel order.
func (r *Reconciler) Entries() []Entry {
	out := make([]Entry, 0, len(r.units))
	for _, u := range r.units {
		out = append(out, r.entries[u])
	}
	return out
}

// Manual returns the units currently in the Manual set, in channel order.
func (r *Reconciler) Manual() []string {
	var out []string
	for _, u := range r.units {
		if r.entries[u].State == StateManual {
			out = append(out, u)
		}
	}
	return out
}

// Values returns unit -> full-precision quantity for every non-empty entry.
func (r *Reconciler) Values() map[string]float64 {
	out := make(map[string]float64)
	for _, u := range r.units {
		if e := r.entries[u]; e.HasValue() {
			out[u] = e.Value
		}
	}
	return out
}

// Reset clears every field and the Manual set.
func (r *Reconciler) Reset() {
	for _, u := range r.units {
		r.entries[u] = Entry{Unit: u}
	}
	r.generation++
}
