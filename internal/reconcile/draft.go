package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/conversion"
)

// ErrEmptyDraft is returned when committing a draft without any quantity.
var ErrEmptyDraft = errors.New("draft has no quantities")

// Meta is the non-quantity context of a draft.
type Meta struct {
	Market       string
	Date         time.Time
	Scope        activity.Scope
	ActivityType string
	Campaign     string
}

// Draft is an unsaved activity: a channel, its context and a Reconciler over
// the channel's units. Selecting another channel discards the quantities.
type Draft struct {
	Meta

	table   *conversion.Table
	channel string
	rec     *Reconciler
	opts    []Option
}

// NewDraft starts a draft for channel.
func NewDraft(table *conversion.Table, channel string, opts ...Option) (*Draft, error) {
	d := &Draft{table: table, opts: opts}
	if err := d.SelectChannel(channel); err != nil {
		return nil, err
	}
	return d, nil
}

// SelectChannel switches the draft to channel and clears every quantity.
// Selecting the current channel also clears.
func (d *Draft) SelectChannel(channel string) error {
	units, err := d.table.UnitsFor(channel)
	if err != nil {
		return err
	}
	d.channel = channel
	d.rec = New(d.table, units, d.opts...)
	return nil
}

// Channel returns the selected channel.
func (d *Draft) Channel() string { return d.channel }

// Reconciler exposes the underlying reconciler.
func (d *Draft) Reconciler() *Reconciler { return d.rec }

// Edit forwards to the reconciler.
func (d *Draft) Edit(unit, raw string) (Outcome, error) { return d.rec.Edit(unit, raw) }

// Apply edits every unit in values, in unit-name order. Unknown units fail
// before any edit is made.
func (d *Draft) Apply(values map[string]string) error {
	units := make([]string, 0, len(values))
	for u := range values {
		if _, ok := d.rec.Entry(u); !ok {
			return fmt.Errorf("%w: %q is not a %s unit", ErrUnknownUnit, u, d.channel)
		}
		units = append(units, u)
	}
	sort.Strings(units)
	for _, u := range units {
		if _, err := d.rec.Edit(u, values[u]); err != nil {
			return err
		}
	}
	return nil
}

// Label returns the display label of a unit.
func (d *Draft) Label(unit string) string { return d.table.Label(d.channel, unit) }

// Build returns the activity the draft would commit to, without resetting it.
// The ID and timestamps are left empty.
func (d *Draft) Build() (activity.Activity, error) {
	values := d.rec.Values()
	if len(values) == 0 {
		return activity.Activity{}, ErrEmptyDraft
	}
	units := make(map[string]activity.Quantity, len(values))
	for u, v := range values {
		units[u] = activity.Quantity{Label: d.Label(u), Value: v}
	}
	return activity.Activity{
		Channel:      d.channel,
		Market:       d.Market,
		Date:         d.Date,
		Scope:        d.Scope,
		ActivityType: d.ActivityType,
		Campaign:     d.Campaign,
		Units:        units,
	}, nil
}

// Commit turns the draft into a new Activity and resets the quantities.
func (d *Draft) Commit(now time.Time) (activity.Activity, error) {
	a, err := d.Build()
	if err != nil {
		return activity.Activity{}, err
	}
	a.ID = activity.NewID()
	a.CreatedAt = now
	a.UpdatedAt = now
	if err = a.Validate(); err != nil {
		return activity.Activity{}, err
	}
	d.rec.Reset()
	return a, nil
}
