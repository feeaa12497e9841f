// Package conversion holds the read-only unit conversion table.
//
// A Table maps an ordered (source, target) unit pair to a positive factor such
// that quantity_in_target = quantity_in_source * factor. Tables are not assumed
// to be symmetric or complete; callers decide what to do when a pair is absent.
package conversion

import (
	"fmt"
	"math"
	"sort"
)

// Key identifies a conversion factor by ordered unit pair.
type Key struct {
	Source string
	Target string
}

// Factor is a single conversion rule.
type Factor struct {
	From   string  `yaml:"from" json:"from"`
	To     string  `yaml:"to" json:"to"`
	Factor float64 `yaml:"factor" json:"factor"`
}

// Channel is a marketing channel and the units its activities are measured in.
type Channel struct {
	Name  string   `yaml:"name" json:"name"`
	Units []string `yaml:"units" json:"units"`
	// Labels optionally maps unit identifiers to display labels.
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Table is an immutable conversion table plus the channel catalogue.
type Table struct {
	factors  map[Key]float64
	channels []Channel
	byName   map[string]int
}

// NewTable builds a Table. Every factor must be positive and finite, with
// distinct non-empty units. When the same pair appears twice the later entry wins.
func NewTable(factors []Factor, channels []Channel) (*Table, error) {
	t := &Table{
		factors: make(map[Key]float64, len(factors)),
		byName:  make(map[string]int, len(channels)),
	}
	for _, f := range factors {
		if err := validateFactor(f); err != nil {
			return nil, err
		}
		t.factors[Key{Source: f.From, Target: f.To}] = f.Factor
	}
	for _, c := range channels {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: channel name is empty", ErrInvalidChannel)
		}
		if len(c.Units) == 0 {
			return nil, fmt.Errorf("%w: channel %q has no units", ErrInvalidChannel, c.Name)
		}
		if _, dup := t.byName[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate channel %q", ErrInvalidChannel, c.Name)
		}
		units := append([]string(nil), c.Units...)
		var labels map[string]string
		if len(c.Labels) > 0 {
			labels = make(map[string]string, len(c.Labels))
			for k, v := range c.Labels {
				labels[k] = v
			}
		}
		t.byName[c.Name] = len(t.channels)
		t.channels = append(t.channels, Channel{Name: c.Name, Units: units, Labels: labels})
	}
	return t, nil
}

func validateFactor(f Factor) error {
	switch {
	case f.From == "" || f.To == "":
		return fmt.Errorf("%w: empty unit in %q -> %q", ErrInvalidFactor, f.From, f.To)
	case f.From == f.To:
		return fmt.Errorf("%w: self conversion for %q", ErrInvalidFactor, f.From)
	case math.IsNaN(f.Factor) || math.IsInf(f.Factor, 0) || f.Factor <= 0:
		return fmt.Errorf("%w: %q -> %q has factor %v", ErrInvalidFactor, f.From, f.To, f.Factor)
	}
	return nil
}

// Lookup returns the factor for the ordered pair (source, target).
func (t *Table) Lookup(source, target string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	f, ok := t.factors[Key{Source: source, Target: target}]
	return f, ok
}

// Len returns the number of factors in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.factors)
}

// Channels returns the channel names in declaration order.
func (t *Table) Channels() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.channels))
	for i, c := range t.channels {
		names[i] = c.Name
	}
	return names
}

// Channel returns the channel definition for name. Matching is exact.
func (t *Table) Channel(name string) (Channel, bool) {
	if t == nil {
		return Channel{}, false
	}
	i, ok := t.byName[name]
	if !ok {
		return Channel{}, false
	}
	c := t.channels[i]
	c.Units = append([]string(nil), c.Units...)
	return c, true
}

// UnitsFor returns the unit list of a channel, or ErrUnknownChannel.
func (t *Table) UnitsFor(channel string) ([]string, error) {
	c, ok := t.Channel(channel)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	return c.Units, nil
}

// Label returns the display label for a unit within a channel, defaulting to the unit itself.
func (t *Table) Label(channel, unit string) string {
	c, ok := t.Channel(channel)
	if ok {
		if l, found := c.Labels[unit]; found && l != "" {
			return l
		}
	}
	return unit
}

// Factors returns every factor sorted by source then target.
func (t *Table) Factors() []Factor {
	if t == nil {
		return nil
	}
	out := make([]Factor, 0, len(t.factors))
	for k, v := range t.factors {
		out = append(out, Factor{From: k.Source, To: k.Target, Factor: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}
