// Package engine resolves CO2e emissions for activity quantities.
//
// The Orchestrator owns one EmissionResult per (activity, unit) pair. It calls
// the remote compute service at most once concurrently per pair, falls back to
// the local estimator on any failure, and discards results for activities that
// changed while a call was in flight.
package engine

import (
	"fmt"
	"time"

	"github.com/rshade/adcarbon/internal/activity"
)

// EntryKey identifies one emission result.
type EntryKey struct {
	ActivityID string `json:"activity_id"`
	Unit       string `json:"unit"`
}

// String renders the key for flight grouping and persistence names.
func (k EntryKey) String() string {
	return k.ActivityID + "/" + k.Unit
}

// Status is the lifecycle state of an emission result.
type Status int

const (
	// StatusPending means no terminal value exists yet. The value shown is the
	// local estimate.
	StatusPending Status = iota
	// StatusResolved means the remote service answered.
	StatusResolved
	// StatusFallback means the remote call failed and the local estimate is
	// authoritative.
	StatusFallback
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusFallback:
		return "fallback"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Terminal reports whether the status is cached until invalidation.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusFallback
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pending":
		*s = StatusPending
	case "resolved":
		*s = StatusResolved
	case "fallback":
		*s = StatusFallback
	default:
		return fmt.Errorf("unknown status %q", string(b))
	}
	return nil
}

// Source names where a result's value came from.
type Source string

const (
	SourceRemote    Source = "remote"
	SourceEstimator Source = "estimator"
)

// Result is the emission for one (activity, unit) pair.
type Result struct {
	Key       EntryKey  `json:"key"`
	Quantity  float64   `json:"quantity"`
	KgCO2e    float64   `json:"kg_co2e"`
	Status    Status    `json:"status"`
	Source    Source    `json:"source"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	// Fingerprint identifies the activity inputs the value was computed from.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Descriptor is the request sent to the compute service for one pair.
type Descriptor struct {
	ActivityType string  `json:"activityType"`
	Channel      string  `json:"channel"`
	Market       string  `json:"market"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	Scope        int     `json:"scope"`
	Date         string  `json:"date"`
	Campaign     string  `json:"campaign,omitempty"`
}

// NewDescriptor builds the compute request for unit of a.
func NewDescriptor(a activity.Activity, unit string) Descriptor {
	d := Descriptor{
		ActivityType: a.ActivityKind(),
		Channel:      a.Channel,
		Market:       a.Market,
		Quantity:     a.Units[unit].Value,
		Unit:         unit,
		Scope:        int(a.Scope),
		Campaign:     a.Campaign,
	}
	if !a.Date.IsZero() {
		d.Date = a.Date.Format(activity.DateLayout)
	}
	return d
}
