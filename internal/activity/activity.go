// Package activity defines committed marketing activities and their storage.
package activity

import (
	"crypto/rand"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Scope is a GHG Protocol emission scope.
type Scope int

// Supported scopes.
const (
	Scope1 Scope = 1 // direct
	Scope2 Scope = 2 // indirect energy
	Scope3 Scope = 3 // value chain
)

// Scopes lists every scope in order.
func Scopes() []Scope { return []Scope{Scope1, Scope2, Scope3} }

// Valid reports whether s is 1, 2 or 3.
func (s Scope) Valid() bool { return s >= Scope1 && s <= Scope3 }

// String returns "scope N".
func (s Scope) String() string { return fmt.Sprintf("scope %d", int(s)) }

// DateLayout is the layout used for activity dates on the CLI and wire.
const DateLayout = "2006-01-02"

// Quantity is a labelled amount in one unit.
type Quantity struct {
	Label string  `json:"label"`
	Value float64 `json:"quantity"`
}

// Activity is a committed unit of marketing work. Activities are replaced
// wholesale on update; they are never partially mutated.
type Activity struct {
	ID           string              `json:"id"`
	Channel      string              `json:"channel"`
	Market       string              `json:"market"`
	Date         time.Time           `json:"date"`
	Scope        Scope               `json:"scope"`
	ActivityType string              `json:"activityType,omitempty"`
	Campaign     string              `json:"campaign,omitempty"`
	Units        map[string]Quantity `json:"units"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// Validate checks the fields required for emission calculation.
func (a Activity) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidActivity)
	}
	if a.Channel == "" {
		return fmt.Errorf("%w: channel is empty", ErrInvalidActivity)
	}
	if !a.Scope.Valid() {
		return fmt.Errorf("%w: scope %d is not 1, 2 or 3", ErrInvalidActivity, a.Scope)
	}
	if len(a.Units) == 0 {
		return fmt.Errorf("%w: no unit quantities", ErrInvalidActivity)
	}
	for unit, q := range a.Units {
		if unit == "" {
			return fmt.Errorf("%w: empty unit name", ErrInvalidActivity)
		}
		if math.IsNaN(q.Value) || math.IsInf(q.Value, 0) || q.Value <= 0 {
			return fmt.Errorf("%w: unit %q has quantity %v", ErrInvalidActivity, unit, q.Value)
		}
	}
	return nil
}

// UnitNames returns the activity's units sorted alphabetically.
func (a Activity) UnitNames() []string {
	names := make([]string, 0, len(a.Units))
	for u := range a.Units {
		names = append(names, u)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy.
func (a Activity) Clone() Activity {
	c := a
	c.Units = make(map[string]Quantity, len(a.Units))
	for k, v := range a.Units {
		c.Units[k] = v
	}
	return c
}

// ActivityKind returns ActivityType, defaulting to the channel name.
func (a Activity) ActivityKind() string {
	if a.ActivityType != "" {
		return a.ActivityType
	}
	return a.Channel
}

//nolint:gochecknoglobals // monotonic entropy must be shared across callers
var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new monotonic ULID string.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy).String()
}
