// Package reconcile keeps the unit fields of an activity draft consistent.
//
// The user types a quantity into any unit field of a channel. Every field the
// user typed a positive number into is Manual; every other field is Derived by
// converting the Manual values through the conversion table, or Empty when no
// conversion path exists. Editing happens in passes: a pass recomputes the
// whole draft exactly once and writes derived fields back to the UI without
// those writes being treated as new edits.
package reconcile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EditState is the provenance of a unit field's value.
type EditState int

const (
	// StateEmpty means the field has no value.
	StateEmpty EditState = iota
	// StateManual means the user typed the value.
	StateManual
	// StateDerived means the value was converted from Manual fields.
	StateDerived
)

// String returns a lower-case state name.
func (s EditState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateManual:
		return "manual"
	case StateDerived:
		return "derived"
	default:
		return fmt.Sprintf("EditState(%d)", int(s))
	}
}

// Entry is one unit field of a draft.
type Entry struct {
	Unit string
	// Raw is the text shown in the field.
	Raw string
	// Value is the full-precision quantity; zero when State is StateEmpty.
	Value float64
	State EditState
}

// HasValue reports whether the entry carries a quantity.
func (e Entry) HasValue() bool { return e.State != StateEmpty }

// displayPrecision is the number of decimals derived values are shown with.
const displayPrecision = 2

// FormatQuantity renders a quantity with two decimals.
func FormatQuantity(v float64) string {
	return strconv.FormatFloat(Round(v, displayPrecision), 'f', displayPrecision, 64)
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// ParsePositive parses raw as a finite number greater than zero.
// Anything else (empty, non-numeric, zero, negative, NaN, Inf) reports false.
func ParsePositive(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}
