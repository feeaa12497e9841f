// Package greenops normalizes carbon mass values to kilograms and turns kg
// CO2e totals into relatable equivalencies for reports.
package greenops

import (
	"math"
	"strings"
)

// unitFactor maps a carbon mass unit to its kg multiplier. Matching is
// case-insensitive and accepts an optional "CO2e" suffix.
func unitFactor(unit string) (float64, bool) {
	u := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(unit)), "co2e")
	switch u {
	case "g":
		return GramsToKg, true
	case "kg", "":
		return KgToKg, true
	case "t":
		return TonsToKg, true
	case "lb":
		return PoundsToKg, true
	default:
		return 0, false
	}
}

// NormalizeToKg converts value in unit to kilograms. An empty unit means kg,
// which is how the compute service reports totals by default.
func NormalizeToKg(value float64, unit string) (float64, error) {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, ErrCalculationOverflow
	}
	if value < 0 {
		return 0, ErrNegativeValue
	}
	factor, ok := unitFactor(unit)
	if !ok {
		return 0, ErrInvalidUnit
	}
	kg := value * factor
	if math.IsInf(kg, 0) {
		return 0, ErrCalculationOverflow
	}
	return kg, nil
}

// IsRecognizedUnit reports whether NormalizeToKg accepts unit.
func IsRecognizedUnit(unit string) bool {
	_, ok := unitFactor(unit)
	return ok
}
