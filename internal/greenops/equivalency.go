package greenops

import (
	"fmt"
	"math"
	"strings"
)

// Kind identifies an equivalency category.
type Kind int

const (
	MilesDriven Kind = iota
	SmartphonesCharged
	HomeDays
)

func (k Kind) String() string {
	switch k {
	case MilesDriven:
		return "miles_driven"
	case SmartphonesCharged:
		return "smartphones_charged"
	case HomeDays:
		return "home_days"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Equivalency is one relatable rendering of a kg CO2e total.
type Equivalency struct {
	Kind      Kind    `json:"kind"`
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
	Label     string  `json:"label"`
}

// Equivalencies is the result of Calculate.
type Equivalencies struct {
	Kg      float64       `json:"kg"`
	Results []Equivalency `json:"results,omitempty"`
}

// Empty reports whether no equivalency was computed.
func (e Equivalencies) Empty() bool { return len(e.Results) == 0 }

// Text renders "≈ 781 miles driven, 18,248 smartphones charged".
func (e Equivalencies) Text() string {
	if e.Empty() {
		return ""
	}
	parts := make([]string, 0, len(e.Results))
	for _, r := range e.Results {
		parts = append(parts, r.Formatted+" "+r.Label)
	}
	return "≈ " + strings.Join(parts, ", ")
}

// Calculate computes EPA equivalencies for kg CO2e. Totals below
// MinEquivalencyThresholdKg produce no results.
func Calculate(kg float64) (Equivalencies, error) {
	if math.IsInf(kg, 0) || math.IsNaN(kg) {
		return Equivalencies{}, ErrCalculationOverflow
	}
	if kg < 0 {
		return Equivalencies{}, ErrNegativeValue
	}
	out := Equivalencies{Kg: kg}
	if kg < MinEquivalencyThresholdKg {
		return out, nil
	}
	for _, def := range []struct {
		kind   Kind
		factor float64
		label  string
	}{
		{MilesDriven, EPAMilesDrivenFactor, "miles driven"},
		{SmartphonesCharged, EPASmartphoneChargeFactor, "smartphones charged"},
		{HomeDays, EPAHomeDayFactor, "days of home electricity"},
	} {
		v := kg / def.factor
		out.Results = append(out.Results, Equivalency{
			Kind:      def.kind,
			Value:     v,
			Formatted: formatEquivalencyValue(v),
			Label:     def.label,
		})
	}
	return out, nil
}

func formatEquivalencyValue(v float64) string {
	if v >= LargeNumberThreshold {
		return FormatLarge(v)
	}
	return FormatNumber(int64(math.Round(v)))
}
