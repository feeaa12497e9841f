// Package emission holds the local baseline emission estimator.
//
// The estimator is a pure function of quantity and unit. It is the value used
// when the remote compute service fails, and the placeholder shown while a
// remote calculation is pending.
package emission

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rshade/adcarbon/internal/conversion"
)

// Estimator computes a baseline kg CO2e estimate.
type Estimator interface {
	Estimate(quantity float64, unit string) float64
}

// FactorTable is an Estimator backed by kg CO2e per unit factors.
type FactorTable struct {
	factors       map[string]float64
	defaultFactor float64
}

var _ Estimator = (*FactorTable)(nil)

// NewFactorTable builds a FactorTable. Factors must be finite and non-negative.
// defaultFactor applies to units absent from factors.
func NewFactorTable(factors map[string]float64, defaultFactor float64) (*FactorTable, error) {
	if !validFactor(defaultFactor) {
		return nil, fmt.Errorf("%w: default factor %v", ErrInvalidFactor, defaultFactor)
	}
	t := &FactorTable{factors: make(map[string]float64, len(factors)), defaultFactor: defaultFactor}
	for unit, f := range factors {
		if unit == "" {
			return nil, fmt.Errorf("%w: empty unit", ErrInvalidFactor)
		}
		if !validFactor(f) {
			return nil, fmt.Errorf("%w: %q has factor %v", ErrInvalidFactor, unit, f)
		}
		t.factors[unit] = f
	}
	return t, nil
}

func validFactor(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

// Estimate returns quantity * factor(unit). Non-positive or non-finite
// quantities estimate to zero.
func (t *FactorTable) Estimate(quantity float64, unit string) float64 {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity <= 0 {
		return 0
	}
	return quantity * t.Factor(unit)
}

// Factor returns the kg CO2e per unit factor, or the default factor.
func (t *FactorTable) Factor(unit string) float64 {
	if f, ok := t.factors[unit]; ok {
		return f
	}
	return t.defaultFactor
}

// Units returns the units with an explicit factor, sorted.
func (t *FactorTable) Units() []string {
	out := make([]string, 0, len(t.factors))
	for u := range t.factors {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// File is the on-disk layout of an emission-factor table.
type File struct {
	Version       string             `yaml:"version"`
	DefaultFactor float64            `yaml:"default_factor"`
	Factors       map[string]float64 `yaml:"factors"`
}

// Parse decodes a YAML emission-factor table.
func Parse(data []byte) (*FactorTable, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing emission factor table: %w", err)
	}
	if err := conversion.CheckVersion(f.Version); err != nil {
		return nil, err
	}
	return NewFactorTable(f.Factors, f.DefaultFactor)
}

// Load returns the table at path, or the built-in default when path is empty.
func Load(path string) (*FactorTable, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("reading emission factor table %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading emission factor table %s: %w", path, err)
	}
	return t, nil
}

// Placeholder kg CO2e per unit factors used when no table is configured.
//
//nolint:gochecknoglobals // read-only seed data
var defaultFactors = map[string]float64{
	"km":           0.17,
	"kWh":          0.21,
	"render_hours": 0.32,
	"impressions":  0.0000004,
	"GB":           0.06,
	"copies":       0.09,
	"kg_paper":     0.92,
	"attendees":    12.0,
	"panel_days":   1.7,
}

// Default returns the built-in factor table.
func Default() *FactorTable {
	t, err := NewFactorTable(defaultFactors, 0)
	if err != nil {
		panic(err)
	}
	return t
}
