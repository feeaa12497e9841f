package greenops

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToKg(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		unit    string
		wantKg  float64
		wantErr error
	}{
		{name: "grams", value: 1000, unit: "g", wantKg: 1},
		{name: "kilograms", value: 150, unit: "kg", wantKg: 150},
		{name: "empty unit is kg", value: 3, unit: "", wantKg: 3},
		{name: "tons", value: 0.15, unit: "tCO2e", wantKg: 150},
		{name: "pounds", value: 100, unit: "lb", wantKg: 45.3592},
		{name: "case insensitive", value: 100, unit: "KgCO2E", wantKg: 100},
		{name: "unknown unit", value: 1, unit: "stone", wantErr: ErrInvalidUnit},
		{name: "negative", value: -1, unit: "kg", wantErr: ErrNegativeValue},
		{name: "NaN", value: math.NaN(), unit: "kg", wantErr: ErrCalculationOverflow},
		{name: "overflow", value: math.MaxFloat64, unit: "t", wantErr: ErrCalculationOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeToKg(tt.value, tt.unit)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantKg, got, 1e-9)
		})
	}
	assert.True(t, IsRecognizedUnit("gCO2e"))
	assert.False(t, IsRecognizedUnit("oz"))
}

func TestCalculate(t *testing.T) {
	out, err := Calculate(150)
	require.NoError(t, err)
	require.Len(t, out.Results, 3)
	assert.InDelta(t, 781.25, out.Results[0].Value, 0.01)
	assert.Equal(t, "781", out.Results[0].Formatted)
	assert.InDelta(t, 18248.18, out.Results[1].Value, 0.01)
	assert.Equal(t, "18,248", out.Results[1].Formatted)
	assert.Contains(t, out.Text(), "781 miles driven")
	assert.Equal(t, "miles_driven", MilesDriven.String())

	small, err := Calculate(0.5)
	require.NoError(t, err)
	assert.True(t, small.Empty())
	assert.Empty(t, small.Text())

	_, err = Calculate(-2)
	require.ErrorIs(t, err, ErrNegativeValue)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "18,248", FormatNumber(18248))
	assert.Equal(t, "1,234.57", FormatFloat(1234.567, 2))
	assert.Equal(t, "1,235", FormatFloat(1234.567, 0))
	assert.Equal(t, "19.35 kg", FormatKg(19.345000001, 2))
	assert.Equal(t, "~1.5 billion", FormatLarge(1.5e9))
	assert.Equal(t, "~2.5 million", FormatLarge(2.5e6))
	assert.Equal(t, "999", FormatLarge(999.4))
}
