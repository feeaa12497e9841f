package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/adcarbon/internal/activity"
)

func TestParseUnitFlags(t *testing.T) {
	got, err := parseUnitFlags([]string{"km=100", " kWh = 2.5 ", "GB="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"km": "100", "kWh": "2.5", "GB": ""}, got)

	for _, bad := range []string{"km", "=5", ""} {
		_, err = parseUnitFlags([]string{bad})
		require.ErrorIs(t, err, errUnitFlag, bad)
	}
}

func TestParseDate(t *testing.T) {
	now := time.Date(2026, 5, 7, 23, 30, 0, 0, time.FixedZone("X", -3*3600))
	got, err := parseDate("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("2025-12-31", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDate("31.12.2025", now)
	require.Error(t, err)
}

func TestUnitSummary(t *testing.T) {
	a := activity.Activity{Units: map[string]activity.Quantity{
		"km":  {Value: 100},
		"kWh": {Value: 20.456},
	}}
	assert.Equal(t, "kWh=20.46 km=100", unitSummary(a))
	assert.Equal(t, "0.5", formatQuantity(0.5))
}
