package totals

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rshade/adcarbon/internal/activity"
)

func TestAggregate(t *testing.T) {
	rows := []Row{
		{ActivityID: "a", Channel: "Ad Production", Market: "UK", Scope: activity.Scope3, KgCO2e: 12.345},
		{ActivityID: "b", Channel: "Ad Production", Market: "France", Scope: activity.Scope1, KgCO2e: 7.0},
	}
	snap := Aggregate(rows)

	assert.InDelta(t, 19.35, snap.Total, 1e-9)
	assert.InDelta(t, 19.35, snap.ByChannel["Ad Production"], 1e-9)
	assert.InDelta(t, 12.35, snap.ByMarket["UK"], 1e-9)
	assert.InDelta(t, 7.0, snap.ByMarket["France"], 1e-9)
	assert.InDelta(t, 12.35, snap.ByScope[activity.Scope3], 1e-9)
	assert.InDelta(t, 7.0, snap.ByScope[activity.Scope1], 1e-9)
	assert.Contains(t, snap.ByScope, activity.Scope2)
	assert.Zero(t, snap.ByScope[activity.Scope2])
	assert.Equal(t, 2, snap.Activities)
	assert.False(t, snap.Provisional)
	assert.Equal(t, []string{"France", "UK"}, snap.Markets())
}

func TestAggregateRoundsOnce(t *testing.T) {
	// Rounding each row first would give 3 * 0.00 = 0.00.
	rows := []Row{
		{Channel: "Print", Scope: activity.Scope3, KgCO2e: 0.004},
		{Channel: "Print", Scope: activity.Scope3, KgCO2e: 0.004},
		{Channel: "Print", Scope: activity.Scope3, KgCO2e: 0.004},
	}
	snap := Aggregate(rows)
	assert.InDelta(t, 0.01, snap.Total, 1e-12)

	precise := AggregateWithPrecision(rows, 3)
	assert.InDelta(t, 0.012, precise.Total, 1e-12)
	assert.InDelta(t, 0.01, precise.ByChannel["Print"], 1e-12, "breakdowns stay at two decimals")
}

func TestAggregateEdgeCases(t *testing.T) {
	empty := Aggregate(nil)
	assert.Zero(t, empty.Total)
	assert.Len(t, empty.ByScope, 3)
	assert.Empty(t, empty.ByChannel)

	snap := Aggregate([]Row{
		{Channel: "ad production", Market: "UK", Scope: activity.Scope1, KgCO2e: 1},
		{Channel: "Ad Production", Market: "UK", Scope: activity.Scope1, KgCO2e: math.NaN()},
		{Channel: "Ad Production", Market: "UK", Scope: activity.Scope1, KgCO2e: -5, Provisional: true},
	})
	assert.Len(t, snap.ByChannel, 2, "keys are not normalized")
	assert.InDelta(t, 1.0, snap.Total, 1e-12)
	assert.True(t, snap.Provisional)
}

func TestAggregatorMemoizes(t *testing.T) {
	agg := NewAggregator(DefaultTotalPrecision)
	rows := []Row{{ActivityID: "a", Channel: "Print", Market: "UK", Scope: activity.Scope3, KgCO2e: 1.5}}

	first := agg.Snapshot(rows)
	second := agg.Snapshot([]Row{rows[0]})
	assert.Equal(t, first, second)
	assert.Equal(t, 1, agg.Folds())

	rows[0].KgCO2e = 2.5
	third := agg.Snapshot(rows)
	assert.InDelta(t, 2.5, third.Total, 1e-12)
	assert.Equal(t, 2, agg.Folds())
}
