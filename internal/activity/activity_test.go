package activity

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(id string) Activity {
	return Activity{
		ID:      id,
		Channel: "Ad Production",
		Market:  "UK",
		Date:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Scope:   Scope3,
		Units: map[string]Quantity{
			"km":  {Label: "Kilometres travelled", Value: 120},
			"kWh": {Label: "Electricity used", Value: 24},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *Activity)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Activity) {}},
		{name: "missing id", mutate: func(a *Activity) { a.ID = "" }, wantErr: true},
		{name: "missing channel", mutate: func(a *Activity) { a.Channel = "" }, wantErr: true},
		{name: "scope zero", mutate: func(a *Activity) { a.Scope = 0 }, wantErr: true},
		{name: "scope four", mutate: func(a *Activity) { a.Scope = 4 }, wantErr: true},
		{name: "no units", mutate: func(a *Activity) { a.Units = nil }, wantErr: true},
		{name: "zero quantity", mutate: func(a *Activity) { a.Units["km"] = Quantity{Value: 0} }, wantErr: true},
		{name: "NaN quantity", mutate: func(a *Activity) { a.Units["km"] = Quantity{Value: math.NaN()} }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := sample("01")
			tt.mutate(&a)
			err := a.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidActivity)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewIDIsMonotonic(t *testing.T) {
	prev := NewID()
	for range 100 {
		next := NewID()
		_, err := ulid.Parse(next)
		require.NoError(t, err)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := sample("01")
	c := a.Clone()
	c.Units["km"] = Quantity{Value: 1}
	assert.InDelta(t, 120.0, a.Units["km"].Value, 1e-9)
	assert.Equal(t, []string{"kWh", "km"}, a.UnitNames())
	assert.Equal(t, "Ad Production", a.ActivityKind())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	require.NoError(t, s.Put(ctx, sample("02")))
	require.NoError(t, s.Put(ctx, sample("01")))

	got, err := s.Get(ctx, "01")
	require.NoError(t, err)
	assert.Equal(t, "UK", got.Market)

	got.Units["km"] = Quantity{Value: 5}
	again, _ := s.Get(ctx, "01")
	assert.InDelta(t, 120.0, again.Units["km"].Value, 1e-9, "store must hand out copies")

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "01", list[0].ID)

	require.NoError(t, s.Delete(ctx, "01"))
	_, err = s.Get(ctx, "01")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, "01"), ErrNotFound)

	bad := sample("03")
	bad.Scope = 9
	require.ErrorIs(t, s.Put(ctx, bad), ErrInvalidActivity)
}
