package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/adcarbon/internal/activity"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "activities.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := activity.Activity{
		ID:           activity.NewID(),
		Channel:      "Ad Production",
		Market:       "France",
		Date:         time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
		Scope:        activity.Scope1,
		ActivityType: "shoot",
		Campaign:     "spring",
		Units:        map[string]activity.Quantity{"km": {Label: "Kilometres travelled", Value: 42.5}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Put(ctx, a))

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Channel, got.Channel)
	assert.Equal(t, a.Scope, got.Scope)
	assert.Equal(t, a.Campaign, got.Campaign)
	assert.True(t, a.Date.Equal(got.Date))
	assert.True(t, a.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, a.Units, got.Units)

	a.Units = map[string]activity.Quantity{"kWh": {Value: 3}}
	a.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, s.Put(ctx, a))

	got, err = s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"kWh"}, got.UnitNames(), "update replaces the unit set wholesale")

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Delete(ctx, a.ID))
	_, err = s.Get(ctx, a.ID)
	require.ErrorIs(t, err, activity.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, a.ID), activity.ErrNotFound)
}

func TestStoreRejectsInvalid(t *testing.T) {
	s := newStore(t)
	err := s.Put(context.Background(), activity.Activity{ID: "x"})
	require.ErrorIs(t, err, activity.ErrInvalidActivity)
}

func TestOpenEmptyDSN(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
