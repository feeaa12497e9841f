package conversion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable(t *testing.T) {
	tests := []struct {
		name     string
		factors  []Factor
		channels []Channel
		wantErr  error
	}{
		{
			name:    "valid",
			factors: []Factor{{From: "a", To: "b", Factor: 2}},
		},
		{
			name:    "zero factor",
			factors: []Factor{{From: "a", To: "b", Factor: 0}},
			wantErr: ErrInvalidFactor,
		},
		{
			name:    "negative factor",
			factors: []Factor{{From: "a", To: "b", Factor: -1}},
			wantErr: ErrInvalidFactor,
		},
		{
			name:    "self pair",
			factors: []Factor{{From: "a", To: "a", Factor: 1}},
			wantErr: ErrInvalidFactor,
		},
		{
			name:    "empty unit",
			factors: []Factor{{From: "", To: "a", Factor: 1}},
			wantErr: ErrInvalidFactor,
		},
		{
			name:     "channel without units",
			channels: []Channel{{Name: "Print"}},
			wantErr:  ErrInvalidChannel,
		},
		{
			name:     "duplicate channel",
			channels: []Channel{{Name: "Print", Units: []string{"a"}}, {Name: "Print", Units: []string{"b"}}},
			wantErr:  ErrInvalidChannel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.factors, tt.channels)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLookupIsDirectional(t *testing.T) {
	table, err := NewTable([]Factor{{From: "km", To: "kWh", Factor: 0.2}}, nil)
	require.NoError(t, err)

	f, ok := table.Lookup("km", "kWh")
	assert.True(t, ok)
	assert.InDelta(t, 0.2, f, 1e-12)

	_, ok = table.Lookup("kWh", "km")
	assert.False(t, ok, "reverse factor must not be synthesized")

	var nilTable *Table
	_, ok = nilTable.Lookup("km", "kWh")
	assert.False(t, ok)
}

func TestLaterDuplicateWins(t *testing.T) {
	table, err := NewTable([]Factor{
		{From: "a", To: "b", Factor: 2},
		{From: "a", To: "b", Factor: 3},
	}, nil)
	require.NoError(t, err)
	f, _ := table.Lookup("a", "b")
	assert.InDelta(t, 3.0, f, 1e-12)
	assert.Equal(t, 1, table.Len())
}

func TestChannelCatalogue(t *testing.T) {
	table := Default()

	units, err := table.UnitsFor("Ad Production")
	require.NoError(t, err)
	assert.Equal(t, []string{"km", "kWh", "render_hours"}, units)

	_, err = table.UnitsFor("ad production")
	require.ErrorIs(t, err, ErrUnknownChannel, "channel matching is case-sensitive")

	assert.Equal(t, "Render hours", table.Label("Ad Production", "render_hours"))
	assert.Equal(t, "panel_days", table.Label("Out of Home", "panel_days"))
	assert.Contains(t, table.Channels(), "Print")

	units[0] = "mutated"
	again, _ := table.UnitsFor("Ad Production")
	assert.Equal(t, "km", again[0])
}

func TestParse(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		table, err := Parse([]byte(`
version: "1.2.0"
channels:
  - name: Test
    units: [a, b, c]
factors:
  - {from: a, to: c, factor: 2}
  - {from: b, to: c, factor: 3}
`))
		require.NoError(t, err)
		f, ok := table.Lookup("b", "c")
		require.True(t, ok)
		assert.InDelta(t, 3.0, f, 1e-12)
	})

	t.Run("missing version defaults to 1.0.0", func(t *testing.T) {
		_, err := Parse([]byte("factors: []\n"))
		require.NoError(t, err)
	})

	t.Run("major version 2 rejected", func(t *testing.T) {
		_, err := Parse([]byte("version: \"2.0.0\"\n"))
		require.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("garbage version rejected", func(t *testing.T) {
		_, err := Parse([]byte("version: banana\n"))
		require.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Parse([]byte("factors: [\n"))
		require.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	table, err := Load("")
	require.NoError(t, err)
	assert.Positive(t, table.Len())

	path := filepath.Join(t.TempDir(), "table.yaml")
	require.NoError(t, os.WriteFile(path, []byte("factors:\n  - {from: x, to: y, factor: 4}\n"), 0o600))
	table, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Factor{{From: "x", To: "y", Factor: 4}}, table.Factors())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
