package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilterErrors(t *testing.T) {
	for _, expr := range []string{"", "channel", "=Print", "channel=", "colour=red", "scope=4", "scope=x", "from=May 1"} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseFilter(expr)
			require.ErrorIs(t, err, ErrInvalidFilter)
		})
	}
}

func TestFilterActivities(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 4, d, 0, 0, 0, 0, time.UTC) }
	items := []Activity{
		{ID: "a", Channel: "Print", Market: "UK", Scope: Scope3, Date: day(1), Campaign: "spring"},
		{ID: "b", Channel: "Events", Market: "DE", Scope: Scope1, Date: day(10), ActivityType: "expo"},
		{ID: "c", Channel: "Print", Market: "DE", Scope: Scope3, Date: day(20)},
	}

	tests := []struct {
		name    string
		filters []string
		want    []string
	}{
		{name: "none", want: []string{"a", "b", "c"}},
		{name: "channel is case-insensitive", filters: []string{"Channel=print"}, want: []string{"a", "c"}},
		{name: "and of filters", filters: []string{"channel=Print", "market=de"}, want: []string{"c"}},
		{name: "scope", filters: []string{"scope=1"}, want: []string{"b"}},
		{name: "campaign", filters: []string{"campaign=spring"}, want: []string{"a"}},
		{name: "type defaults to channel", filters: []string{"type=print"}, want: []string{"a", "c"}},
		{name: "explicit type", filters: []string{"type=expo"}, want: []string{"b"}},
		{name: "date range inclusive", filters: []string{"from=2026-04-10", "to=2026-04-20"}, want: []string{"b", "c"}},
		{name: "no match", filters: []string{"market=FR"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters := make([]Filter, 0, len(tt.filters))
			for _, expr := range tt.filters {
				f, err := ParseFilter(expr)
				require.NoError(t, err)
				filters = append(filters, f)
			}
			got := make([]string, 0)
			for _, a := range FilterActivities(items, filters) {
				got = append(got, a.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
