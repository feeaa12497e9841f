package activity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidFilter is returned for malformed filter expressions.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter keys.
const (
	FilterChannel  = "channel"
	FilterMarket   = "market"
	FilterScope    = "scope"
	FilterCampaign = "campaign"
	FilterType     = "type"
	FilterFrom     = "from"
	FilterTo       = "to"
)

// Filter is one "key=value" expression. Text keys match case-insensitively;
// from and to bound the activity date inclusively.
type Filter struct {
	Key   string
	Value string

	scope Scope
	date  time.Time
}

// ParseFilter parses and validates a "key=value" expression.
func ParseFilter(expr string) (Filter, error) {
	key, value, ok := strings.Cut(expr, "=")
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if !ok || key == "" || value == "" {
		return Filter{}, fmt.Errorf("%w: %q must be key=value", ErrInvalidFilter, expr)
	}
	f := Filter{Key: key, Value: value}
	switch key {
	case FilterChannel, FilterMarket, FilterCampaign, FilterType:
	case FilterScope:
		n, err := strconv.Atoi(value)
		if err != nil || !Scope(n).Valid() {
			return Filter{}, fmt.Errorf("%w: scope must be 1, 2 or 3, got %q", ErrInvalidFilter, value)
		}
		f.scope = Scope(n)
	case FilterFrom, FilterTo:
		d, err := time.Parse(DateLayout, value)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %s must be %s, got %q", ErrInvalidFilter, key, DateLayout, value)
		}
		f.date = d
	default:
		return Filter{}, fmt.Errorf("%w: unknown key %q", ErrInvalidFilter, key)
	}
	return f, nil
}

// Match reports whether a satisfies the filter.
func (f Filter) Match(a Activity) bool {
	switch f.Key {
	case FilterChannel:
		return strings.EqualFold(a.Channel, f.Value)
	case FilterMarket:
		return strings.EqualFold(a.Market, f.Value)
	case FilterCampaign:
		return strings.EqualFold(a.Campaign, f.Value)
	case FilterType:
		return strings.EqualFold(a.ActivityKind(), f.Value)
	case FilterScope:
		return a.Scope == f.scope
	case FilterFrom:
		return !a.Date.IsZero() && !a.Date.Before(f.date)
	case FilterTo:
		return !a.Date.IsZero() && !a.Date.After(f.date)
	default:
		return false
	}
}

// FilterActivities returns the activities matching every filter, in order.
func FilterActivities(items []Activity, filters []Filter) []Activity {
	if len(filters) == 0 {
		return items
	}
	out := make([]Activity, 0, len(items))
	for _, a := range items {
		keep := true
		for _, f := range filters {
			if !f.Match(a) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, a)
		}
	}
	return out
}
