package cli

import (
	"context"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/logging"
)

// ApplyFilters validates every "key=value" expression, then keeps the
// activities matching all of them. Empty expressions are ignored. An invalid
// expression fails before any filtering.
func ApplyFilters(ctx context.Context, items []activity.Activity, exprs []string) ([]activity.Activity, error) {
	log := logging.FromContext(ctx)

	if len(exprs) == 0 {
		return items, nil
	}

	filters := make([]activity.Filter, 0, len(exprs))
	for _, expr := range exprs {
		if expr == "" {
			continue
		}
		f, err := activity.ParseFilter(expr)
		if err != nil {
			log.Warn().Ctx(ctx).
				Str("component", "cli").
				Str("operation", "apply_filters").
				Str("filter", expr).
				Err(err).
				Msg("invalid filter expression")
			return nil, err
		}
		filters = append(filters, f)
	}

	result := activity.FilterActivities(items, filters)
	log.Debug().Ctx(ctx).
		Str("component", "cli").
		Str("operation", "apply_filters").
		Int("filters", len(filters)).
		Int("before", len(items)).
		Int("after", len(result)).
		Msg("applied filters")

	if len(result) == 0 && len(items) > 0 {
		log.Warn().Ctx(ctx).
			Str("component", "cli").
			Str("operation", "apply_filters").
			Int("original_count", len(items)).
			Msg("no activities match filter criteria")
	}
	return result, nil
}
