package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rshade/adcarbon/internal/activity"
	"github.com/rshade/adcarbon/internal/config"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
)

// tabPadding is the column gap of tabular output.
const tabPadding = 2

var errUnitFlag = errors.New("unit flags must look like unit=quantity")

// outputFormat returns the --output value, or the configured default.
func outputFormat(flag string) (string, error) {
	format := flag
	if format == "" {
		format = config.GetGlobalConfig().Output.DefaultFormat
	}
	switch format {
	case formatTable, formatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseUnitFlags turns repeated unit=quantity flags into raw field text. An
// empty quantity is kept so that it clears the field.
func parseUnitFlags(flags []string) (map[string]string, error) {
	out := make(map[string]string, len(flags))
	for _, f := range flags {
		unit, raw, ok := strings.Cut(f, "=")
		unit = strings.TrimSpace(unit)
		if !ok || unit == "" {
			return nil, fmt.Errorf("%w: %q", errUnitFlag, f)
		}
		out[unit] = strings.TrimSpace(raw)
	}
	return out, nil
}

// parseDate parses an activity date, defaulting to today in UTC.
func parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(activity.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be %s: %w", activity.DateLayout, err)
	}
	return t, nil
}

// unitSummary renders "kWh=20 km=100" in unit order.
func unitSummary(a activity.Activity) string {
	names := a.UnitNames()
	parts := make([]string, 0, len(names))
	for _, u := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", u, formatQuantity(a.Units[u].Value)))
	}
	return strings.Join(parts, " ")
}

func formatQuantity(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return s
}
