package cache

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// DefaultTTLSeconds keeps results for a week.
	DefaultTTLSeconds = 7 * 24 * 60 * 60

	// MaxTTLSeconds is the longest accepted TTL (90 days).
	MaxTTLSeconds = 90 * 24 * 60 * 60

	minutesPerHour = 60
	hoursPerDay    = 24
)

// ErrInvalidTTL is returned by ParseTTL for out-of-range values.
var ErrInvalidTTL = fmt.Errorf("TTL must be between 0 and %d seconds", MaxTTLSeconds)

// ParseTTL accepts integer seconds ("3600") or a duration ("36h"). Zero
// disables expiry.
func ParseTTL(s string) (int, error) {
	seconds, err := strconv.Atoi(s)
	if err != nil {
		d, durErr := time.ParseDuration(s)
		if durErr != nil {
			return 0, fmt.Errorf("invalid TTL format: %w", durErr)
		}
		seconds = int(d.Seconds())
	}
	if seconds < 0 || seconds > MaxTTLSeconds {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidTTL, seconds)
	}
	return seconds, nil
}

// FormatDuration renders durations compactly: "30s", "5m", "2h30m", "3d2h".
// Zero renders as "never".
func FormatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "never"
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.0fm", d.Minutes())
	case d < hoursPerDay*time.Hour:
		hours := int(d.Hours())
		if minutes := int(d.Minutes()) % minutesPerHour; minutes != 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours()) / hoursPerDay
	if hours := int(d.Hours()) % hoursPerDay; hours != 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}
