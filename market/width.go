package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseWidth accepts a candle width either as a timeframe label ("M5",
// "H1", "D1") or as a Go duration ("5m", "90s"). Widths must be whole
// seconds.
func ParseWidth(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty candle width")
	}

	var d time.Duration
	if unit, n, ok := splitLabel(s); ok {
		d = time.Duration(n) * unit
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, fmt.Errorf("invalid candle width %q", s)
		}
	}
	if d < time.Second || d%time.Second != 0 {
		return 0, fmt.Errorf("candle width must be a whole number of seconds, got %s", d)
	}
	return d, nil
}

func splitLabel(s string) (time.Duration, int, bool) {
	var unit time.Duration
	switch s[0] {
	case 'M':
		unit = time.Minute
	case 'H':
		unit = time.Hour
	case 'D':
		unit = 24 * time.Hour
	default:
		return 0, 0, false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n <= 0 {
		return 0, 0, false
	}
	return unit, n, true
}

// WidthLabel is the inverse of ParseWidth for widths that have a label.
// Anything else is rendered as a duration.
func WidthLabel(d time.Duration) string {
	switch {
	case d <= 0:
		return d.String()
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("D%d", d/(24*time.Hour))
	case d < 24*time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("H%d", d/time.Hour)
	case d < time.Hour && d%time.Minute == 0:
		return fmt.Sprintf("M%d", d/time.Minute)
	default:
		return d.String()
	}
}
