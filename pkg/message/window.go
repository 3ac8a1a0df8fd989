package message

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseWindow parses a date window selector relative to now.  Accepted forms:
//
//	2021-06              calendar month
//	2021-06-15           single day
//	lte=3M               newer than 3 months ago
//	gte=1y               older than 1 year ago
//	dfr=2021-01-01|dto=2021-03-31   inclusive day range, either side optional
//
// Units are d (days), w (weeks), M (months) and y (years).  An empty selector is unbounded.
// Dates are interpreted in UTC.
func ParseWindow(s string, now time.Time) (Window, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Window{}, nil
	}
	now = now.UTC()
	switch {
	case strings.HasPrefix(s, "lte="):
		t, err := relative(s[4:], now)
		if err != nil {
			return Window{}, fmt.Errorf("invalid date window %q: %w", s, err)
		}
		return Window{Since: t}, nil
	case strings.HasPrefix(s, "gte="):
		t, err := relative(s[4:], now)
		if err != nil {
			return Window{}, fmt.Errorf("invalid date window %q: %w", s, err)
		}
		return Window{Until: t}, nil
	case strings.HasPrefix(s, "dfr=") || strings.HasPrefix(s, "dto="):
		return parseRange(s)
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return Window{Since: t, Until: t.AddDate(0, 0, 1)}, nil
	}
	if t, err := time.ParseInLocation("2006-01", s, time.UTC); err == nil {
		return Window{Since: t, Until: t.AddDate(0, 1, 0)}, nil
	}
	return Window{}, fmt.Errorf("invalid date window %q", s)
}

// relative returns now moved back by an amount such as 3M.
func relative(amount string, now time.Time) (time.Time, error) {
	if len(amount) < 2 {
		return time.Time{}, fmt.Errorf("missing amount or unit")
	}
	n, err := strconv.Atoi(amount[:len(amount)-1])
	if err != nil || n < 0 {
		return time.Time{}, fmt.Errorf("invalid amount %q", amount[:len(amount)-1])
	}
	switch amount[len(amount)-1] {
	case 'd':
		return now.AddDate(0, 0, -n), nil
	case 'w':
		return now.AddDate(0, 0, -7*n), nil
	case 'M':
		return now.AddDate(0, -n, 0), nil
	case 'y':
		return now.AddDate(-n, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("unknown unit %q", amount[len(amount)-1:])
}

func parseRange(s string) (Window, error) {
	var w Window
	for _, part := range strings.Split(s, "|") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return Window{}, fmt.Errorf("invalid date window %q", s)
		}
		t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
		if err != nil {
			return Window{}, fmt.Errorf("invalid date window %q: %w", s, err)
		}
		switch key {
		case "dfr":
			w.Since = t
		case "dto":
			w.Until = t.AddDate(0, 0, 1)
		default:
			return Window{}, fmt.Errorf("invalid date window %q", s)
		}
	}
	return w, nil
}
