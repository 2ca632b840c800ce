// Package timeparsing turns the --since and --until arguments of feedback
// searches into timestamps.
//
// Expressions are tried in order:
//  1. Compact offset (-7d, -12h, +1w)
//  2. Absolute timestamp (RFC3339, "2006-01-02 15:04", "2006-01-02")
//  3. Natural language (yesterday, last monday, 3 days ago)
package timeparsing

import (
	"fmt"
	"strings"
	"time"
)

// absoluteLayouts are tried in order. Layouts without a zone are read in
// the location of the reference time.
var absoluteLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

// ParseRelativeTime resolves expr against now.
func ParseRelativeTime(expr string, now time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}

	if t, err := ParseCompactDuration(expr, now); err == nil {
		return t, nil
	}
	if t, ok := parseAbsolute(expr, now.Location()); ok {
		return t, nil
	}
	if t, err := ParseNaturalLanguage(expr, now); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q: use -7d, 2006-01-02, RFC3339 or an expression like \"yesterday\"", expr)
}

// ParseBound is ParseRelativeTime for optional flags: an empty expression
// yields nil.
func ParseBound(expr string, now time.Time) (*time.Time, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	t, err := ParseRelativeTime(expr, now)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseAbsolute(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
