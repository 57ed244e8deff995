package util

import (
	"strconv"
	"time"
)

// offsetLayout is ISO 8601 with a numeric zone and no colon, e.g. 2024-01-02T00:00:00+0000.
const offsetLayout = "2006-01-02T15:04:05-0700"

var layouts = []string{time.RFC3339, time.RFC3339Nano, offsetLayout, time.DateOnly}

// ParseTime tries RFC3339, RFC3339Nano, ISO 8601 with a compact offset,
// YYYY-MM-DD and unix seconds, in that order.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}
