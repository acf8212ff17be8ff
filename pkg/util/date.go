package util

import (
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// ParseTime tries RFC3339, RFC3339Nano, plain dates, and unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// CompactDate converts a provider "YYYYMMDD" or "YYYYMMDDTHHMMSS" stamp
// to YYYY-MM-DD. Inputs already carrying a leading YYYY-MM-DD pass through.
func CompactDate(s string) string {
	if len(s) >= 8 {
		if _, err := time.Parse("20060102", s[:8]); err == nil {
			return s[:4] + "-" + s[4:6] + "-" + s[6:8]
		}
	}
	if len(s) >= 10 {
		if _, err := time.Parse(dateLayout, s[:10]); err == nil {
			return s[:10]
		}
	}
	return s
}
