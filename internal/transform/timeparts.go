package transform

import (
	"fmt"
	"strings"
	"time"

	"ordersetl/internal/dataset"
)

// timestampLayouts are tried in order when parsing raw timestamp text.
// The bare layouts (no zone) are interpreted in the requested location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDatetime parses the named text column into time.Time cells and returns
// a new dataset. Cells that fail to parse become null rather than aborting
// the run; a single malformed timestamp must not block a whole batch. The
// resulting null count is surfaced later as the missing_created_at metric —
// this is the pipeline's only sanctioned soft-fail path.
//
// When utc is true, zone-less timestamps are interpreted as UTC and all
// parsed instants are normalized to UTC.
func ParseDatetime(d *dataset.Dataset, col string, utc bool) (*dataset.Dataset, error) {
	vals, ok := d.Column(col)
	if !ok {
		return nil, fmt.Errorf("transform: parse datetime: column %q not found", col)
	}

	loc := time.Local
	if utc {
		loc = time.UTC
	}

	parsed := make([]any, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			if t, isTime := v.(time.Time); isTime {
				parsed[i] = normalizeInstant(t, utc)
				continue
			}
			// Non-string, non-time cell: soft-fail to null like unparseable text.
			continue
		}
		if t, ok := parseTimestamp(s, loc); ok {
			parsed[i] = normalizeInstant(t, utc)
		}
	}

	return d.WithColumn(col, parsed)
}

func normalizeInstant(t time.Time, utc bool) time.Time {
	if utc {
		return t.UTC()
	}
	return t
}

func parseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if strings.Contains(layout, "Z07:00") {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AddTimeParts derives calendar-part columns "{ts}_year", "{ts}_month",
// "{ts}_day" and "{ts}_hour" (int64) from a parsed timestamp column.
// Null timestamps propagate to null parts.
func AddTimeParts(d *dataset.Dataset, tsCol string) (*dataset.Dataset, error) {
	vals, ok := d.Column(tsCol)
	if !ok {
		return nil, fmt.Errorf("transform: time parts: column %q not found", tsCol)
	}

	n := len(vals)
	years := make([]any, n)
	months := make([]any, n)
	days := make([]any, n)
	hours := make([]any, n)

	for i, v := range vals {
		t, ok := v.(time.Time)
		if !ok {
			continue
		}
		years[i] = int64(t.Year())
		months[i] = int64(t.Month())
		days[i] = int64(t.Day())
		hours[i] = int64(t.Hour())
	}

	out := d
	for _, part := range []struct {
		suffix string
		vals   []any
	}{
		{"_year", years},
		{"_month", months},
		{"_day", days},
		{"_hour", hours},
	} {
		next, err := out.WithColumn(tsCol+part.suffix, part.vals)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}
