package n1ql

import (
	"strings"
	"time"

	"github.com/asaidimu/go-n1ql/core/query"
)

// dateLayouts are tried in order when a string has to be read as a date.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDateString reads s using the first matching layout.
func ParseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDate converts time values, date strings and epoch milliseconds to a
// time.Time.
func ParseDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return *val, true
	case string:
		if query.IsNumericString(val) {
			f, ok := query.ToFloat64(val)
			if !ok {
				return time.Time{}, false
			}
			return time.UnixMilli(int64(f)).UTC(), true
		}
		return ParseDateString(val)
	}
	if f, ok := query.ToFloat64(v); ok {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	return time.Time{}, false
}

// formatDate renders t the way MILLIS() and stored date attributes expect it.
func formatDate(t time.Time) string {
	return t.Format(time.RFC3339)
}
