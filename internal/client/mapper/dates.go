package mapper

import (
	"strings"
	"time"
)

const (
	displayLayout = "02 Jan 2006"
	listLayout    = "Jan 02, 15:04"
)

// Accepted input layouts, tried in order
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDisplayDate renders a server date as "02 Jan 2006". Input that does
// not parse is returned unchanged.
func FormatDisplayDate(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	t, ok := parseDate(trimmed)
	if !ok {
		return s
	}
	return t.Format(displayLayout)
}

// FormatListTimestamp renders a server timestamp as "Jan 02, 15:04" for job
// lists, with the same fallback as FormatDisplayDate.
func FormatListTimestamp(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	t, ok := parseDate(trimmed)
	if !ok {
		return s
	}
	return t.Format(listLayout)
}
