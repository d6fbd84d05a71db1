package event

import (
	"strings"
	"time"
)

const naiveLayout = "2006-01-02 15:04:05"

// ParseTime parses an event timestamp and returns it in UTC. It tries, in
// order: RFC3339; the same text with ' ' replaced by 'T' and a trailing 'Z'
// appended when no offset is present; a naive "YYYY-MM-DD HH:MM:SS[.frac]"
// assumed to be UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}

	alt := strings.ReplaceAll(s, " ", "T")
	if !strings.HasSuffix(alt, "Z") && !strings.Contains(alt, "+") {
		alt += "Z"
	}
	if t, err := time.Parse(time.RFC3339, alt); err == nil {
		return t.UTC(), true
	}

	if t, err := time.ParseInLocation(naiveLayout, s, time.UTC); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
