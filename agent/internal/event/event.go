package event

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Level is the Windows event severity level.
type Level int

// Known levels. Anything outside 1–4 is stored as LevelUnclassified.
const (
	LevelUnclassified Level = 0
	LevelCritical     Level = 1
	LevelError        Level = 2
	LevelWarning      Level = 3
	LevelInformation  Level = 4
)

// ParseLevel converts a numeric level, clamping unknown values to LevelUnclassified.
func ParseLevel(n int) Level {
	if n < 1 || n > 4 {
		return LevelUnclassified
	}
	return Level(n)
}

// LevelFromName maps a severity name ("Error", "warning", ...) to a Level.
func LevelFromName(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "critical":
		return LevelCritical
	case "error":
		return LevelError
	case "warning":
		return LevelWarning
	case "information", "info":
		return LevelInformation
	}
	return LevelUnclassified
}

func (l Level) String() string {
	switch l {
	case LevelCritical:
		return "Critical"
	case LevelError:
		return "Error"
	case LevelWarning:
		return "Warning"
	case LevelInformation:
		return "Information"
	}
	return "Unclassified"
}

// CanonicalEvent is one normalized log record. Treat it as immutable once
// built; WithContent returns a modified copy.
type CanonicalEvent struct {
	// Time is always UTC.
	Time     time.Time
	Level    Level
	Channel  string
	Provider string
	EventID  int

	// Content is the display text: the EventData inner markup, the whole
	// record when there is no EventData, or a decoded message.
	Content string

	// Raw is the original record text, retained for decoding and export.
	Raw string

	// Payload holds the EventData Name/value pairs. Never nil after Normalize.
	Payload map[string]string

	decoded bool
	body    string
}

// WithContent returns a copy whose Content is replaced by msg. The content of
// an event can be replaced at most once; later calls return ev unchanged.
func (ev CanonicalEvent) WithContent(msg string) CanonicalEvent {
	if ev.decoded {
		return ev
	}
	ev.body = ev.Content
	ev.Content = msg
	ev.decoded = true
	return ev
}

// Decoded reports whether Content holds a decoded message.
func (ev CanonicalEvent) Decoded() bool { return ev.decoded }

// Field returns the first non-empty payload value among keys.
func (ev CanonicalEvent) Field(keys ...string) string {
	for _, k := range keys {
		if v := ev.Payload[k]; v != "" {
			return v
		}
	}
	return ""
}

// Text is the text rules match against: the content, followed by the
// pre-decoding content when a decoded message replaced it.
func (ev CanonicalEvent) Text() string {
	if !ev.decoded || ev.body == "" {
		return ev.Content
	}
	return ev.Content + "\n" + ev.body
}

// Key identifies a record across repeated collections of the same source.
func (ev CanonicalEvent) Key() string {
	sum := sha1.Sum([]byte(ev.Raw + "\x00" + ev.Content))
	return strings.Join([]string{
		ev.Channel,
		ev.Provider,
		strconv.Itoa(ev.EventID),
		ev.Time.Format(time.RFC3339Nano),
		hex.EncodeToString(sum[:8]),
	}, "|")
}
