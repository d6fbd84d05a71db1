package event

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrNoTimestamp is returned by the strict parser when the record carries no
// parseable TimeCreated SystemTime.
var ErrNoTimestamp = errors.New("event: no parseable TimeCreated")

// Normalize parses one raw event record. channel is used when the record
// does not name its own channel. It reports false when the record has no
// parseable creation time in either the strict or the fallback pass.
func Normalize(raw, channel string) (*CanonicalEvent, bool) {
	ev, err := parseStrict(raw, channel)
	if err != nil {
		ev = parseFallback(raw, channel)
		if ev == nil {
			return nil, false
		}
	}
	ev.Raw = raw
	ev.Payload = ParsePayload(raw)
	return ev, true
}

// parseStrict walks the XML token stream once, binding System fields by the
// name of the element currently open.
func parseStrict(raw, channel string) (*CanonicalEvent, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))

	var (
		ts       time.Time
		haveTime bool
		level    int
		provider string
		eventID  int
		chName   string
		cur      string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			cur = t.Name.Local
			switch cur {
			case "TimeCreated":
				if v, ok := attr(t, "SystemTime"); ok {
					if parsed, ok := ParseTime(v); ok {
						ts, haveTime = parsed, true
					}
				}
			case "Provider":
				if v, ok := attr(t, "Name"); ok {
					provider = v
				}
			}
		case xml.EndElement:
			cur = ""
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			switch cur {
			case "Level":
				if n, err := strconv.Atoi(text); err == nil {
					level = n
				}
			case "EventID":
				if n, ok := parseEventID(text); ok {
					eventID = n
				}
			case "Channel":
				chName = text
			}
		}
	}

	if !haveTime {
		return nil, ErrNoTimestamp
	}
	return build(raw, channel, ts, level, provider, eventID, chName), nil
}

// parseFallback recovers System fields from malformed markup by literal scanning.
func parseFallback(raw, channel string) *CanonicalEvent {
	v, ok := extractAttr(raw, "TimeCreated", "SystemTime")
	if !ok {
		v, ok = extractBetween(raw, `<TimeCreated SystemTime="`, `"`)
	}
	if !ok {
		return nil
	}
	ts, ok := ParseTime(v)
	if !ok {
		return nil
	}

	level := 0
	if s, ok := extractBetween(raw, "<Level>", "</Level>"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			level = n
		}
	}
	provider, _ := extractAttr(raw, "Provider", "Name")
	eventID := 0
	if s, ok := extractBetween(raw, "<EventID", "</EventID>"); ok {
		if n, ok := parseEventID(s); ok {
			eventID = n
		}
	}
	chName, _ := extractBetween(raw, "<Channel>", "</Channel>")
	return build(raw, channel, ts, level, provider, eventID, chName)
}

func build(raw, channel string, ts time.Time, level int, provider string, eventID int, chName string) *CanonicalEvent {
	content, ok := extractBetween(raw, "<EventData>", "</EventData>")
	if !ok {
		content = raw
	}
	if chName == "" {
		chName = channel
	}
	return &CanonicalEvent{
		Time:     ts.UTC(),
		Level:    ParseLevel(level),
		Channel:  chName,
		Provider: provider,
		EventID:  eventID,
		Content:  content,
	}
}

// parseEventID keeps only the text after the last '>' so that qualifier
// attributes captured by the fallback scan are dropped.
func parseEventID(s string) (int, bool) {
	if i := strings.LastIndexByte(s, '>'); i >= 0 {
		s = s[i+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func attr(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// extractBetween returns the text between the first start marker and the
// next end marker after it.
func extractBetween(hay, start, end string) (string, bool) {
	s := strings.Index(hay, start)
	if s < 0 {
		return "", false
	}
	rest := hay[s+len(start):]
	e := strings.Index(rest, end)
	if e < 0 {
		return "", false
	}
	return rest[:e], true
}

// extractAttr returns attribute attr of the first <tag ...> element.
func extractAttr(hay, tag, attr string) (string, bool) {
	open := "<" + tag + " "
	s := strings.Index(hay, open)
	if s < 0 {
		return "", false
	}
	return extractBetween(hay[s+len(open):], attr+`="`, `"`)
}
