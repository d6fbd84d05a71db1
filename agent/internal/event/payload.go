package event

import (
	"encoding/xml"
	"strings"
)

// ParsePayload returns the EventData Name/value pairs of a raw record.
// The strict walk wins; the fallback scan replaces it only when the strict
// walk yields no pairs. The result is never nil.
func ParsePayload(raw string) map[string]string {
	if m := parsePayloadStrict(raw); len(m) > 0 {
		return m
	}
	return scanPayload(raw)
}

// parsePayloadStrict binds the Name attribute of each Data element inside
// EventData to its trimmed text. Empty values are skipped and later entries
// overwrite earlier ones. A token error ends the walk, keeping what was read.
func parsePayloadStrict(raw string) map[string]string {
	out := make(map[string]string)
	dec := xml.NewDecoder(strings.NewReader(raw))

	var (
		inEventData bool
		name        string
		text        strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			// io.EOF or malformed markup: keep what was read.
			return out
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "EventData":
				inEventData = true
			case inEventData && t.Name.Local == "Data":
				name, _ = attr(t, "Name")
				text.Reset()
			}
		case xml.CharData:
			if inEventData && name != "" {
				text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "EventData":
				inEventData = false
			case "Data":
				if name != "" {
					if v := strings.TrimSpace(text.String()); v != "" {
						out[name] = v
					}
				}
				name = ""
			}
		}
	}
}

// scanPayload collects literal <Data Name="k">v</Data> pairs anywhere in the
// text. It stops at the first incomplete pair.
func scanPayload(raw string) map[string]string {
	out := make(map[string]string)
	rest := raw
	for {
		i := strings.Index(rest, "<Data ")
		if i < 0 {
			return out
		}
		rest = rest[i+len("<Data "):]

		ns := strings.Index(rest, `Name="`)
		if ns < 0 {
			return out
		}
		after := rest[ns+len(`Name="`):]
		ne := strings.IndexByte(after, '"')
		if ne < 0 {
			return out
		}
		key := after[:ne]
		gt := strings.IndexByte(after[ne:], '>')
		if gt < 0 {
			return out
		}
		val := after[ne+gt+1:]
		ve := strings.Index(val, "</Data>")
		if ve < 0 {
			return out
		}
		out[key] = val[:ve]
		rest = val[ve+len("</Data>"):]
	}
}
