// Package ndjson reads and writes the one-event-per-line export format shared
// by the replay source, the report writer and export comparison.
package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/valyala/fastjson"

	"github.com/obsidianstack/winsight/agent/internal/event"
)

// maxLine bounds a single record.
const maxLine = 4 << 20

// Record is one exported event.
type Record struct {
	Time      string            `json:"time"`
	Severity  string            `json:"severity"`
	Channel   string            `json:"channel"`
	Provider  string            `json:"provider"`
	EventID   int               `json:"event_id"`
	Message   string            `json:"message"`
	EventData map[string]string `json:"event_data,omitempty"`
}

// FromEvent builds the export record for ev. Line breaks in the content are
// flattened to spaces.
func FromEvent(ev *event.CanonicalEvent) Record {
	r := Record{
		Time:     ev.Time.UTC().Format(time.RFC3339),
		Severity: ev.Level.String(),
		Channel:  ev.Channel,
		Provider: ev.Provider,
		EventID:  ev.EventID,
		Message:  strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(ev.Content),
	}
	if len(ev.Payload) > 0 {
		r.EventData = ev.Payload
	}
	return r
}

// Write encodes events to w, one JSON object per line.
func Write(w io.Writer, events []event.CanonicalEvent) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range events {
		if err := enc.Encode(FromEvent(&events[i])); err != nil {
			return fmt.Errorf("ndjson: encode: %w", err)
		}
	}
	return nil
}

// WriteFile writes events to path, replacing any existing file.
func WriteFile(path string, events []event.CanonicalEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ndjson: create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := Write(bw, events); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("ndjson: flush %s: %w", path, err)
	}
	return f.Close()
}

// Scan calls fn with each parsed line of r. Blank lines and lines that are
// not JSON objects are skipped and counted. The value passed to fn is only
// valid for the duration of the call.
func Scan(r io.Reader, fn func(v *fastjson.Value) error) (skipped int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	var p fastjson.Parser
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		v, perr := p.ParseBytes(line)
		if perr != nil || v.Type() != fastjson.TypeObject {
			skipped++
			continue
		}
		if err := fn(v); err != nil {
			return skipped, err
		}
	}
	if err := sc.Err(); err != nil {
		return skipped, fmt.Errorf("ndjson: scan: %w", err)
	}
	return skipped, nil
}

// Read decodes the records of r into canonical events. Records without a
// parseable time are skipped and counted with the malformed lines.
func Read(r io.Reader) ([]event.CanonicalEvent, int, error) {
	var events []event.CanonicalEvent
	dropped := 0
	skipped, err := Scan(r, func(v *fastjson.Value) error {
		ev, ok := ToEvent(v)
		if !ok {
			dropped++
			return nil
		}
		events = append(events, ev)
		return nil
	})
	return events, skipped + dropped, err
}

// ToEvent converts one parsed record. The content is the record message and
// event_data becomes the payload.
func ToEvent(v *fastjson.Value) (event.CanonicalEvent, bool) {
	ts, ok := event.ParseTime(string(v.GetStringBytes("time")))
	if !ok {
		return event.CanonicalEvent{}, false
	}
	ev := event.CanonicalEvent{
		Time:     ts,
		Level:    event.LevelFromName(string(v.GetStringBytes("severity"))),
		Channel:  string(v.GetStringBytes("channel")),
		Provider: string(v.GetStringBytes("provider")),
		EventID:  v.GetInt("event_id"),
		Content:  string(v.GetStringBytes("message")),
		Payload:  map[string]string{},
	}
	if obj := v.GetObject("event_data"); obj != nil {
		obj.Visit(func(k []byte, val *fastjson.Value) {
			if s := val.GetStringBytes(); len(s) > 0 {
				ev.Payload[string(k)] = string(s)
			}
		})
	}
	return ev, true
}
