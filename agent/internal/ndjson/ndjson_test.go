package ndjson

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/obsidianstack/winsight/agent/internal/event"
)

var baseTime = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

func TestWrite_RecordShape(t *testing.T) {
	events := []event.CanonicalEvent{{
		Time:     baseTime,
		Level:    event.LevelError,
		Channel:  "System",
		Provider: "Disk",
		EventID:  7,
		Content:  "Bad block\r\ndetected",
		Payload:  map[string]string{"DeviceName": `\Device\Harddisk0\DR0`},
	}}
	var buf bytes.Buffer
	if err := Write(&buf, events); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	want := map[string]any{
		"time":       "2026-01-01T10:00:00Z",
		"severity":   "Error",
		"channel":    "System",
		"provider":   "Disk",
		"event_id":   float64(7),
		"message":    "Bad block detected",
		"event_data": map[string]any{"DeviceName": `\Device\Harddisk0\DR0`},
	}
	for k, v := range want {
		if k == "event_data" {
			m, _ := got[k].(map[string]any)
			if m["DeviceName"] != `\Device\Harddisk0\DR0` {
				t.Errorf("event_data = %v", got[k])
			}
			continue
		}
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("want exactly one line, got %q", buf.String())
	}
}

func TestRead_RoundTripsWrittenEvents(t *testing.T) {
	in := []event.CanonicalEvent{
		{Time: baseTime, Level: event.LevelWarning, Channel: "System", Provider: "Storport", EventID: 129, Content: "reset", Payload: map[string]string{}},
		{Time: baseTime.Add(time.Minute), Level: event.LevelCritical, Channel: "System", Provider: "Microsoft-Windows-Kernel-Power", EventID: 41, Content: "", Payload: map[string]string{"BugcheckCode": "0"}},
	}
	path := filepath.Join(t.TempDir(), "events.ndjson")
	if err := WriteFile(path, in); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	out, dropped, err := Read(f)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if dropped != 0 || len(out) != 2 {
		t.Fatalf("Read = %d events, %d dropped; want 2, 0", len(out), dropped)
	}
	for i := range in {
		a, b := in[i], out[i]
		if !a.Time.Equal(b.Time) || a.Level != b.Level || a.Provider != b.Provider || a.EventID != b.EventID || a.Content != b.Content {
			t.Errorf("event %d = %+v, want %+v", i, b, a)
		}
	}
	if out[1].Payload["BugcheckCode"] != "0" {
		t.Errorf("payload = %v", out[1].Payload)
	}
}

func TestRead_SkipsBadLines(t *testing.T) {
	input := strings.Join([]string{
		`{"time":"2026-01-01 10:00:00","severity":"warning","provider":"A","event_id":1}`,
		``,
		`not json`,
		`[1,2,3]`,
		`{"severity":"Error","provider":"B","event_id":2}`,
		`{"time":"2026-01-01T11:00:00Z","severity":"Error","provider":"C","event_id":3}`,
	}, "\n")

	out, dropped, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("events = %d, want 2", len(out))
	}
	if dropped != 3 {
		t.Errorf("dropped = %d, want 3", dropped)
	}
	if out[0].Level != event.LevelWarning || out[1].Provider != "C" {
		t.Errorf("events = %+v", out)
	}
}
