package source

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/obsidianstack/winsight/agent/internal/config"
	"github.com/obsidianstack/winsight/agent/internal/event"
)

func TestLogFile_Collect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "setupapi.dev.log", "ok\nDevice install failed: timeout\nall good\nTIMEOUT again\n")
	writeFile(t, dir, "CBS.log", "servicing timeout\n")
	writeFile(t, dir, "image.bin", "timeout")

	s := newLogFileSource(config.Source{ID: "logs", Path: dir, Glob: "*.log"}, []string{"timeout", "install failed", "(unclosed"})
	b := collect(t, s)

	if len(b.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(b.Records))
	}
	for _, r := range b.Records {
		ev := r.Event
		if ev == nil || ev.Provider != LogFileProvider || ev.Level != event.LevelWarning {
			t.Errorf("record = %+v", r)
		}
	}
	if ch := b.Records[0].Channel; ch != "CBS" {
		t.Errorf("first channel = %q, want CBS", ch)
	}

	if len(b.FileTerms) != 2 {
		t.Fatalf("FileTerms = %+v, want 2 (invalid pattern skipped)", b.FileTerms)
	}
	timeout := b.FileTerms[0]
	if timeout.Term != "timeout" || timeout.Files != 2 || timeout.Matches != 3 {
		t.Errorf("timeout term = %+v", timeout)
	}
	if len(timeout.Samples) != 3 || !strings.Contains(timeout.Samples[0], "CBS.log:1: servicing timeout") {
		t.Errorf("samples = %q", timeout.Samples)
	}
	if install := b.FileTerms[1]; install.Term != "install failed" || install.Files != 1 || install.Matches != 1 {
		t.Errorf("install term = %+v", install)
	}
}

func TestLogFile_NoPatterns(t *testing.T) {
	s := newLogFileSource(config.Source{ID: "logs", Path: t.TempDir()}, nil)
	b := collect(t, s)
	if len(b.Records) != 0 || len(b.FileTerms) != 0 {
		t.Errorf("batch = %+v, want empty", b)
	}
}

func TestLogFile_SameLineTwiceGetsDistinctKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.log", "error X\nerror X\n")
	b := collect(t, newLogFileSource(config.Source{ID: "logs", Path: dir}, []string{"error"}))
	if len(b.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(b.Records))
	}
	if b.Records[0].Event.Key() == b.Records[1].Event.Key() {
		t.Error("identical lines share a window key")
	}
}

func TestLogFile_LineKeepsIdentityWhileFileGrows(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log", "request timeout\n")
	s := newLogFileSource(config.Source{ID: "logs", Path: dir}, []string{"timeout"})

	first := collect(t, s)
	if len(first.Records) != 1 {
		t.Fatalf("first records = %d, want 1", len(first.Records))
	}

	if err := os.WriteFile(path, []byte("request timeout\nall good\nsecond timeout\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	second := collect(t, s)
	if len(second.Records) != 2 {
		t.Fatalf("second records = %d, want 2", len(second.Records))
	}
	if got, want := second.Records[0].Event.Key(), first.Records[0].Event.Key(); got != want {
		t.Errorf("line 1 key = %q, want %q (unchanged)", got, want)
	}
	if !second.Records[1].Event.Time.After(first.Records[0].Event.Time) {
		t.Errorf("new line time = %v, want the later modification time", second.Records[1].Event.Time)
	}
}
