package rules

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "rules.json", `{"event_patterns": ["disk"]}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Set, 4)
	go Watch(ctx, path, func(s *Set) { got <- s }) //nolint:errcheck

	time.Sleep(100 * time.Millisecond)
	doc := `{"hint_rules": [{"provider": "Contoso", "contains_any": ["jam"], "category": "Peripheral", "severity": "low", "message": "Widget jam"}]}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	// A truncating write can surface an empty or partial file first; wait for the full one.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-got:
			if len(s.Rules) == 1 && s.Rules[0].Message == "Widget jam" {
				return
			}
		case <-deadline:
			t.Fatal("no reload with the new rule within 3s")
		}
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(context.Background(), "/nonexistent/rules.json", func(*Set) {})
	if err == nil {
		t.Error("Watch on a missing file: expected error, got nil")
	}
}
