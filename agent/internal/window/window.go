// Package window keeps the sliding set of canonical events analysed in watch
// mode. Events are deduplicated by identity key and evicted by event time, so
// every pass re-runs the full analysis over exactly the trailing span.
package window

import (
	"sort"
	"sync"
	"time"

	"github.com/obsidianstack/winsight/agent/internal/event"
)

// Window is a thread-safe event set covering the trailing span.
type Window struct {
	mu   sync.Mutex
	data map[string]event.CanonicalEvent
	span time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Window covering span.
func New(span time.Duration) *Window {
	return &Window{
		data: make(map[string]event.CanonicalEvent),
		span: span,
		now:  time.Now,
	}
}

// Add inserts events that are inside the window and not yet held. It returns
// how many were new.
func (w *Window) Add(events []event.CanonicalEvent) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := w.now().Add(-w.span)
	added := 0
	for i := range events {
		ev := events[i]
		if !ev.Time.After(cutoff) {
			continue
		}
		k := ev.Key()
		if _, ok := w.data[k]; ok {
			continue
		}
		w.data[k] = ev
		added++
	}
	return added
}

// Evict removes events whose time is at or before now minus the span.
// It returns the number of events removed.
func (w *Window) Evict(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := now.Add(-w.span)
	removed := 0
	for k, ev := range w.data {
		if !ev.Time.After(cutoff) {
			delete(w.data, k)
			removed++
		}
	}
	return removed
}

// Events returns a copy of the held events ordered by time, then key.
func (w *Window) Events() []event.CanonicalEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	keys := make([]string, 0, len(w.data))
	for k := range w.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := w.data[keys[i]].Time, w.data[keys[j]].Time
		if !a.Equal(b) {
			return a.Before(b)
		}
		return keys[i] < keys[j]
	})
	out := make([]event.CanonicalEvent, len(keys))
	for i, k := range keys {
		out[i] = w.data[k]
	}
	return out
}

// Len returns the number of events held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.data)
}

// Bounds returns the current window [now-span, now].
func (w *Window) Bounds() (start, end time.Time) {
	end = w.now().UTC()
	return end.Add(-w.span), end
}

// Span returns the window length.
func (w *Window) Span() time.Duration { return w.span }
