package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/obsidianstack/winsight/agent/internal/event"
	"github.com/obsidianstack/winsight/pkg/types"
)

// Sample sort keys.
const (
	SortTime     = "time"
	SortSeverity = "severity"
	SortProvider = "provider"
	SortChannel  = "channel"
	SortEventID  = "event_id"
)

// Sample sort orders.
const (
	OrderDesc = "desc"
	OrderAsc  = "asc"
)

// maxRepeatedAppErrors caps samples from the Application Error provider that
// share the same content.
const maxRepeatedAppErrors = 3

const appErrorProvider = "Application Error"

// SampleOptions selects the events quoted in Report.Samples.
type SampleOptions struct {
	// Count caps the sample list. Zero falls back to the builder's top N;
	// a negative count disables samples.
	Count int
	// SortBy is one of time | severity | provider | channel | event_id.
	// Empty means time.
	SortBy string
	// Order is desc (default) or asc. Descending severity puts critical first.
	Order string
	// PerChannel and PerProvider cap samples from one channel or provider.
	// Zero means unlimited.
	PerChannel  int
	PerProvider int
}

// samples picks up to opts.Count events in the requested order. Per-channel
// and per-provider limits are applied in that order before the count, and
// repeated Application Error events are kept at most maxRepeatedAppErrors times.
func samples(events []event.CanonicalEvent, opts SampleOptions) []types.EventSample {
	if opts.Count <= 0 || len(events) == 0 {
		return nil
	}
	ordered := make([]*event.CanonicalEvent, len(events))
	for i := range events {
		ordered[i] = &events[i]
	}
	less := sampleLess(opts.SortBy)
	desc := opts.Order != OrderAsc
	sort.SliceStable(ordered, func(i, j int) bool {
		if desc {
			return less(ordered[j], ordered[i])
		}
		return less(ordered[i], ordered[j])
	})

	perChannel := map[string]int{}
	perProvider := map[string]int{}
	repeats := map[string]int{}
	out := make([]types.EventSample, 0, min(opts.Count, len(ordered)))
	for _, ev := range ordered {
		if len(out) == opts.Count {
			break
		}
		if opts.PerChannel > 0 && perChannel[ev.Channel] >= opts.PerChannel {
			continue
		}
		if opts.PerProvider > 0 && perProvider[ev.Provider] >= opts.PerProvider {
			continue
		}
		if ev.Provider == appErrorProvider {
			k := sampleCause(ev)
			if repeats[k] >= maxRepeatedAppErrors {
				continue
			}
			repeats[k]++
		}
		perChannel[ev.Channel]++
		perProvider[ev.Provider]++
		out = append(out, types.EventSample{
			Time:     ev.Time.UTC(),
			Severity: ev.Level.String(),
			Channel:  ev.Channel,
			Provider: ev.Provider,
			EventID:  ev.EventID,
			Content:  ev.Content,
		})
	}
	return out
}

// sampleLess returns the ascending comparison for sortBy.
func sampleLess(sortBy string) func(a, b *event.CanonicalEvent) bool {
	switch sortBy {
	case SortSeverity:
		// Ascending runs from least to most severe.
		return func(a, b *event.CanonicalEvent) bool { return severityRank(a.Level) < severityRank(b.Level) }
	case SortProvider:
		return func(a, b *event.CanonicalEvent) bool { return a.Provider < b.Provider }
	case SortChannel:
		return func(a, b *event.CanonicalEvent) bool { return a.Channel < b.Channel }
	case SortEventID:
		return func(a, b *event.CanonicalEvent) bool { return a.EventID < b.EventID }
	}
	return func(a, b *event.CanonicalEvent) bool { return a.Time.Before(b.Time) }
}

func severityRank(l event.Level) int {
	switch l {
	case event.LevelCritical:
		return 4
	case event.LevelError:
		return 3
	case event.LevelWarning:
		return 2
	case event.LevelInformation:
		return 1
	}
	return 0
}

// sampleCause identifies repeats of one application failure. Markup-only
// content falls back to provider and event id.
func sampleCause(ev *event.CanonicalEvent) string {
	c := strings.TrimSpace(ev.Content)
	if strings.HasPrefix(c, "<") || strings.Contains(c, "<EventData>") {
		return fmt.Sprintf("%s %d", ev.Provider, ev.EventID)
	}
	return strings.ReplaceAll(c, "\n", " ")
}
