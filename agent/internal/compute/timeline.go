package compute

import (
	"sort"
	"time"

	"github.com/obsidianstack/winsight/agent/internal/event"
	"github.com/obsidianstack/winsight/pkg/types"
)

// Bucket key layouts. Both sort lexicographically in time order.
const (
	DailyLayout  = "2006-01-02"
	HourlyLayout = "2006-01-02 15:00"
)

// dailyThreshold is the window span at which buckets switch to one per day.
const dailyThreshold = 48 * time.Hour

// Timeline buckets error (level 2) and warning (level 3) counts by day when
// the window [start, end] spans two days or more, else by hour. Buckets are
// created only for times that have events and are sorted by key.
func Timeline(events []event.CanonicalEvent, start, end time.Time) []types.TimelineBucket {
	layout := HourlyLayout
	if end.Sub(start) >= dailyThreshold {
		layout = DailyLayout
	}

	buckets := make(map[string]*types.TimelineBucket)
	for i := range events {
		ev := &events[i]
		key := ev.Time.UTC().Format(layout)
		b, ok := buckets[key]
		if !ok {
			b = &types.TimelineBucket{Key: key}
			buckets[key] = b
		}
		switch ev.Level {
		case event.LevelError:
			b.Errors++
		case event.LevelWarning:
			b.Warnings++
		}
	}

	out := make([]types.TimelineBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
