package report

import (
	"strconv"

	"github.com/obsidianstack/winsight/agent/internal/event"
	"github.com/obsidianstack/winsight/pkg/types"
)

const diagnosticsPerformance = "Microsoft-Windows-Diagnostics-Performance"

// Perf summarises boot (id 100), logon (200) and resume (400) durations
// reported by Diagnostics-Performance. Non-positive or unparseable durations
// are ignored.
func Perf(events []event.CanonicalEvent) types.PerfDetails {
	var boot, logon, resume []int
	for i := range events {
		ev := &events[i]
		if ev.Provider != diagnosticsPerformance {
			continue
		}
		switch ev.EventID {
		case 100:
			boot = appendMs(boot, ev.Field("BootDuration", "BootTime"))
		case 200:
			logon = appendMs(logon, ev.Field("LogonDuration"))
		case 400:
			resume = appendMs(resume, ev.Field("ResumeDuration", "ResumeTime"))
		}
	}
	return types.PerfDetails{Boot: stat(boot), Logon: stat(logon), Resume: stat(resume)}
}

func appendMs(xs []int, v string) []int {
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return xs
	}
	return append(xs, ms)
}

func stat(xs []int) *types.PerfStat {
	if len(xs) == 0 {
		return nil
	}
	var sum, max int
	for _, x := range xs {
		sum += x
		if x > max {
			max = x
		}
	}
	return &types.PerfStat{
		Count: len(xs),
		AvgMs: float64(sum) / float64(len(xs)),
		MaxMs: float64(max),
	}
}
