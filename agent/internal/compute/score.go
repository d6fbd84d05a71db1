package compute

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/obsidianstack/winsight/agent/internal/event"
	"github.com/obsidianstack/winsight/pkg/types"
)

// MaxScore caps the performance score.
const MaxScore = 100

// Thresholds that map a score to a risk grade.
const (
	ThresholdCritical = 80
	ThresholdHigh     = 60
	ThresholdMedium   = 40
)

// DegradedSignal names the score contribution read from disk diagnostics.
const DegradedSignal = "Disk performance degraded"

// signal is one weighted event predicate.
type signal struct {
	name   string
	weight int
	match  func(ev *event.CanonicalEvent) bool
}

func providerIDs(provider string, ids ...int) func(ev *event.CanonicalEvent) bool {
	return func(ev *event.CanonicalEvent) bool {
		if ev.Provider != provider {
			return false
		}
		for _, id := range ids {
			if ev.EventID == id {
				return true
			}
		}
		return false
	}
}

var signals = []signal{
	{"Disk bad blocks", 30, providerIDs("Disk", 7)},
	{"Disk/controller errors", 25, providerIDs("Disk", 11, 51, 157)},
	{"NTFS corruption", 25, providerIDs("Microsoft-Windows-Ntfs", 55, 57, 140)},
	{"Storport resets/retries", 15, providerIDs("Storport", 129, 153)},
	{"Hardware machine checks", 35, providerIDs("Microsoft-Windows-WHEA-Logger", 18)},
	{"CPU frequency limited", 10, providerIDs("Microsoft-Windows-Kernel-Processor-Power", 37)},
	{"GPU driver timeout/reset", 10, func(ev *event.CanonicalEvent) bool {
		return (ev.Provider == "Display" && ev.EventID == 4101) ||
			ev.Provider == "nvlddmkm" || ev.Provider == "amdkmdag"
	}},
	{"DNS failures", 5, func(ev *event.CanonicalEvent) bool {
		return ev.Provider == "Microsoft-Windows-DNS-Client" ||
			strings.Contains(strings.ToLower(ev.Content), "dns")
	}},
	{"Service failures", 10, func(ev *event.CanonicalEvent) bool {
		return ev.Provider == "Service Control Manager" || ev.Provider == "Microsoft-Windows-Services"
	}},
}

var degradedRe = regexp.MustCompile(`(?i)PercentPerformanceDegraded\D*(\d+)`)

// Score sums weight × matching-event count over the fixed signals, plus the
// degraded percentage reported by the first disk-diagnostic event that
// carries one. The result is capped at MaxScore. Signals with no matches are
// omitted from the breakdown.
func Score(events []event.CanonicalEvent) (int, []types.ScoreSignal) {
	var (
		total     int
		breakdown []types.ScoreSignal
	)
	for _, s := range signals {
		n := 0
		for i := range events {
			if s.match(&events[i]) {
				n++
			}
		}
		if n == 0 {
			continue
		}
		points := s.weight * n
		total += points
		breakdown = append(breakdown, types.ScoreSignal{Name: s.name, Weight: s.weight, Count: n, Points: points})
	}

	if pct, ok := degradedPercent(events); ok {
		total += pct
		breakdown = append(breakdown, types.ScoreSignal{Name: DegradedSignal, Weight: pct, Count: 1, Points: pct})
	}

	if total > MaxScore {
		total = MaxScore
	}
	return total, breakdown
}

// degradedPercent reads PercentPerformanceDegraded from the first
// disk-diagnostic event whose text mentions it. Values that do not fit a
// percentage count as zero.
func degradedPercent(events []event.CanonicalEvent) (int, bool) {
	for i := range events {
		ev := &events[i]
		if !strings.HasPrefix(ev.Provider, "Microsoft-Windows-DiskDiagnostic") {
			continue
		}
		text := ev.Text()
		if !strings.Contains(text, "PercentPerformanceDegraded") {
			continue
		}
		m := degradedRe.FindStringSubmatch(text)
		if m == nil {
			return 0, false
		}
		v, err := strconv.Atoi(m[1])
		if err != nil || v > 255 {
			v = 0
		}
		return v, true
	}
	return 0, false
}

// Grade maps score to a risk grade. Any high-severity Storage hint raises a
// score of ThresholdMedium or more to at least High.
func Grade(score int, hints []types.Hint) string {
	grade := gradeFromScore(score)
	if score >= ThresholdMedium && hasHint(hints, "Storage", types.SeverityHigh) &&
		types.RiskLevel(grade) < types.RiskLevel(types.RiskHigh) {
		grade = types.RiskHigh
	}
	return grade
}

func gradeFromScore(score int) string {
	switch {
	case score >= ThresholdCritical:
		return types.RiskCritical
	case score >= ThresholdHigh:
		return types.RiskHigh
	case score >= ThresholdMedium:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// hasHint reports whether any hint has category and, when severity is
// non-empty, that severity.
func hasHint(hints []types.Hint, category, severity string) bool {
	for _, h := range hints {
		if h.Category == category && (severity == "" || h.Severity == severity) {
			return true
		}
	}
	return false
}
