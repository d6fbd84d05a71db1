package compute

import (
	"sort"
	"strings"

	"github.com/obsidianstack/winsight/pkg/types"
)

// Caps on the summary lists.
const (
	MaxRootCauses      = 5
	MaxRecommendations = 8
)

// FallbackCause is reported when no root-cause check matches.
const FallbackCause = "General system instability indicated by error patterns"

// check pairs a hint predicate with the strings it contributes.
type check struct {
	when func(hints []types.Hint) bool
	add  []string
}

func anyOf(categories ...string) func([]types.Hint) bool {
	return func(hints []types.Hint) bool {
		for _, c := range categories {
			if hasHint(hints, c, "") {
				return true
			}
		}
		return false
	}
}

func highOf(category string) func([]types.Hint) bool {
	return func(hints []types.Hint) bool { return hasHint(hints, category, types.SeverityHigh) }
}

var causeChecks = []check{
	{highOf("Storage"), []string{"Storage subsystem instability or failing disk"}},
	{highOf("Hardware"), []string{"Underlying hardware fault (CPU/Memory/Bus)"}},
	{anyOf("Thermal", "Cooling"), []string{"Thermal issues causing throttling and errors"}},
	{anyOf("Network"), []string{"Network/DNS misconfiguration or intermittent connectivity"}},
	{anyOf("Policy", "Permissions"), []string{"Policy/permission misconfiguration impacting services"}},
}

var recommendationChecks = []check{
	{anyOf("Storage"), []string{
		"Back up important data immediately",
		"Run disk SMART and surface tests; replace drive if SMART shows failures",
	}},
	{func(hints []types.Hint) bool {
		if anyOf("Hardware")(hints) {
			return true
		}
		for _, h := range hints {
			if strings.Contains(strings.ToLower(h.Message), "machine check") {
				return true
			}
		}
		return false
	}, []string{"Run memory diagnostics and CPU stress test; ensure adequate cooling"}},
	{anyOf("Cooling", "Thermal"), []string{"Clean dust and verify fans; consider repasting CPU/GPU if temperatures remain high"}},
	{anyOf("Network"), []string{"Check DNS settings; test with public DNS; inspect NIC drivers"}},
	{anyOf("Services"), []string{"Review failing services; check dependencies and startup type"}},
	{anyOf("Policy", "Permissions"), []string{"Review Group Policy and DCOM permissions; align with security baselines"}},
	{anyOf("GPU"), []string{"Update GPU drivers; monitor for TDRs; consider lowering overclock"}},
}

func run(checks []check, hints []types.Hint, limit int) []string {
	var out []string
	for _, c := range checks {
		if c.when(hints) {
			out = append(out, c.add...)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RootCauses returns the canned causes implied by hints, in fixed check
// order. It never returns an empty list.
func RootCauses(hints []types.Hint) []string {
	causes := run(causeChecks, hints, MaxRootCauses)
	if len(causes) == 0 {
		return []string{FallbackCause}
	}
	return causes
}

// Recommendations returns the canned actions implied by hints, in fixed
// check order.
func Recommendations(hints []types.Hint) []string {
	return run(recommendationChecks, hints, MaxRecommendations)
}

// Categories sums hint counts per category. A hint always contributes at
// least one. Rows are sorted by count descending, then category.
func Categories(hints []types.Hint) []types.CountRow {
	counts := make(map[string]int)
	for _, h := range hints {
		n := h.Count
		if n < 1 {
			n = 1
		}
		counts[h.Category] += n
	}
	rows := make([]types.CountRow, 0, len(counts))
	for k, v := range counts {
		rows = append(rows, types.CountRow{Key: k, Count: v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}
