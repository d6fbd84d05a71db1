package correlate

import (
	"sort"

	"github.com/obsidianstack/winsight/pkg/types"
)

// maxEvidence bounds the evidence kept per hint.
const maxEvidence = 3

// Probability bounds.
const (
	minProbability = 5
	maxProbability = 95
)

type hintKey struct {
	category, severity, message string
}

// accumulator deduplicates matches within one correlation pass.
type accumulator struct {
	hints map[hintKey]*types.Hint
}

func newAccumulator() *accumulator {
	return &accumulator{hints: make(map[hintKey]*types.Hint)}
}

// push records one match. Evidence is appended when non-empty and there is
// room; repeated evidence text is kept.
func (a *accumulator) push(category, severity, message, evidence string) {
	k := hintKey{category, severity, message}
	h, ok := a.hints[k]
	if !ok {
		h = &types.Hint{Category: category, Severity: severity, Message: message}
		a.hints[k] = h
	}
	h.Count++
	if evidence != "" && len(h.Evidence) < maxEvidence {
		h.Evidence = append(h.Evidence, evidence)
	}
}

// finalize computes probabilities and returns hints sorted by count
// descending, then category and message ascending.
func (a *accumulator) finalize() []types.Hint {
	out := make([]types.Hint, 0, len(a.hints))
	for _, h := range a.hints {
		h.Probability = Probability(h.Severity, h.Count, len(h.Evidence) > 0)
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].Message != out[j].Message {
			return out[i].Message < out[j].Message
		}
		return out[i].Severity < out[j].Severity
	})
	return out
}

// Probability is the confidence for a hint: a severity base (high 75,
// medium 50, other 25) plus a bump for repeated matches and for evidence,
// clamped to [5, 95].
func Probability(severity string, count int, hasEvidence bool) int {
	p := 25
	switch severity {
	case types.SeverityHigh:
		p = 75
	case types.SeverityMedium:
		p = 50
	}
	switch {
	case count >= 5:
		p += 15
	case count >= 3:
		p += 10
	case count >= 2:
		p += 5
	}
	if hasEvidence {
		p += 5
	}
	if p < minProbability {
		return minProbability
	}
	if p > maxProbability {
		return maxProbability
	}
	return p
}
