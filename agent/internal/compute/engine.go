package compute

import (
	"time"

	"github.com/obsidianstack/winsight/agent/internal/event"
	"github.com/obsidianstack/winsight/pkg/types"
)

// Input is one finalized analysis pass.
type Input struct {
	Events []event.CanonicalEvent
	// Hints must already be finalized by the correlation engine.
	Hints []types.Hint
	// WindowStart and WindowEnd bound the requested window. They choose the
	// timeline granularity only; events are not filtered here.
	WindowStart time.Time
	WindowEnd   time.Time
}

// Output is the scored summary of one pass.
type Output struct {
	Score           int
	Signals         []types.ScoreSignal
	RiskGrade       string
	RootCauses      []string
	Recommendations []string
	Categories      []types.CountRow
	Timeline        []types.TimelineBucket
}

// Compute scores in and derives every summary list from it.
func Compute(in Input) Output {
	score, sigs := Score(in.Events)
	return Output{
		Score:           score,
		Signals:         sigs,
		RiskGrade:       Grade(score, in.Hints),
		RootCauses:      RootCauses(in.Hints),
		Recommendations: Recommendations(in.Hints),
		Categories:      Categories(in.Hints),
		Timeline:        Timeline(in.Events, in.WindowStart, in.WindowEnd),
	}
}

// Apply copies out into the scoring fields of r.
func (out Output) Apply(r *types.Report) {
	r.PerformanceScore = out.Score
	r.ScoreSignals = out.Signals
	r.RiskGrade = out.RiskGrade
	r.RootCauses = out.RootCauses
	r.Recommendations = out.Recommendations
	r.Categories = out.Categories
	r.Timeline = out.Timeline
}
