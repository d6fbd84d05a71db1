// Package compute derives the scored summary of one analysis pass from the
// canonical events and the finalized hints.
//
// score.go sums weighted signal counts into the performance score (0–100)
// and maps it to a risk grade: Critical ≥80, High ≥60, Medium ≥40, else Low.
// A high-severity Storage hint lifts any score of 40 or more to at least High.
//
// summary.go maps hint categories to root causes and recommendations, and
// timeline.go buckets error and warning counts by hour or by day.
//
// Everything here is pure: the same inputs always yield the same Output.
package compute
