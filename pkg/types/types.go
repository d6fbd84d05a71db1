package types

import (
	"strings"
	"time"
)

// Hint severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Risk grades, lowest to highest.
const (
	RiskLow      = "Low"
	RiskMedium   = "Medium"
	RiskHigh     = "High"
	RiskCritical = "Critical"
)

// RiskLevel maps a risk grade onto 1 (Low) … 4 (Critical). Unknown grades map to 0.
// Used wherever grades must be compared or exported as a number.
func RiskLevel(grade string) int {
	switch strings.ToLower(grade) {
	case "low":
		return 1
	case "medium":
		return 2
	case "high":
		return 3
	case "critical":
		return 4
	}
	return 0
}

// Hint is one deduplicated, scored diagnostic finding.
type Hint struct {
	Category    string   `json:"category"`
	Severity    string   `json:"severity"`
	Message     string   `json:"message"`
	Evidence    []string `json:"evidence,omitempty"`
	Count       int      `json:"count"`
	Probability int      `json:"probability"`
}

// CountRow is one entry of a top-N breakdown.
type CountRow struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// TimelineBucket holds error and warning counts for one time bucket.
// Key is "2006-01-02" for daily buckets and "2006-01-02 15:00" for hourly ones.
type TimelineBucket struct {
	Key      string `json:"key"`
	Errors   int    `json:"errors"`
	Warnings int    `json:"warnings"`
}

// PerfStat summarises one Diagnostics-Performance duration series.
type PerfStat struct {
	Count int     `json:"count"`
	AvgMs float64 `json:"avg_ms"`
	MaxMs float64 `json:"max_ms"`
}

// PerfDetails groups boot, logon, and resume durations. Nil entries had no samples.
type PerfDetails struct {
	Boot   *PerfStat `json:"boot,omitempty"`
	Logon  *PerfStat `json:"logon,omitempty"`
	Resume *PerfStat `json:"resume,omitempty"`
}

// ScoreSignal is one named contribution to the performance score.
type ScoreSignal struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
	Count  int    `json:"count"`
	Points int    `json:"points"`
}

// FileTerm counts matches of one pattern across scanned log files.
type FileTerm struct {
	Term    string   `json:"term"`
	Files   int      `json:"files"`
	Matches int      `json:"matches"`
	Samples []string `json:"samples,omitempty"`
}

// EventSample is one event quoted verbatim in a report.
type EventSample struct {
	Time     time.Time `json:"time"`
	Severity string    `json:"severity"`
	Channel  string    `json:"channel"`
	Provider string    `json:"provider"`
	EventID  int       `json:"event_id"`
	Content  string    `json:"content"`
}

// Report is the read-only aggregate produced by one analysis pass.
type Report struct {
	ID          string    `json:"id"`
	Host        string    `json:"host"`
	GeneratedAt time.Time `json:"generated_at"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	Total    int `json:"total"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	// Dropped counts raw records the normalizer could not parse.
	Dropped int `json:"dropped"`

	ByProvider []CountRow `json:"by_provider"`
	ByChannel  []CountRow `json:"by_channel"`
	ByEventID  []CountRow `json:"by_event_id"`
	ByDevice   []CountRow `json:"by_device"`
	ByDomain   []CountRow `json:"by_domain"`

	MatchedTerms []CountRow  `json:"matched_terms,omitempty"`
	FileTerms    []FileTerm  `json:"file_terms,omitempty"`
	Perf         PerfDetails `json:"perf"`

	PerformanceScore int              `json:"performance_score"`
	ScoreSignals     []ScoreSignal    `json:"score_signals,omitempty"`
	RiskGrade        string           `json:"risk_grade"`
	RootCauses       []string         `json:"root_causes"`
	Recommendations  []string         `json:"recommendations"`
	Categories       []CountRow       `json:"categories"`
	Timeline         []TimelineBucket `json:"timeline"`
	Hints            []Hint           `json:"hints"`

	Samples []EventSample `json:"samples,omitempty"`
}

// Delta is a signed change in count for one key.
type Delta struct {
	Key   string `json:"key"`
	Delta int    `json:"delta"`
}

// Comparison describes how a current NDJSON export differs from a baseline.
type Comparison struct {
	DeltaErrors       int      `json:"delta_errors"`
	DeltaWarnings     int      `json:"delta_warnings"`
	NewProviders      []string `json:"new_providers"`
	RemovedProviders  []string `json:"removed_providers"`
	ProviderDeltas    []Delta  `json:"provider_deltas"`
	IncreasedEventIDs []Delta  `json:"increased_event_ids"`
	DecreasedEventIDs []Delta  `json:"decreased_event_ids"`
	NewEventIDs       []int    `json:"new_event_ids"`
}
