package api

import "github.com/obsidianstack/winsight/pkg/types"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	OverallScore  float64 `json:"overall_score"`
	RiskGrade     string  `json:"risk_grade"`
	HostCount     int     `json:"host_count"`
	LowCount      int     `json:"low_count"`
	MediumCount   int     `json:"medium_count"`
	HighCount     int     `json:"high_count"`
	CriticalCount int     `json:"critical_count"`
	AlertCount    int     `json:"alert_count"`
}

// HostSummary is one host entry in GET /api/v1/hosts and the snapshot.
type HostSummary struct {
	Host             string `json:"host"`
	ReportID         string `json:"report_id"`
	PerformanceScore int    `json:"performance_score"`
	RiskGrade        string `json:"risk_grade"`
	Total            int    `json:"total"`
	Errors           int    `json:"errors"`
	Warnings         int    `json:"warnings"`
	Dropped          int    `json:"dropped"`
	HintCount        int    `json:"hint_count"`
	HighHints        int    `json:"high_hints"`
	TopCategory      string `json:"top_category,omitempty"`
	WindowStart      string `json:"window_start"` // RFC3339
	WindowEnd        string `json:"window_end"`   // RFC3339
	LastSeen         string `json:"last_seen"`    // RFC3339
}

// HostResponse is the payload for GET /api/v1/hosts/{id}.
type HostResponse struct {
	LastSeen string        `json:"last_seen"` // RFC3339
	Report   *types.Report `json:"report"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket broadcast.
type SnapshotResponse struct {
	Hosts       []HostSummary `json:"hosts"`
	GeneratedAt string        `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
