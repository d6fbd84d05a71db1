package alerts

import (
	"testing"

	"github.com/obsidianstack/winsight/pkg/types"
)

func sampleReport() *types.Report {
	return &types.Report{
		Host:             "ws-01",
		PerformanceScore: 65,
		RiskGrade:        types.RiskHigh,
		Errors:           120,
		Warnings:         40,
		Hints: []types.Hint{
			{Category: "Storage", Severity: types.SeverityHigh},
			{Category: "Network", Severity: types.SeverityMedium},
		},
	}
}

func TestEvalCondition(t *testing.T) {
	tests := []struct {
		cond      string
		wantFire  bool
		wantValue float64
	}{
		{"performance_score >= 60", true, 65},
		{"performance_score < 60", false, 65},
		{"risk_level >= 3", true, 3},
		{"risk_level == 4", false, 3},
		{"hint_count > 1", true, 2},
		{"high_hint_count > 1", false, 1},
		{"error_count > 100", true, 120},
		{"warning_count <= 40", true, 40},
		{"warning_count != 40", false, 40},
		{"risk_grade == high", true, 3},
		{"risk_grade == critical", false, 3},
		{"risk_grade > low", false, 0},
		{"unknown_field > 1", false, 0},
		{"performance_score > abc", false, 0},
		{"performance_score ~ 1", false, 65},
		{"performance_score", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			fires, v := evalCondition(tt.cond, sampleReport())
			if fires != tt.wantFire {
				t.Errorf("fires = %v, want %v", fires, tt.wantFire)
			}
			if v != tt.wantValue {
				t.Errorf("value = %v, want %v", v, tt.wantValue)
			}
		})
	}
}
