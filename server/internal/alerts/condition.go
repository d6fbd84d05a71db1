package alerts

import (
	"strconv"
	"strings"

	"github.com/obsidianstack/winsight/pkg/types"
)

// evalCondition evaluates a rule condition string against a host report.
//
// Supported expressions (field operator value):
//
//	performance_score >= 60
//	risk_level >= 3
//	hint_count > 10
//	high_hint_count > 0
//	error_count > 100
//	warning_count > 500
//	risk_grade == critical
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, r *types.Report) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == "risk_grade" {
		if op == "==" {
			return strings.EqualFold(r.RiskGrade, rhs), float64(types.RiskLevel(r.RiskGrade))
		}
		return false, 0
	}

	v, ok := numericField(field, r)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the report.
func numericField(field string, r *types.Report) (float64, bool) {
	switch field {
	case "performance_score":
		return float64(r.PerformanceScore), true
	case "risk_level":
		return float64(types.RiskLevel(r.RiskGrade)), true
	case "hint_count":
		return float64(len(r.Hints)), true
	case "high_hint_count":
		n := 0
		for _, h := range r.Hints {
			if h.Severity == types.SeverityHigh {
				n++
			}
		}
		return float64(n), true
	case "error_count":
		return float64(r.Errors), true
	case "warning_count":
		return float64(r.Warnings), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
