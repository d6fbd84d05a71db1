package devices

import "strings"

// SmartHint reads SMART wording in text. Checks run in order and the first
// match wins: predicted failure, then media degradation, then temperature.
func SmartHint(text string) (severity, message string, ok bool) {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "smart") && containsAny(t, "pred fail", "failed", "bad"):
		return "high", "SMART indicates predicted disk failure", true
	case containsAny(t, "reallocated", "pending sector", "uncorrectable"):
		return "medium", "SMART attributes suggest media degradation", true
	case strings.Contains(t, "temperature") && containsAny(t, "high", "overheat", "critical"):
		return "medium", "SMART reports high temperature", true
	}
	return "", "", false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
