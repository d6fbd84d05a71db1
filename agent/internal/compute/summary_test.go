package compute

import (
	"reflect"
	"testing"

	"github.com/obsidianstack/winsight/pkg/types"
)

func hint(category, severity string, count int) types.Hint {
	return types.Hint{Category: category, Severity: severity, Message: category + " finding", Count: count}
}

// --- RootCauses ---

func TestRootCauses(t *testing.T) {
	tests := []struct {
		name  string
		hints []types.Hint
		want  []string
	}{
		{
			name:  "fallback",
			hints: nil,
			want:  []string{FallbackCause},
		},
		{
			name:  "storage medium does not count",
			hints: []types.Hint{hint("Storage", "medium", 3)},
			want:  []string{FallbackCause},
		},
		{
			name: "fixed order regardless of input order",
			hints: []types.Hint{
				hint("Permissions", "medium", 1),
				hint("Network", "medium", 1),
				hint("Cooling", "high", 1),
				hint("Hardware", "high", 1),
				hint("Storage", "high", 1),
			},
			want: []string{
				"Storage subsystem instability or failing disk",
				"Underlying hardware fault (CPU/Memory/Bus)",
				"Thermal issues causing throttling and errors",
				"Network/DNS misconfiguration or intermittent connectivity",
				"Policy/permission misconfiguration impacting services",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RootCauses(tt.hints); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RootCauses = %v, want %v", got, tt.want)
			}
		})
	}
}

// --- Recommendations ---

func TestRecommendations_FixedOrderAndCap(t *testing.T) {
	hints := []types.Hint{
		hint("GPU", "medium", 1),
		hint("Policy", "medium", 1),
		hint("Services", "high", 1),
		hint("Network", "medium", 1),
		hint("Thermal", "medium", 1),
		hint("Hardware", "medium", 1),
		hint("Storage", "medium", 1),
	}
	got := Recommendations(hints)
	if len(got) != MaxRecommendations {
		t.Fatalf("len = %d, want %d: %v", len(got), MaxRecommendations, got)
	}
	if got[0] != "Back up important data immediately" {
		t.Errorf("first = %q", got[0])
	}
	if got[7] != "Update GPU drivers; monitor for TDRs; consider lowering overclock" {
		t.Errorf("last = %q", got[7])
	}
}

func TestRecommendations_MachineCheckWording(t *testing.T) {
	hints := []types.Hint{{Category: "General", Severity: "high", Message: "Possible Machine Check storm", Count: 1}}
	got := Recommendations(hints)
	want := []string{"Run memory diagnostics and CPU stress test; ensure adequate cooling"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Recommendations = %v, want %v", got, want)
	}
}

func TestRecommendations_None(t *testing.T) {
	if got := Recommendations([]types.Hint{hint("Application", "high", 1)}); len(got) != 0 {
		t.Errorf("Recommendations = %v, want none", got)
	}
}

// --- Categories ---

func TestCategories(t *testing.T) {
	hints := []types.Hint{
		hint("Storage", "high", 2),
		hint("Storage", "medium", 1),
		hint("Network", "medium", 3),
		hint("GPU", "medium", 0),
		hint("Cooling", "medium", 1),
	}
	want := []types.CountRow{
		{Key: "Network", Count: 3},
		{Key: "Storage", Count: 3},
		{Key: "Cooling", Count: 1},
		{Key: "GPU", Count: 1},
	}
	if got := Categories(hints); !reflect.DeepEqual(got, want) {
		t.Errorf("Categories = %+v, want %+v", got, want)
	}
}
