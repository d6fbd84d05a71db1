package compute

import (
	"testing"
	"time"

	"github.com/obsidianstack/winsight/agent/internal/event"
	"github.com/obsidianstack/winsight/pkg/types"
)

// baseTime is a fixed reference point so all test timings are deterministic.
var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// at returns baseTime advanced by h hours.
func at(h int) time.Time { return baseTime.Add(time.Duration(h) * time.Hour) }

func ev(provider string, id int) event.CanonicalEvent {
	return event.CanonicalEvent{Time: baseTime, Level: event.LevelError, Provider: provider, EventID: id}
}

func repeat(e event.CanonicalEvent, n int) []event.CanonicalEvent {
	out := make([]event.CanonicalEvent, n)
	for i := range out {
		out[i] = e
	}
	return out
}

// --- Score ---

func TestScore_Weights(t *testing.T) {
	tests := []struct {
		name   string
		events []event.CanonicalEvent
		want   int
	}{
		{"empty", nil, 0},
		{"bad block", []event.CanonicalEvent{ev("Disk", 7)}, 30},
		{"controller errors", []event.CanonicalEvent{ev("Disk", 11), ev("Disk", 157)}, 50},
		{"ntfs", []event.CanonicalEvent{ev("Microsoft-Windows-Ntfs", 140)}, 25},
		{"storport", []event.CanonicalEvent{ev("Storport", 129)}, 15},
		{"machine check", []event.CanonicalEvent{ev("Microsoft-Windows-WHEA-Logger", 18)}, 35},
		{"throttle", []event.CanonicalEvent{ev("Microsoft-Windows-Kernel-Processor-Power", 37)}, 10},
		{"gpu display", []event.CanonicalEvent{ev("Display", 4101)}, 10},
		{"gpu nvidia any id", []event.CanonicalEvent{ev("nvlddmkm", 153)}, 10},
		{"dns provider", []event.CanonicalEvent{ev("Microsoft-Windows-DNS-Client", 1014)}, 5},
		{"services", []event.CanonicalEvent{ev("Service Control Manager", 7031)}, 10},
		{"unrelated", []event.CanonicalEvent{ev("Disk", 8), ev("Storport", 1)}, 0},
		{"capped", repeat(ev("Microsoft-Windows-WHEA-Logger", 18), 4), MaxScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Score(tt.events)
			if got != tt.want {
				t.Errorf("Score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScore_DNSWordingInContent(t *testing.T) {
	e := ev("Contoso", 1)
	e.Content = "DNS server not responding"
	if got, _ := Score([]event.CanonicalEvent{e}); got != 5 {
		t.Errorf("Score = %d, want 5", got)
	}
}

func TestScore_Breakdown(t *testing.T) {
	_, sigs := Score([]event.CanonicalEvent{ev("Disk", 7), ev("Disk", 7), ev("Display", 4101)})
	want := []types.ScoreSignal{
		{Name: "Disk bad blocks", Weight: 30, Count: 2, Points: 60},
		{Name: "GPU driver timeout/reset", Weight: 10, Count: 1, Points: 10},
	}
	if len(sigs) != len(want) {
		t.Fatalf("signals = %+v, want %+v", sigs, want)
	}
	for i := range want {
		if sigs[i] != want[i] {
			t.Errorf("signals[%d] = %+v, want %+v", i, sigs[i], want[i])
		}
	}
}

func TestScore_DegradedPercent(t *testing.T) {
	first := ev("Microsoft-Windows-DiskDiagnosticDataCollector", 2)
	first.Content = "PercentPerformanceDegraded: 23"
	second := ev("Microsoft-Windows-DiskDiagnostic", 1)
	second.Content = "PercentPerformanceDegraded=50"

	got, sigs := Score([]event.CanonicalEvent{first, second})
	if got != 23 {
		t.Errorf("Score = %d, want 23 (first event only)", got)
	}
	if len(sigs) != 1 || sigs[0].Name != DegradedSignal {
		t.Errorf("signals = %+v", sigs)
	}

	other := ev("Contoso", 1)
	other.Content = "PercentPerformanceDegraded 90"
	if got, _ := Score([]event.CanonicalEvent{other}); got != 0 {
		t.Errorf("non-diagnostic provider scored %d, want 0", got)
	}
}

func TestScore_MonotonicAndCapped(t *testing.T) {
	providers := []event.CanonicalEvent{
		ev("Disk", 7), ev("Disk", 51), ev("Microsoft-Windows-Ntfs", 55), ev("Storport", 153),
		ev("Microsoft-Windows-WHEA-Logger", 18), ev("Display", 4101), ev("Microsoft-Windows-Services", 1),
	}
	for _, e := range providers {
		prev := -1
		for n := 0; n <= 6; n++ {
			got, _ := Score(repeat(e, n))
			if got < prev {
				t.Errorf("%s/%d: score fell from %d to %d at n=%d", e.Provider, e.EventID, prev, got, n)
			}
			if got > MaxScore {
				t.Errorf("%s/%d: score %d exceeds cap", e.Provider, e.EventID, got)
			}
			prev = got
		}
	}
}

// --- Grade ---

func TestGrade_Thresholds(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, types.RiskLow},
		{39, types.RiskLow},
		{40, types.RiskMedium},
		{59, types.RiskMedium},
		{60, types.RiskHigh},
		{79, types.RiskHigh},
		{80, types.RiskCritical},
		{100, types.RiskCritical},
	}
	for _, tt := range tests {
		if got := Grade(tt.score, nil); got != tt.want {
			t.Errorf("Grade(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestGrade_StorageOverride(t *testing.T) {
	storageHigh := []types.Hint{{Category: "Storage", Severity: types.SeverityHigh, Count: 1}}
	storageMedium := []types.Hint{{Category: "Storage", Severity: types.SeverityMedium, Count: 1}}

	if got := Grade(45, storageHigh); got != types.RiskHigh {
		t.Errorf("Grade(45, storage-high) = %q, want High", got)
	}
	if got := Grade(85, storageHigh); got != types.RiskCritical {
		t.Errorf("Grade(85, storage-high) = %q, want Critical (no downgrade)", got)
	}
	if got := Grade(39, storageHigh); got != types.RiskLow {
		t.Errorf("Grade(39, storage-high) = %q, want Low", got)
	}
	if got := Grade(45, storageMedium); got != types.RiskMedium {
		t.Errorf("Grade(45, storage-medium) = %q, want Medium", got)
	}
}
