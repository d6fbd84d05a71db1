package correlate

import (
	"testing"
	"time"

	"github.com/obsidianstack/winsight/agent/internal/decode"
	"github.com/obsidianstack/winsight/agent/internal/devices"
	"github.com/obsidianstack/winsight/agent/internal/event"
	"github.com/obsidianstack/winsight/agent/internal/rules"
	"github.com/obsidianstack/winsight/pkg/types"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func ev(provider string, id int, content string, payload map[string]string) event.CanonicalEvent {
	if payload == nil {
		payload = map[string]string{}
	}
	return event.CanonicalEvent{
		Time:     baseTime,
		Level:    event.LevelError,
		Channel:  "System",
		Provider: provider,
		EventID:  id,
		Content:  content,
		Payload:  payload,
	}
}

func find(hints []types.Hint, category, severity, message string) (types.Hint, bool) {
	for _, h := range hints {
		if h.Category == category && h.Severity == severity && h.Message == message {
			return h, true
		}
	}
	return types.Hint{}, false
}

// --- storage evidence ---

func TestCorrelate_DiskBadBlockCarriesDevice(t *testing.T) {
	raw := `<Event><System><Provider Name="Disk"/><EventID>7</EventID><Level>2</Level>` +
		`<TimeCreated SystemTime="2026-01-01T00:00:00Z"/></System>` +
		`<EventData><Data Name="DeviceName">\\.\PHYSICALDRIVE0</Data></EventData></Event>`
	norm, ok := event.Normalize(raw, "System")
	if !ok {
		t.Fatal("Normalize failed")
	}
	decoded := decode.Enrich(*norm)

	hints := New().Correlate([]event.CanonicalEvent{decoded})
	h, ok := find(hints, CatStorage, "high", "Bad block detected on disk")
	if !ok {
		t.Fatalf("no Storage/high bad block hint in %+v", hints)
	}
	if len(h.Evidence) != 1 || h.Evidence[0] != `\\.\PHYSICALDRIVE0` {
		t.Errorf("Evidence = %v, want [\\\\.\\PHYSICALDRIVE0]", h.Evidence)
	}
}

// --- dedup and evidence bounds ---

func TestCorrelate_DedupCountsEveryMatch(t *testing.T) {
	var events []event.CanonicalEvent
	for _, d := range []string{"d0", "d1", "d2", "d3"} {
		events = append(events, ev("Disk", 7, "", map[string]string{"DeviceName": d}))
	}
	hints := New().Correlate(events)

	h, ok := find(hints, CatStorage, "high", "Bad block detected on disk")
	if !ok {
		t.Fatal("bad block hint missing")
	}
	if h.Count != 4 {
		t.Errorf("Count = %d, want 4", h.Count)
	}
	if len(h.Evidence) != 3 || h.Evidence[0] != "d0" || h.Evidence[2] != "d2" {
		t.Errorf("Evidence = %v, want first three devices", h.Evidence)
	}
	if h.Probability != 90 {
		t.Errorf("Probability = %d, want 90 (75 + 10 + 5)", h.Probability)
	}

	n := 0
	for _, x := range hints {
		if x.Message == "Bad block detected on disk" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("found %d hints for one key, want 1", n)
	}
}

func TestCorrelate_RepeatedEvidenceIsKept(t *testing.T) {
	events := []event.CanonicalEvent{
		ev("Disk", 11, "", map[string]string{"param1": "disk0"}),
		ev("Disk", 11, "", map[string]string{"param1": "disk0"}),
	}
	h, _ := find(New().Correlate(events), CatStorage, "high", "Disk or controller error")
	if len(h.Evidence) != 2 || h.Evidence[1] != "disk0" {
		t.Errorf("Evidence = %v, want [disk0 disk0]", h.Evidence)
	}
}

func TestCorrelate_EmptyEvidenceNotRecorded(t *testing.T) {
	h, ok := find(New().Correlate([]event.CanonicalEvent{ev("Disk", 7, "", nil)}), CatStorage, "high", "Bad block detected on disk")
	if !ok {
		t.Fatal("hint missing")
	}
	if len(h.Evidence) != 0 {
		t.Errorf("Evidence = %v, want none", h.Evidence)
	}
	if h.Probability != 75 {
		t.Errorf("Probability = %d, want 75", h.Probability)
	}
}

// --- composite rule ---

func TestCorrelate_CompositeShadowCopyAndNTFS(t *testing.T) {
	volsnap := ev("volsnap", 36, "The shadow copies of volume C: were aborted", nil)
	ntfs := ev("Microsoft-Windows-Ntfs", 55, "", nil)

	for name, batch := range map[string][]event.CanonicalEvent{
		"volsnap first": {volsnap, ntfs},
		"ntfs first":    {ntfs, volsnap},
	} {
		h, ok := find(New().Correlate(batch), CatStorage, "high", CompositeMessage)
		if !ok {
			t.Errorf("%s: composite hint missing", name)
			continue
		}
		if h.Count != 1 || h.Probability != 75 {
			t.Errorf("%s: composite = %+v", name, h)
		}
	}

	if _, ok := find(New().Correlate([]event.CanonicalEvent{volsnap}), CatStorage, "high", CompositeMessage); ok {
		t.Error("composite raised without NTFS 55")
	}
	other := ev("Microsoft-Windows-Ntfs", 57, "", nil)
	if _, ok := find(New().Correlate([]event.CanonicalEvent{volsnap, other}), CatStorage, "high", CompositeMessage); ok {
		t.Error("composite raised for NTFS 57")
	}
}

// --- provider groups ---

func TestCorrelate_FanChain(t *testing.T) {
	tests := []struct {
		content  string
		severity string
		message  string
	}{
		{"CPU fan stalled", "high", "CPU/Chassis fan failure detected [ACPI fan]"},
		{"fan rpm below threshold", "medium", "Fan speed low or unstable"},
		{"fan state changed", "medium", "Fan-related event reported"},
	}
	for _, tt := range tests {
		e := ev("ACPI", 1, tt.content, map[string]string{"DeviceInstanceId": `ACPI\PNP0C0B\0`})
		hints := New().Correlate([]event.CanonicalEvent{e})
		h, ok := find(hints, CatCooling, tt.severity, tt.message)
		if !ok {
			t.Errorf("%q: want %s/%s, got %+v", tt.content, tt.severity, tt.message, hints)
			continue
		}
		if len(h.Evidence) != 1 || h.Evidence[0] != `ACPI\PNP0C0B\0` {
			t.Errorf("%q: evidence = %v", tt.content, h.Evidence)
		}
		cooling := 0
		for _, x := range hints {
			if x.Category == CatCooling {
				cooling++
			}
		}
		if cooling != 1 {
			t.Errorf("%q: %d cooling hints, want exactly 1", tt.content, cooling)
		}
	}
}

func TestCorrelate_ThermalEvidencePrefersTemperature(t *testing.T) {
	e := ev("Microsoft-Windows-Thermal", 1, "thermal zone reports overheat",
		map[string]string{"CurrentTemperature": "371", "DeviceInstanceId": `ACPI\PNP0C0A\1`})
	h, ok := find(New().Correlate([]event.CanonicalEvent{e}), CatThermal, "medium", "Thermal zone or sensor reports high temperature")
	if !ok || len(h.Evidence) != 1 || h.Evidence[0] != "371" {
		t.Errorf("thermal hint = %+v, %v", h, ok)
	}
}

func TestCorrelate_ServiceFailureSeverity(t *testing.T) {
	failed := ev("Service Control Manager", 7000, "The Spooler service failed to start", map[string]string{"param1": "Spooler"})
	pending := ev("Microsoft-Windows-Services", 7009, "start pending timed out", nil)

	hints := New().Correlate([]event.CanonicalEvent{failed, pending})
	if h, ok := find(hints, CatServices, "high", "Service failure: Spooler"); !ok || h.Evidence[0] != "Spooler" {
		t.Errorf("failed-to-start hint = %+v, %v", h, ok)
	}
	if _, ok := find(hints, CatServices, "medium", "Service start/termination failure"); !ok {
		t.Errorf("pending hint missing from %+v", hints)
	}
}

func TestCorrelate_WHEAWithBDF(t *testing.T) {
	e := ev("Microsoft-Windows-WHEA-Logger", 18, "", map[string]string{
		"ErrorSource": "3", "ApicId": "4", "Bus": "1", "Device": "0", "Function": "0",
	})

	hints := New().Correlate([]event.CanonicalEvent{e})
	h, ok := find(hints, CatHardware, "high", "Uncorrected hardware error detected (machine check)")
	if !ok || h.Evidence[0] != "3 APIC 4" {
		t.Errorf("machine check hint = %+v, %v", h, ok)
	}
	if _, ok := find(hints, CatHardware, "medium", "Likely discrete GPU (PEG root path) (B:1 D:0 F:0 )"); !ok {
		t.Errorf("BDF heuristic hint missing from %+v", hints)
	}

	overrides := devices.NewBDFOverrides([]devices.BDFOverride{{Bus: "1", Device: "0", Function: "0", Label: "x16 slot"}})
	hints = New(WithBDFOverrides(overrides)).Correlate([]event.CanonicalEvent{e})
	if _, ok := find(hints, CatHardware, "medium", "x16 slot (B:1 D:0 F:0 )"); !ok {
		t.Errorf("BDF override hint missing from %+v", hints)
	}
}

func TestCorrelate_MemoryDiagnostics(t *testing.T) {
	pass := ev("Microsoft-Windows-MemoryDiagnostics-Results", 1201, "", map[string]string{"TestResult": "0"})
	fail := ev("Microsoft-Windows-MemoryDiagnostics-Results", 1202, "", map[string]string{"FailureCount": "2"})
	hints := New().Correlate([]event.CanonicalEvent{pass, fail})
	h, ok := find(hints, CatMemory, "high", "Memory diagnostics reported errors")
	if !ok || h.Count != 1 || h.Evidence[0] != "2" {
		t.Errorf("memory hint = %+v, %v", h, ok)
	}
}

func TestCorrelate_ProviderMatchIsExact(t *testing.T) {
	hints := New().Correlate([]event.CanonicalEvent{ev("disk", 7, "", map[string]string{"DeviceName": "d0"})})
	if _, ok := find(hints, CatStorage, "high", "Bad block detected on disk"); ok {
		t.Error("provider dispatch should be case-sensitive")
	}
}

// --- cross-cutting fan-out ---

func TestCorrelate_FanOutAcrossCategories(t *testing.T) {
	e := ev("Microsoft-Windows-DNS-Client", 1014, "Name resolution for the name example.com timed out",
		map[string]string{"QueryName": "example.com"})
	hints := New().Correlate([]event.CanonicalEvent{e})

	if _, ok := find(hints, CatNetwork, "medium", "DNS name resolution failure"); !ok {
		t.Error("provider hint missing")
	}
	if _, ok := find(hints, CatNetwork, "medium", "Network connectivity or name resolution issue"); !ok {
		t.Error("cross-cutting hint missing")
	}
}

func TestCorrelate_SmartWording(t *testing.T) {
	e := ev("Contoso", 1, "SMART status Pred Fail on drive 1", nil)
	if _, ok := find(New().Correlate([]event.CanonicalEvent{e}), CatStorage, "high", "SMART indicates predicted disk failure"); !ok {
		t.Error("SMART hint missing")
	}
}

func TestCorrelate_StorageControllerGatedByProvider(t *testing.T) {
	gated := ev("iaStorAC", 129, "Reset to device, \\Device\\RaidPort0, was issued.", nil)
	plain := ev("Contoso", 129, "Reset to device was issued.", nil)
	msg := "Storage controller reported resets/retries (path instability)"

	if _, ok := find(New().Correlate([]event.CanonicalEvent{gated}), CatStorage, "medium", msg); !ok {
		t.Error("iaStor reset not reported")
	}
	if _, ok := find(New().Correlate([]event.CanonicalEvent{plain}), CatStorage, "medium", msg); ok {
		t.Error("reset from a non-storage provider should not hit the controller rule")
	}
}

// --- declared rules ---

func TestCorrelate_DeclaredRulesMergeIntoAccumulator(t *testing.T) {
	id := 42
	set := rules.CompileDocument(rules.Document{HintRules: []rules.Rule{
		{Provider: "Contoso", EventID: &id, ContainsAny: []string{"jam"}, Category: "Peripheral", Severity: "high", Message: "Widget jam"},
		{ContainsAny: []string{"bad block"}, Category: CatStorage, Severity: "high", Message: "Bad block detected on disk"},
	}})
	events := []event.CanonicalEvent{
		ev("Contoso", 42, "widget JAM", nil),
		ev("Contoso", 42, "jam again", nil),
		ev("Contoso", 41, "jam", nil),
		ev("Disk", 7, "Bad block detected on d0", map[string]string{"DeviceName": "d0"}),
	}
	hints := New(WithRules(set)).Correlate(events)

	h, ok := find(hints, "Peripheral", "high", "Widget jam")
	if !ok || h.Count != 2 {
		t.Errorf("declared hint = %+v, %v; want count 2", h, ok)
	}
	if h.Probability != 80 {
		t.Errorf("declared Probability = %d, want 80", h.Probability)
	}
	// Declared match shares the built-in key and merges with it.
	if b, _ := find(hints, CatStorage, "high", "Bad block detected on disk"); b.Count != 2 {
		t.Errorf("merged bad block count = %d, want 2", b.Count)
	}
}

func TestFromDeclared_Matches(t *testing.T) {
	id := 42
	c, err := rules.Compile(rules.Rule{
		Provider:    "Contoso",
		EventID:     &id,
		ContainsAny: []string{"widget jammed"},
		Regex:       `code=0x[0-9A-F]+`,
		Message:     "Contoso widget failure",
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	r := FromDeclared(&c)

	tests := []struct {
		name     string
		provider string
		id       int
		text     string
		want     bool
	}{
		{"substring", "Contoso", 42, "The Widget Jammed again", true},
		{"regex", "Contoso", 42, "failure code=0xDEAD", true},
		{"neither", "Contoso", 42, "all good", false},
		{"wrong provider", "Fabrikam", 42, "widget jammed", false},
		{"wrong id", "Contoso", 43, "widget jammed", false},
	}
	for _, tt := range tests {
		e := ev(tt.provider, tt.id, tt.text, nil)
		if got := r.matches(newInput(&e)); got != tt.want {
			t.Errorf("%s: matches = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCorrelate_DeclaredRuleWithInvalidRegexStillFires(t *testing.T) {
	set := rules.CompileDocument(rules.Document{HintRules: []rules.Rule{
		{ContainsAny: []string{"timeout"}, Regex: "(", Category: "Network", Severity: "low", Message: "Custom timeout"},
	}})
	if len(set.Rules) != 1 {
		t.Fatalf("compiled rules = %d, want 1", len(set.Rules))
	}
	hints := New(WithRules(set)).Correlate([]event.CanonicalEvent{
		ev("Contoso", 1, "request TIMEOUT after 30s", nil),
	})
	if h, ok := find(hints, "Network", "low", "Custom timeout"); !ok || h.Count != 1 {
		t.Errorf("declared hint = %+v, %v; want count 1", h, ok)
	}
}

// --- output contract ---

func TestCorrelate_SortedDeterministically(t *testing.T) {
	events := []event.CanonicalEvent{
		ev("Microsoft-Windows-Kernel-Power", 41, "", nil),
		ev("Display", 4101, "", nil),
		ev("Display", 4101, "", nil),
		ev("EventLog", 6008, "", nil),
	}
	hints := New().Correlate(events)
	want := []string{
		"Display driver stopped responding and recovered",
		"Previous system shutdown was unexpected",
		"Unexpected shutdown or power loss detected",
	}
	if len(hints) != len(want) {
		t.Fatalf("got %d hints, want %d: %+v", len(hints), len(want), hints)
	}
	for i, m := range want {
		if hints[i].Message != m {
			t.Errorf("hints[%d] = %q, want %q", i, hints[i].Message, m)
		}
	}
}

func TestCorrelate_ProbabilityAlwaysInRange(t *testing.T) {
	var events []event.CanonicalEvent
	for i := 0; i < 8; i++ {
		events = append(events,
			ev("Disk", 7, "retry after reset", map[string]string{"DeviceName": "d"}),
			ev("Contoso", 1, "access denied over tcp", nil),
		)
	}
	for _, h := range New().Correlate(events) {
		if h.Probability < 5 || h.Probability > 95 {
			t.Errorf("%s: Probability = %d out of [5,95]", h.Message, h.Probability)
		}
	}
}

func TestCorrelate_EmptyBatch(t *testing.T) {
	if hints := New().Correlate(nil); len(hints) != 0 {
		t.Errorf("hints = %+v, want none", hints)
	}
}

func TestProbability(t *testing.T) {
	tests := []struct {
		severity string
		count    int
		evidence bool
		want     int
	}{
		{"high", 1, false, 75},
		{"high", 5, true, 95},
		{"medium", 2, false, 55},
		{"medium", 3, true, 65},
		{"low", 1, false, 25},
		{"unknown", 10, true, 45},
	}
	for _, tt := range tests {
		if got := Probability(tt.severity, tt.count, tt.evidence); got != tt.want {
			t.Errorf("Probability(%s, %d, %v) = %d, want %d", tt.severity, tt.count, tt.evidence, got, tt.want)
		}
	}
}
