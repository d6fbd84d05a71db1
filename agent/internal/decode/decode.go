package decode

import (
	"fmt"
	"strings"

	"github.com/obsidianstack/winsight/agent/internal/event"
)

// handler decodes one provider's events. m is the payload map and raw the
// original record text.
type handler func(id int, m payload, raw string) (string, bool)

// payload wraps the EventData map with fallback-chain lookups.
type payload map[string]string

// first returns the first non-empty value among keys.
func (p payload) first(keys ...string) string {
	for _, k := range keys {
		if v := p[k]; v != "" {
			return v
		}
	}
	return ""
}

var handlers = map[string]handler{
	"Service Control Manager":                    serviceControlManager,
	"Disk":                                       disk,
	"DistributedCOM":                             dcom,
	"Schannel":                                   schannel,
	"Microsoft-Windows-WER-SystemErrorReporting": bugCheck,
	"Microsoft-Windows-Ntfs":                     ntfs,
	"Microsoft-Windows-Kernel-Power":             kernelPower,
	"EventLog":                                   eventLog,
	"Microsoft-Windows-WHEA-Logger":              whea,
	"Display":                                    display,
	"volmgr":                                     volmgr,
	"volsnap":                                    volsnap,
	"Microsoft-Windows-DNS-Client":               dnsClient,
}

// Decode returns the message for a raw record from provider with event id,
// or false when the provider is unknown or the event carries nothing to say.
func Decode(provider string, id int, raw string) (string, bool) {
	return decode(provider, id, event.ParsePayload(raw), raw)
}

// Enrich replaces ev's content with its decoded message when there is one.
func Enrich(ev event.CanonicalEvent) event.CanonicalEvent {
	raw := ev.Raw
	if raw == "" {
		raw = ev.Content
	}
	m := ev.Payload
	if len(m) == 0 {
		m = event.ParsePayload(raw)
	}
	if msg, ok := decode(ev.Provider, ev.EventID, m, raw); ok {
		return ev.WithContent(msg)
	}
	return ev
}

func decode(provider string, id int, m map[string]string, raw string) (string, bool) {
	h, ok := handlers[provider]
	if !ok {
		return "", false
	}
	return h(id, payload(m), raw)
}

// --- handlers ---

func serviceControlManager(id int, m payload, _ string) (string, bool) {
	svc := m.first("ServiceName", "param1")
	switch id {
	case 7000:
		return "Service failed to start: " + svc, true
	case 7001:
		return "Service dependent failed to start: " + svc, true
	case 7009:
		return "Service start timed out: " + svc, true
	case 7011:
		return "Service hung or timeout occurred: " + svc, true
	case 7023:
		return "Service terminated with error: " + svc, true
	case 7031, 7034:
		return "Service terminated unexpectedly: " + svc, true
	}
	if svc == "" {
		return "", false
	}
	return fmt.Sprintf("SCM %d %s", id, svc), true
}

func disk(id int, m payload, _ string) (string, bool) {
	dev := m.first("DeviceName", "param1")
	switch id {
	case 7:
		return "Bad block detected on " + dev, true
	case 11:
		return "Disk or controller error on " + dev, true
	case 51:
		return "Paging I/O error indicates unstable storage path", true
	case 157:
		return "Disk was surprise removed: " + dev, true
	}
	if dev == "" {
		return "", false
	}
	return "Disk " + dev, true
}

func dcom(_ int, m payload, _ string) (string, bool) {
	clsid, appid := m["CLSID"], m["APPID"]
	if clsid == "" && appid == "" {
		return "", false
	}
	return fmt.Sprintf("DCOM CLSID=%s APPID=%s", clsid, appid), true
}

func schannel(_ int, m payload, _ string) (string, bool) {
	if code := m["ErrorCode"]; code != "" {
		return "Schannel ErrorCode=" + code, true
	}
	return "", false
}

func bugCheck(_ int, m payload, _ string) (string, bool) {
	if code := m["BugcheckCode"]; code != "" {
		return "BugCheck " + code, true
	}
	return "", false
}

func ntfs(id int, _ payload, _ string) (string, bool) {
	switch id {
	case 55:
		return "File system corruption detected (NTFS)", true
	case 57:
		return "Delayed write failed (NTFS)", true
	case 140:
		return "Failed to flush data to transaction log (NTFS)", true
	}
	return "", false
}

func kernelPower(id int, _ payload, _ string) (string, bool) {
	if id == 41 {
		return "Unexpected shutdown or power loss detected", true
	}
	return "", false
}

func eventLog(id int, _ payload, _ string) (string, bool) {
	if id == 6008 {
		return "Previous system shutdown was unexpected", true
	}
	return "", false
}

func whea(id int, m payload, _ string) (string, bool) {
	switch id {
	case 18:
		return fmt.Sprintf("Uncorrected hardware error (%s )", WHEASource(m)), true
	case 17:
		return fmt.Sprintf("Corrected hardware error (%s)", m.first("Component", "DeviceId")), true
	case 19, 20:
		return fmt.Sprintf("Hardware error reported by WHEA (%s)", m["ErrorSource"]), true
	}
	return "", false
}

// WHEASource renders the error source of an uncorrected WHEA event,
// qualified by the APIC id when one is present.
func WHEASource(m map[string]string) string {
	src := m["ErrorSource"]
	apic := payload(m).first("ApicId", "ProcessorAPICID")
	if apic == "" {
		return src
	}
	return src + " APIC " + apic
}

func display(id int, _ payload, _ string) (string, bool) {
	if id == 4101 {
		return "Display driver stopped responding and recovered", true
	}
	return "", false
}

func volmgr(_ int, _ payload, raw string) (string, bool) {
	if strings.Contains(strings.ToLower(raw), "failed to flush data to the transaction log") {
		return "Volume manager flush failure – potential corruption", true
	}
	return "", false
}

func volsnap(_ int, _ payload, raw string) (string, bool) {
	c := strings.ToLower(raw)
	if strings.Contains(c, "shadow copies of volume") && strings.Contains(c, "were aborted") {
		return "Shadow copies aborted – may indicate underlying disk issues", true
	}
	return "", false
}

func dnsClient(id int, m payload, _ string) (string, bool) {
	if id != 1014 {
		return "", false
	}
	if q := m["QueryName"]; q != "" {
		return "DNS name resolution failure: " + q, true
	}
	return "DNS name resolution failure", true
}
