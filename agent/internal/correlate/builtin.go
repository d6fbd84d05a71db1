package correlate

import (
	"fmt"

	"github.com/obsidianstack/winsight/agent/internal/decode"
	"github.com/obsidianstack/winsight/agent/internal/devices"
)

// Hint categories used by the built-in rules.
const (
	CatApplication = "Application"
	CatCooling     = "Cooling"
	CatThermal     = "Thermal"
	CatNetwork     = "Network"
	CatSystem      = "System"
	CatPolicy      = "Policy"
	CatHardware    = "Hardware"
	CatServices    = "Services"
	CatStorage     = "Storage"
	CatPeripheral  = "Peripheral"
	CatPower       = "Power"
	CatGPU         = "GPU"
	CatMemory      = "Memory"
	CatPermissions = "Permissions"
	CatUpdates     = "Updates"
	CatPerformance = "Performance"
	CatGeneral     = "General"
)

const (
	high   = "high"
	medium = "medium"
)

var (
	fanFailure = []string{"fail", "stalled", "not detected"}
	fanSpeed   = []string{"rpm", "tachometer"}
)

// withClass appends " [label]" to msg when id classifies as a known device.
func withClass(msg, id string) string {
	if id == "" {
		return msg
	}
	if cls, ok := devices.ClassifyInstanceID(id); ok {
		return msg + " [" + cls + "]"
	}
	return msg
}

// registerBuiltins adds the provider rule groups to reg. bdf classifies the
// PCI location carried by WHEA events.
func registerBuiltins(reg *Registry, bdf devices.BDFOverrides) {
	reg.Register([]string{"Application Error"}, Rule{
		EventIDs: []int{1000},
		Category: CatApplication, Severity: high, Message: "Application crash detected",
		Evidence: field("FaultingApplicationName", "FaultingModuleName"),
	})

	instance := field("DeviceInstanceId")
	reg.Register([]string{"Microsoft-Windows-Kernel-Acpi", "Microsoft-Windows-ACPI", "ACPI", "Microsoft-Windows-Thermal"},
		Rule{
			Any:      []string{"fan"},
			When:     hasAll(fanFailure),
			Category: CatCooling,
			Build: func(in *Input) (string, string) {
				return high, withClass("CPU/Chassis fan failure detected", in.Field("DeviceInstanceId"))
			},
			Evidence: instance,
		},
		Rule{
			Any:      []string{"fan"},
			When:     func(in *Input) bool { return !in.Has(fanFailure...) && in.Has(fanSpeed...) },
			Category: CatCooling, Severity: medium, Message: "Fan speed low or unstable",
			Evidence: instance,
		},
		Rule{
			Any:      []string{"fan"},
			When:     func(in *Input) bool { return !in.Has(fanFailure...) && !in.Has(fanSpeed...) },
			Category: CatCooling, Severity: medium, Message: "Fan-related event reported",
			Evidence: instance,
		},
		Rule{
			Any:      []string{"thermal zone", "temperature", "overheat", "critical"},
			Category: CatThermal, Severity: medium, Message: "Thermal zone or sensor reports high temperature",
			Evidence: field("CurrentTemperature", "DeviceInstanceId"),
		},
	)

	reg.Register([]string{"Microsoft-Windows-DNS-Client"}, Rule{
		When:     func(in *Input) bool { return in.Event.EventID == 1014 || in.Has("name resolution", "dns") },
		Category: CatNetwork, Severity: medium, Message: "DNS name resolution failure",
		Evidence: field("QueryName"),
	})

	reg.Register([]string{"Microsoft-Windows-Time-Service", "W32Time"}, Rule{
		Any:      []string{"failed", "no response", "synchronize"},
		Category: CatSystem, Severity: medium, Message: "System time synchronization failed",
		Evidence: field("SourceType"),
	})

	reg.Register([]string{"Microsoft-Windows-GroupPolicy"}, Rule{
		Any:      []string{"failed", "could not apply", "processing aborted"},
		Category: CatPolicy, Severity: medium, Message: "Group Policy processing failure",
		Evidence: field("GPOID", "DCName"),
	})

	reg.Register([]string{"Microsoft-Windows-WHEA-Logger"},
		Rule{
			EventIDs: []int{18},
			Category: CatHardware, Severity: high, Message: "Uncorrected hardware error detected (machine check)",
			Evidence: func(in *Input) string { return decode.WHEASource(in.Event.Payload) },
		},
		Rule{
			EventIDs: []int{17},
			Category: CatHardware, Severity: medium, Message: "Corrected hardware error reported",
			Evidence: field("Component", "DeviceId"),
		},
		Rule{
			EventIDs: []int{19, 20},
			Category: CatHardware, Severity: medium, Message: "Hardware error reported by WHEA",
			Evidence: field("ErrorSource"),
		},
		Rule{
			When: func(in *Input) bool {
				_, ok := bdf.Classify(in.Field("Bus"), in.Field("Device"), in.Field("Function"))
				return ok
			},
			Category: CatHardware,
			Build: func(in *Input) (string, string) {
				b, d, f := in.Field("Bus"), in.Field("Device"), in.Field("Function")
				cls, _ := bdf.Classify(b, d, f)
				return medium, fmt.Sprintf("%s (B:%s D:%s F:%s )", cls, b, d, f)
			},
		},
	)

	reg.Register([]string{"Service Control Manager", "Microsoft-Windows-Services"}, Rule{
		Any:      []string{"failed to start", "start pending timed out", "terminated unexpectedly"},
		Category: CatServices,
		Build: func(in *Input) (string, string) {
			sev := medium
			if in.Has("failed", "terminated") {
				sev = high
			}
			if svc := in.Field("ServiceName", "param1"); svc != "" {
				return sev, "Service failure: " + svc
			}
			return sev, "Service start/termination failure"
		},
		Evidence: field("ServiceName", "param1"),
	})

	diskDevice := field("DeviceName", "param1")
	reg.Register([]string{"Disk"},
		Rule{EventIDs: []int{7}, Category: CatStorage, Severity: high, Message: "Bad block detected on disk", Evidence: diskDevice},
		Rule{EventIDs: []int{11}, Category: CatStorage, Severity: high, Message: "Disk or controller error", Evidence: diskDevice},
		Rule{EventIDs: []int{51}, Category: CatStorage, Severity: medium, Message: "Paging I/O error indicates unstable storage path"},
		Rule{EventIDs: []int{157}, Category: CatStorage, Severity: high, Message: "Disk was surprise removed (connection/port)", Evidence: diskDevice},
	)

	reg.Register([]string{"Microsoft-Windows-Ntfs"},
		Rule{EventIDs: []int{55}, Category: CatStorage, Severity: high, Message: "File system corruption detected (NTFS)"},
		Rule{EventIDs: []int{57}, Category: CatStorage, Severity: high, Message: "Delayed write failed"},
		Rule{EventIDs: []int{140}, Category: CatStorage, Severity: high, Message: "Failed to flush data to transaction log (NTFS)"},
	)

	reg.Register([]string{"Storport"},
		Rule{EventIDs: []int{129}, Category: CatStorage, Severity: medium, Message: "Reset to device implies storage connectivity issue"},
		Rule{EventIDs: []int{153}, Category: CatStorage, Severity: medium, Message: "I/O operation retried by Storport"},
	)

	reg.Register([]string{"volmgr"}, Rule{
		Any:      []string{"failed to flush data to the transaction log"},
		Category: CatStorage, Severity: high, Message: "Volume manager flush failure – potential corruption",
	})

	reg.Register([]string{"volsnap"}, Rule{
		When:     hasAll([]string{"shadow copies of volume"}, []string{"were aborted"}),
		Category: CatStorage, Severity: medium, Message: "Shadow copies aborted – may indicate underlying disk issues",
	})

	reg.Register([]string{"Microsoft-Windows-DiskDiagnostic", "Microsoft-Windows-DiskDiagnosticDataCollector"}, Rule{
		Category: CatStorage, Severity: high, Message: "Windows detected disk reliability issue",
		Evidence: field("Reason", "PercentPerformanceDegraded"),
	})

	reg.Register([]string{"Microsoft-Windows-Kernel-PnP"}, Rule{
		EventIDs: []int{219},
		Category: CatPeripheral,
		Build: func(in *Input) (string, string) {
			return medium, withClass("Driver failed to load for a device (Kernel-PnP 219)", in.Field("DeviceInstanceId"))
		},
		Evidence: field("DeviceInstanceId"),
	})

	reg.Register([]string{"Microsoft-Windows-UserPnp"}, Rule{
		When: func(in *Input) bool {
			return in.Event.EventID == 2003 || in.Has("driver install failed", "device install failed")
		},
		Category: CatPeripheral,
		Build: func(in *Input) (string, string) {
			return medium, withClass("Device installation failed", in.Field("DeviceInstanceID", "DeviceInstanceId"))
		},
		Evidence: field("DeviceInstanceID", "DeviceInstanceId"),
	})

	reg.Register([]string{"Microsoft-Windows-Kernel-Power"}, Rule{
		EventIDs: []int{41},
		Category: CatPower, Severity: high, Message: "Unexpected shutdown or power loss detected",
	})

	reg.Register([]string{"Microsoft-Windows-EventLog", "EventLog"}, Rule{
		EventIDs: []int{6008},
		Category: CatPower, Severity: high, Message: "Previous system shutdown was unexpected",
	})

	reg.Register([]string{"Microsoft-Windows-Kernel-Processor-Power"}, Rule{
		EventIDs: []int{37},
		Category: CatThermal, Severity: medium, Message: "CPU frequency limited by firmware (thermal/power)",
	})

	reg.Register([]string{"Display"}, Rule{
		EventIDs: []int{4101},
		Category: CatGPU, Severity: medium, Message: "Display driver stopped responding and recovered",
	})

	reg.Register([]string{"Microsoft-Windows-DxgKrnl"}, Rule{
		EventIDs: []int{2, 3},
		Category: CatGPU, Severity: medium, Message: "Video scheduler or graphics kernel reported a fault",
	})

	reg.Register([]string{"nvlddmkm", "amdkmdag"}, Rule{
		Category: CatGPU, Severity: medium, Message: "GPU driver timeout or reset detected",
	})

	reg.Register([]string{"USBHUB", "USBHUB3", "USBXHCI", "usbhub", "usbstor", "USB"}, Rule{
		Any:      []string{"enumeration failed", "descriptor request failed", "port reset failed"},
		Category: CatPeripheral, Severity: medium, Message: "USB device enumeration or port failure",
	})

	reg.Register([]string{"cdrom"}, Rule{
		When:     func(in *Input) bool { return in.Event.EventID == 11 || in.Has("controller error") },
		Category: CatStorage, Severity: medium, Message: "CD/DVD device or controller error",
	})

	reg.Register([]string{"Netlogon", "NETLOGON"}, Rule{
		Any:      []string{"domain controller", "logon failure", "could not establish a secure connection"},
		Category: CatNetwork, Severity: medium, Message: "Domain logon or secure channel issue",
		Evidence: field("DnsHostName", "DCName"),
	})

	reg.Register([]string{"Microsoft-Windows-MemoryDiagnostics-Results"}, Rule{
		When: func(in *Input) bool {
			v := in.Field("TestResult", "FailureCount")
			return v != "" && v != "0"
		},
		Category: CatMemory, Severity: high, Message: "Memory diagnostics reported errors",
		Evidence: field("TestResult", "FailureCount"),
	})
}
