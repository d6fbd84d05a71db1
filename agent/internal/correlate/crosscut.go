package correlate

import "strings"

// providerHas builds a When predicate on the lowercased provider name.
func providerHas(subs ...string) func(in *Input) bool {
	return func(in *Input) bool {
		p := strings.ToLower(in.Event.Provider)
		for _, s := range subs {
			if strings.Contains(p, s) {
				return true
			}
		}
		return false
	}
}

// registerCrossCutting adds the provider-independent rules, evaluated for
// every event after its provider rules.
func registerCrossCutting(reg *Registry) {
	reg.RegisterCross(
		Rule{
			Any:      []string{"access denied", "permission", "privilege"},
			Category: CatPermissions, Severity: medium, Message: "Access denied or insufficient permissions detected",
		},
		Rule{
			Provider: "DistributedCOM",
			When:     hasAll([]string{"do not grant"}, []string{"permission settings"}),
			Category: CatPermissions, Severity: medium, Message: "DCOM permission misconfiguration",
		},
		Rule{
			Any:      []string{"dns", "name resolution", "tcp", "connection timed out", "reset by peer", "dhcp", "media disconnected"},
			Category: CatNetwork, Severity: medium, Message: "Network connectivity or name resolution issue",
		},
		Rule{
			Any:      []string{"windows update", "wuau", "failed to install update", "download error"},
			Category: CatUpdates, Severity: medium, Message: "Windows Update reported a failure",
		},
		Rule{
			Any:      []string{"low disk space", "not enough space", "quota exceeded"},
			Category: CatStorage, Severity: medium, Message: "Low disk space or quota exceeded",
		},
		Rule{
			Any:      []string{"bugcheck", "stop code"},
			Category: CatPower, Severity: high, Message: "System crash (BugCheck) indicated",
		},
		Rule{
			Any:      []string{"reset to device", "i/o was retried"},
			When:     providerHas("iastor", "storahci", "nvme"),
			Category: CatStorage, Severity: medium, Message: "Storage controller reported resets/retries (path instability)",
		},
		Rule{
			When: func(in *Input) bool {
				return providerHas("cdrom")(in) &&
					(in.Event.EventID == 11 || in.Has("controller error", "device not ready"))
			},
			Category: CatStorage, Severity: medium, Message: "Optical drive or controller error",
		},
		Rule{
			Provider: "Microsoft-Windows-Diagnostics-Performance", EventIDs: []int{100},
			Category: CatPerformance, Severity: medium, Message: "Slow startup detected (Diagnostics-Performance 100)",
		},
		Rule{
			Provider: "Microsoft-Windows-Diagnostics-Performance", EventIDs: []int{200},
			Category: CatPerformance, Severity: medium, Message: "Slow logon detected (Diagnostics-Performance 200)",
		},
		Rule{
			Provider: "Microsoft-Windows-Diagnostics-Performance", EventIDs: []int{400},
			Category: CatPerformance, Severity: medium, Message: "Slow resume from standby detected (Diagnostics-Performance 400)",
		},
		Rule{
			Any:      []string{"retry", "reset", "corrupt", "degraded", "unexpected"},
			Category: CatGeneral, Severity: medium, Message: "System reported error patterns indicating instability",
		},
	)
}
