package report

import (
	"strings"

	"github.com/obsidianstack/winsight/agent/internal/event"
)

// Domain names returned by ClassifyDomain.
const (
	DomainStorage     = "Storage"
	DomainGPU         = "GPU"
	DomainNetwork     = "Network"
	DomainServices    = "Services"
	DomainHardware    = "Hardware"
	DomainPower       = "CPU/Power"
	DomainPermissions = "Permissions"
	DomainTimeSync    = "Time Sync"
	DomainTLS         = "TLS/Certificates"
	DomainUpdates     = "Updates"
	DomainDevices     = "USB/Devices"
	DomainSecurity    = "Security/Auth"
	DomainScheduler   = "Scheduler"
	DomainGeneral     = "General"
)

var storageIDs = []int{7, 11, 51, 55, 57, 129, 140, 153, 157}

// ClassifyDomain buckets ev into a coarse subsystem. Checks run in a fixed
// order over the lowercased provider, channel and content; the first match
// wins.
func ClassifyDomain(ev *event.CanonicalEvent) string {
	p := strings.ToLower(ev.Provider)
	ch := strings.ToLower(ev.Channel)
	ct := strings.ToLower(ev.Content)
	has := func(s string, subs ...string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
	idIn := func(ids ...int) bool {
		for _, id := range ids {
			if ev.EventID == id {
				return true
			}
		}
		return false
	}

	switch {
	case has(p, "disk", "ntfs", "storport", "volmgr", "volsnap") || has(ch, "storage") || idIn(storageIDs...):
		return DomainStorage
	case has(p, "display", "nvlddmkm", "amdkmdag") || has(ch, "graphics") || has(ct, "tdr"):
		return DomainGPU
	case has(p, "dns", "network") || has(ch, "network") || has(ct, "connect", "link", "timeout"):
		return DomainNetwork
	case has(p, "service") || has(ch, "services"):
		return DomainServices
	case has(p, "whea", "hardware"):
		return DomainHardware
	case has(p, "processor-power", "power"):
		return DomainPower
	case has(ct, "access denied") || has(p, "distributedcom") || idIn(10016, 10010):
		return DomainPermissions
	case has(p, "w32time") || has(ct, "time service", "ntp"):
		return DomainTimeSync
	case has(p, "schannel") || has(ct, "certificate", "tls", "ssl"):
		return DomainTLS
	case has(p, "windowsupdateclient") || has(ch, "setup") || has(ct, "update", "servicing"):
		return DomainUpdates
	case has(p, "usbhub", "kernel-pnp") || has(ct, "usb", "device"):
		return DomainDevices
	case has(ch, "security") || has(p, "security") || has(ct, "logon", "audit failure"):
		return DomainSecurity
	case has(p, "taskscheduler"):
		return DomainScheduler
	}
	return DomainGeneral
}
