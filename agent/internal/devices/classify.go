package devices

import (
	"strconv"
	"strings"
)

// instancePrefixes is checked in order against the lowercased instance id.
var instancePrefixes = []struct {
	prefix string
	label  string
}{
	{`nvme\`, "NVMe drive"},
	{`scsi\disk`, "SATA/SAS disk"},
	{`usb\vid_`, "USB device"},
	{`acpi\pnp0c0b`, "ACPI fan"},
	{`acpi\pnp0c0a`, "ACPI thermal zone"},
}

// vendors maps lowercase PCI vendor ids to a device class.
var vendors = map[string]string{
	"10de": "NVIDIA GPU",
	"1002": "AMD GPU",
	"8086": "Intel controller/device",
	"144d": "Samsung NVMe",
	"1bb1": "Western Digital NVMe",
	"1987": "Phison NVMe",
	"1c5c": "SK hynix NVMe",
	"1344": "Micron NVMe",
	"10ec": "Realtek controller/device",
	"14e4": "Broadcom controller/device",
	"1b21": "ASMedia controller/device",
	"197b": "JMicron controller/device",
	"126f": "Silicon Motion NVMe",
	"15b7": "SanDisk NVMe",
	"1e0f": "KIOXIA NVMe",
	"1e49": "Solidigm NVMe",
	"1d97": "ADATA NVMe",
	"1022": "AMD controller/device",
}

// ClassifyInstanceID labels a PnP instance id such as `PCI\VEN_10DE&DEV_2484`.
func ClassifyInstanceID(id string) (string, bool) {
	lower := strings.ToLower(id)
	for _, p := range instancePrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return p.label, true
		}
	}

	ven, dev := parsePCIVenDev(lower)
	if ven == "" {
		return "", false
	}
	base, ok := vendors[ven]
	if !ok {
		base = "PCI device"
	}
	if dev != "" {
		return base + " device 0x" + dev, true
	}
	return base, true
}

// ClassifyVendorHex returns the device class for a 4-digit PCI vendor id.
func ClassifyVendorHex(hex string) (string, bool) {
	label, ok := vendors[strings.ToLower(hex)]
	return label, ok
}

// parsePCIVenDev extracts the 4-hex-digit tokens after "ven_" and "dev_".
// A token that is short or not hex is treated as absent.
func parsePCIVenDev(lower string) (ven, dev string) {
	return hex4After(lower, "ven_"), hex4After(lower, "dev_")
}

func hex4After(s, marker string) string {
	i := strings.Index(s, marker)
	if i < 0 {
		return ""
	}
	start := i + len(marker)
	if len(s) < start+4 {
		return ""
	}
	tok := s[start : start+4]
	for _, c := range tok {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return ""
		}
	}
	return tok
}

// ClassifyBDF guesses the role of a PCI slot from its bus/device/function
// numbers as they appear in WHEA payloads. The guess is best effort.
func ClassifyBDF(bus, dev, fn string) (string, bool) {
	b, errB := strconv.Atoi(strings.TrimSpace(bus))
	d, errD := strconv.Atoi(strings.TrimSpace(dev))
	if errB != nil || errD != nil || b < 0 || d < 0 {
		return "", false
	}
	f, errF := strconv.Atoi(strings.TrimSpace(fn))
	funcZero := errF == nil && f == 0

	switch {
	case b == 1 && d == 0:
		return "Likely discrete GPU (PEG root path)", true
	case b >= 1 && d <= 3 && funcZero:
		return "Device on CPU PCIe lanes (GPU/NVMe)", true
	case d >= 16 && d <= 31:
		return "PCIe root/downstream port", true
	case funcZero && d <= 7:
		return "Onboard controller/device", true
	}
	return "", false
}
