package sensor

import "strings"

// UnknownDeviceType is reported for devices drawn with the agent's
// placeholder icon.
const UnknownDeviceType = "UNKNOWN"

// DeviceType derives a coarse device type from a main device's icon
// reference: "images_icon/nvidia.png" -> "NVIDIA". The placeholder icon
// "transparent.*" maps to UnknownDeviceType and a reference without '/'
// yields "".
func DeviceType(imageURL string) string {
	_, rest, found := strings.Cut(imageURL, "/")
	if !found {
		return ""
	}
	segment, _, _ := strings.Cut(rest, "/")
	tag, _, _ := strings.Cut(segment, ".")
	if tag == "transparent" {
		return UnknownDeviceType
	}
	return strings.ToUpper(tag)
}

// deviceIdentityMap maps device type prefixes to friendly component names.
var deviceIdentityMap = []struct {
	prefix string
	name   string
}{
	{"AMDCPU", "CPU (AMD)"},
	{"INTELCPU", "CPU (Intel)"},
	{"CPU", "CPU"},
	{"NVIDIA", "GPU (NVIDIA)"},
	{"ATI", "GPU (AMD)"},
	{"AMDGPU", "GPU (AMD)"},
	{"INTELGPU", "GPU (Intel)"},
	{"MAINBOARD", "Motherboard"},
	{"CHIP", "Motherboard"},
	{"SUPERIO", "Motherboard"},
	{"HDD", "HDD/SSD"},
	{"NVME", "NVMe SSD"},
	{"STORAGE", "HDD/SSD"},
	{"RAM", "Memory"},
	{"NIC", "Network"},
	{"NETWORK", "Network"},
	{"BATTERY", "Battery"},
	{"PSU", "Power Supply"},
	{"COOLER", "Cooler"},
	{"FAN", "Fan Controller"},
	{"EMBEDDEDCONTROLLER", "Embedded Controller"},
	{"COMPUTER", "Computer"},
}

// FriendlyName returns a human-readable component name for a device type.
func FriendlyName(deviceType string) string {
	upper := strings.ToUpper(deviceType)
	for _, entry := range deviceIdentityMap {
		if strings.HasPrefix(upper, entry.prefix) {
			return entry.name
		}
	}
	return "Device"
}
