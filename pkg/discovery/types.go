// Package discovery finds Kasa smart plugs and power strips on the local
// network so rigs can be mapped to outlets.
package discovery

import (
	"time"
)

// DiscoveredDevice contains information about a discovered Kasa device.
type DiscoveredDevice struct {
	// IP is the device's IP address.
	IP string

	// Alias is the user-assigned device name.
	Alias string

	// Model is the hardware model (e.g., "HS300(US)").
	Model string

	// MAC is the device's MAC address.
	MAC string

	// DeviceID is the cloud device id; child plug ids are prefixed with it.
	DeviceID string

	// SoftwareVersion is the firmware version string.
	SoftwareVersion string

	// RelayOn is the relay state of a single-outlet device.
	RelayOn bool

	// Plugs lists the child outlets of a power strip, in index order.
	Plugs []DiscoveredPlug

	// DiscoveredAt is when the device was discovered.
	DiscoveredAt time.Time
}

// IsStrip reports whether the device has child outlets.
func (d *DiscoveredDevice) IsStrip() bool {
	return len(d.Plugs) > 0
}

// DiscoveredPlug is one outlet of a power strip. Index and Alias are the
// values accepted by smart_strip_plug_number and smart_strip_plug_name.
type DiscoveredPlug struct {
	Index int
	Alias string
	On    bool
}

// ScanResult contains the results of a network scan.
type ScanResult struct {
	// Devices is the list of discovered devices, ordered by IP.
	Devices []DiscoveredDevice

	// Errors contains errors encountered during scanning, keyed by IP.
	Errors map[string]error

	// Duration is how long the scan took.
	Duration time.Duration

	// ScannedIPs is the number of IPs that were scanned.
	ScannedIPs int

	// ResponsiveHosts is the number of hosts that responded on the target port.
	ResponsiveHosts int
}

// ScanOptions configures network scanning behavior.
type ScanOptions struct {
	// Timeout is the timeout for each host scan (default: 2s).
	Timeout time.Duration

	// Concurrency is the maximum number of concurrent scans (default: 64).
	Concurrency int

	// Port is the Kasa TCP port (default: 9999).
	Port int
}

// DefaultScanOptions returns the default scan options.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Timeout:     2 * time.Second,
		Concurrency: 64,
		Port:        9999,
	}
}
