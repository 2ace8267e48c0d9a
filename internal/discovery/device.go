package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device represents a discovered softap daemon on the network
type Device struct {
	// Instance is the mDNS service instance name (e.g., "softap-kitchen")
	Instance string

	// Hostname is the mDNS hostname (e.g., "raspberrypi.local.")
	Hostname string

	// IP is the advertised address, IPv4 preferred
	IP string

	// Port is the provisioning HTTP port (typically 8080)
	Port int

	// StatusPort is the status API port, 0 when the daemon has none
	StatusPort int

	// Path is the configuration page path (typically "/index.html")
	Path string

	// Version is the daemon version from the TXT record
	Version string

	// Metadata contains all mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("softap %s (%s) at %s", d.Instance, d.Hostname, net.JoinHostPort(d.IP, strconv.Itoa(d.Port)))
}

// BaseURL returns the provisioning endpoint URL
func (d *Device) BaseURL() string {
	return "http://" + net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// StatusURL returns the status API URL, or "" when the device has none
func (d *Device) StatusURL() string {
	if d.StatusPort == 0 {
		return ""
	}
	return "http://" + net.JoinHostPort(d.IP, strconv.Itoa(d.StatusPort))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
