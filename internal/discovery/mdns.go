package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type softap daemons advertise
	ServiceType = "_softap._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the provisioning port assumed when an entry has none
	DefaultPort = 8080
)

// TXT record keys.
const (
	TxtPath       = "path"
	TxtStatusPort = "status_port"
	TxtVersion    = "version"
)

// Scanner handles mDNS device discovery
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForDevices discovers every softap daemon that answers within the
// scanner timeout.
func (s *Scanner) ScanForDevices(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		devices []*Device
		seen    = make(map[string]bool)
	)
	err := s.browse(ctx, func(device *Device) bool {
		mu.Lock()
		defer mu.Unlock()
		if !seen[device.Instance] {
			seen[device.Instance] = true
			devices = append(devices, device)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return devices, nil
}

// WaitForDevice returns the first daemon seen whose instance name equals
// instance, or the first daemon at all when instance is empty.
func (s *Scanner) WaitForDevice(ctx context.Context, instance string) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Device, 1)
	err := s.browse(ctx, func(device *Device) bool {
		if instance != "" && device.Instance != instance {
			return true
		}
		select {
		case found <- device:
		default:
		}
		cancel()
		return false
	})
	if err != nil {
		return nil, err
	}

	select {
	case device := <-found:
		return device, nil
	case <-ctx.Done():
		select {
		case device := <-found:
			return device, nil
		default:
		}
		if instance == "" {
			return nil, fmt.Errorf("no softap device found within %s", s.Timeout)
		}
		return nil, fmt.Errorf("device %q not found within %s", instance, s.Timeout)
	}
}

// browse feeds parsed entries to fn until ctx ends or fn returns false.
func (s *Scanner) browse(ctx context.Context, fn func(*Device) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		accepting := true
		for entry := range entries {
			if !accepting {
				continue
			}
			if device := parseServiceEntry(entry); device != nil {
				accepting = fn(device)
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Device.
// Returns nil if the entry carries no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	if entry == nil {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := ParseTXT(entry.Text)

	device := &Device{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Path:         metadata[TxtPath],
		Version:      metadata[TxtVersion],
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
	if device.Path == "" {
		device.Path = "/index.html"
	}
	if sp, err := strconv.Atoi(metadata[TxtStatusPort]); err == nil && sp > 0 && sp <= 65535 {
		device.StatusPort = sp
	}
	return device
}

// ParseTXT parses "key=value" TXT strings. A key without "=" maps to "".
func ParseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		key, value, _ := strings.Cut(txt, "=")
		if key == "" {
			continue
		}
		metadata[key] = value
	}
	return metadata
}
