package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError collects every problem found in a configuration.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n", len(e.Problems)))
	for i, err := range e.Problems {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Validate checks the configuration. It returns a *ValidationError listing
// all problems, or nil.
func (c *Config) Validate() error {
	var problems []error

	ap := c.AccessPoint
	if err := ValidateSSID(ap.SSID); err != nil {
		problems = append(problems, fmt.Errorf("access_point.ssid: %w", err))
	}
	if err := ValidatePassphrase(ap.Passphrase); err != nil {
		problems = append(problems, fmt.Errorf("access_point.passphrase: %w", err))
	}

	for _, field := range []struct{ name, addr string }{
		{"access_point.static_ip", ap.StaticIP},
		{"access_point.dhcp_range_start", ap.DHCPRangeStart},
		{"access_point.dhcp_range_end", ap.DHCPRangeEnd},
	} {
		if err := validateIPv4(field.addr); err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", field.name, err))
		}
	}
	if ap.DNSRedirect != "" {
		if err := validateIPv4(ap.DNSRedirect); err != nil {
			problems = append(problems, fmt.Errorf("access_point.dns_redirect: %w", err))
		}
	}
	if ap.PrefixLen < 1 || ap.PrefixLen > 30 {
		problems = append(problems, fmt.Errorf("access_point.prefix_len: must be 1-30, got %d", ap.PrefixLen))
	}
	if ap.Channel < 1 || ap.Channel > 14 {
		problems = append(problems, fmt.Errorf("access_point.channel: must be 1-14, got %d", ap.Channel))
	}
	if ap.LANInterface == "" {
		problems = append(problems, fmt.Errorf("access_point.lan_interface: cannot be empty"))
	}
	if ap.WANInterface == "" {
		problems = append(problems, fmt.Errorf("access_point.wan_interface: cannot be empty"))
	}
	if ap.LANInterface != "" && ap.LANInterface == ap.WANInterface {
		problems = append(problems, fmt.Errorf("access_point: lan_interface and wan_interface must differ"))
	}

	if err := ValidatePort(c.Server.Port); err != nil {
		problems = append(problems, fmt.Errorf("server.port: %w", err))
	}
	if c.Server.PagePath == "" {
		problems = append(problems, fmt.Errorf("server.page_path: cannot be empty"))
	}
	if c.Server.ReadTimeout < 0 {
		problems = append(problems, fmt.Errorf("server.read_timeout: cannot be negative"))
	}

	if c.Status.Port != 0 {
		if err := ValidatePort(c.Status.Port); err != nil {
			problems = append(problems, fmt.Errorf("status.port: %w", err))
		} else if c.Status.Port == c.Server.Port {
			problems = append(problems, fmt.Errorf("status.port: must differ from server.port"))
		}
	}

	if c.Discovery.Enabled && c.Discovery.Instance == "" {
		problems = append(problems, fmt.Errorf("discovery.instance: cannot be empty when discovery is enabled"))
	}

	if c.Network.CommandTimeout < 0 {
		problems = append(problems, fmt.Errorf("network.command_timeout: cannot be negative"))
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// ValidateSSID validates a WiFi SSID.
// SSIDs must be non-empty and <= 32 bytes (802.11 limit).
func ValidateSSID(ssid string) error {
	if ssid == "" {
		return fmt.Errorf("SSID cannot be empty")
	}
	if len(ssid) > 32 {
		return fmt.Errorf("SSID too long (max 32 bytes): %d bytes", len(ssid))
	}
	return nil
}

// ValidatePassphrase validates a WPA2 passphrase: 8-63 characters.
func ValidatePassphrase(passphrase string) error {
	if len(passphrase) < 8 {
		return fmt.Errorf("WPA2 passphrase too short (min 8 chars): %d chars", len(passphrase))
	}
	if len(passphrase) > 63 {
		return fmt.Errorf("WPA2 passphrase too long (max 63 chars): %d chars", len(passphrase))
	}
	return nil
}

// ValidatePort validates a TCP port number.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", port)
	}
	return nil
}

func validateIPv4(addr string) error {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("invalid IPv4 address %q", addr)
	}
	return nil
}
