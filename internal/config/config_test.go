package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Version != 1 {
		t.Errorf("Version = %v, want 1", cfg.Version)
	}
	if cfg.AccessPoint.SSID != "MySoftAP" {
		t.Errorf("AccessPoint.SSID = %q, want MySoftAP", cfg.AccessPoint.SSID)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Status.Port != 8081 {
		t.Errorf("Status.Port = %d, want 8081", cfg.Status.Port)
	}
	if !cfg.Server.ExitOnProvision {
		t.Error("Server.ExitOnProvision should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AccessPoint.StaticIP != "192.168.43.1" {
		t.Errorf("StaticIP = %q, want default", cfg.AccessPoint.StaticIP)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `version: 1
access_point:
  ssid: Workshop
  lan_interface: wlp2s0
server:
  port: 9090
  read_timeout: 2s
network:
  dry_run: true
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AccessPoint.SSID != "Workshop" {
		t.Errorf("SSID = %q, want Workshop", cfg.AccessPoint.SSID)
	}
	if cfg.AccessPoint.LANInterface != "wlp2s0" {
		t.Errorf("LANInterface = %q, want wlp2s0", cfg.AccessPoint.LANInterface)
	}
	// Untouched fields keep their defaults.
	if cfg.AccessPoint.Passphrase != "mypassword" {
		t.Errorf("Passphrase = %q, want default", cfg.AccessPoint.Passphrase)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 2*time.Second {
		t.Errorf("ReadTimeout = %s, want 2s", cfg.Server.ReadTimeout)
	}
	if !cfg.Network.DryRun {
		t.Error("DryRun = false, want true")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "bad yaml",
			data:    "access_point: [",
			wantErr: "failed to parse",
		},
		{
			name:    "wrong version",
			data:    "version: 2\n",
			wantErr: "unsupported config version",
		},
		{
			name:    "invalid values",
			data:    "version: 1\naccess_point:\n  passphrase: short\n",
			wantErr: "access_point.passphrase",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty ssid", func(c *Config) { c.AccessPoint.SSID = "" }, "access_point.ssid"},
		{"long ssid", func(c *Config) { c.AccessPoint.SSID = strings.Repeat("x", 33) }, "too long"},
		{"long passphrase", func(c *Config) { c.AccessPoint.Passphrase = strings.Repeat("x", 64) }, "too long"},
		{"bad static ip", func(c *Config) { c.AccessPoint.StaticIP = "192.168.43" }, "access_point.static_ip"},
		{"ipv6 static ip", func(c *Config) { c.AccessPoint.StaticIP = "fe80::1" }, "invalid IPv4"},
		{"bad dns redirect", func(c *Config) { c.AccessPoint.DNSRedirect = "dns.example" }, "dns_redirect"},
		{"bad prefix", func(c *Config) { c.AccessPoint.PrefixLen = 31 }, "prefix_len"},
		{"bad channel", func(c *Config) { c.AccessPoint.Channel = 0 }, "channel"},
		{"same interfaces", func(c *Config) { c.AccessPoint.WANInterface = c.AccessPoint.LANInterface }, "must differ"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"status port clash", func(c *Config) { c.Status.Port = c.Server.Port }, "status.port"},
		{"no page", func(c *Config) { c.Server.PagePath = "" }, "page_path"},
		{"no instance", func(c *Config) { c.Discovery.Instance = "" }, "discovery.instance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Validate() error type = %T, want *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStatusDisabled(t *testing.T) {
	cfg := Default()
	cfg.Status.Port = 0
	cfg.Discovery.Enabled = false
	cfg.Discovery.Instance = ""
	cfg.AccessPoint.DNSRedirect = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg := Default()
	cfg.AccessPoint.SSID = "Saved"
	cfg.Network.CommandTimeout = 45 * time.Second

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %o, want 600", info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# softap daemon configuration") {
		t.Errorf("saved file is missing its header:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.AccessPoint.SSID != "Saved" {
		t.Errorf("SSID = %q, want Saved", loaded.AccessPoint.SSID)
	}
	if loaded.Network.CommandTimeout != 45*time.Second {
		t.Errorf("CommandTimeout = %s, want 45s", loaded.Network.CommandTimeout)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.AccessPoint.SSID = ""

	if err := cfg.Save(path); err == nil {
		t.Fatal("Save() error = nil, want error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid config should not be written")
	}
}

func TestAccessPointConfig(t *testing.T) {
	cfg := Default()
	ap := cfg.AccessPointConfig()

	if ap.SSID != "MySoftAP" || ap.StaticIP != "192.168.43.1" || ap.PrefixLen != 24 {
		t.Errorf("AccessPointConfig() = %+v", ap)
	}
	if ap.LANInterface != "wlan1" || ap.WANInterface != "wlan0" {
		t.Errorf("interfaces = %s/%s, want wlan1/wlan0", ap.LANInterface, ap.WANInterface)
	}
	if ap.DNSRedirect != "114.114.114.114" {
		t.Errorf("DNSRedirect = %q", ap.DNSRedirect)
	}
}

func TestShellConfig(t *testing.T) {
	cfg := Default()
	cfg.Network.ConfigDir = "/run/softap"
	cfg.Network.StationInterface = "wlan0"

	sc := cfg.ShellConfig()
	if sc.Paths.HostapdConf != "/run/softap/hostapd.conf" {
		t.Errorf("HostapdConf = %q", sc.Paths.HostapdConf)
	}
	if sc.Paths.DnsmasqConf != "/run/softap/dnsmasq.conf" {
		t.Errorf("DnsmasqConf = %q", sc.Paths.DnsmasqConf)
	}
	if sc.StationInterface != "wlan0" {
		t.Errorf("StationInterface = %q", sc.StationInterface)
	}
	if sc.RadioSettle != cfg.Network.RadioSettle {
		t.Errorf("RadioSettle = %s, want %s", sc.RadioSettle, cfg.Network.RadioSettle)
	}
}
