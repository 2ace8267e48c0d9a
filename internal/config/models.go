package config

import (
	"path/filepath"
	"time"

	"github.com/muurk/softap/internal/netcfg"
	"github.com/muurk/softap/internal/netmode"
)

// Config represents the daemon configuration file.
type Config struct {
	Version     int         `yaml:"version"`
	AccessPoint AccessPoint `yaml:"access_point"`
	Server      Server      `yaml:"server"`
	Status      Status      `yaml:"status"`
	Discovery   Discovery   `yaml:"discovery"`
	Network     Network     `yaml:"network"`
	Logging     Logging     `yaml:"logging"`
}

// AccessPoint describes the setup network the device falls back to.
type AccessPoint struct {
	SSID           string `yaml:"ssid"`
	Passphrase     string `yaml:"passphrase"`
	StaticIP       string `yaml:"static_ip"`
	PrefixLen      int    `yaml:"prefix_len"`
	LANInterface   string `yaml:"lan_interface"` // AP-facing interface
	WANInterface   string `yaml:"wan_interface"` // uplink interface
	DHCPRangeStart string `yaml:"dhcp_range_start"`
	DHCPRangeEnd   string `yaml:"dhcp_range_end"`
	Channel        int    `yaml:"channel"`
	DNSRedirect    string `yaml:"dns_redirect,omitempty"` // empty disables the DNAT rule
}

// Server configures the provisioning HTTP endpoint.
type Server struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	PagePath    string        `yaml:"page_path"`    // static page served at /index.html
	ReadTimeout time.Duration `yaml:"read_timeout"` // bound on the single request read

	// ExitOnProvision stops the daemon after a successful join. When false
	// the daemon keeps the status API and mDNS running.
	ExitOnProvision bool `yaml:"exit_on_provision"`
}

// Status configures the read-only status API. Port 0 disables it.
type Status struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Discovery configures the mDNS advertisement.
type Discovery struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// Network configures how transitions are carried out on the host.
type Network struct {
	ConfigDir        string        `yaml:"config_dir"` // generated hostapd.conf and dnsmasq.conf
	StationInterface string        `yaml:"station_interface,omitempty"`
	CommandTimeout   time.Duration `yaml:"command_timeout"`
	RadioSettle      time.Duration `yaml:"radio_settle"`
	RadioOffDelay    time.Duration `yaml:"radio_off_delay"`
	SetupOnStart     bool          `yaml:"setup_on_start"` // bring the AP up before serving
	DryRun           bool          `yaml:"dry_run"`        // log commands instead of running them
}

// Logging configures the daemon logger.
type Logging struct {
	Level string `yaml:"level"`
}

// Default returns a Config carrying the stock device values.
func Default() *Config {
	return &Config{
		Version: 1,
		AccessPoint: AccessPoint{
			SSID:           "MySoftAP",
			Passphrase:     "mypassword",
			StaticIP:       "192.168.43.1",
			PrefixLen:      24,
			LANInterface:   "wlan1",
			WANInterface:   "wlan0",
			DHCPRangeStart: "192.168.43.2",
			DHCPRangeEnd:   "192.168.43.60",
			Channel:        6,
			DNSRedirect:    "114.114.114.114",
		},
		Server: Server{
			Host:            "",
			Port:            8080,
			PagePath:        "web/index.html",
			ReadTimeout:     10 * time.Second,
			ExitOnProvision: true,
		},
		Status: Status{
			Port: 8081,
		},
		Discovery: Discovery{
			Enabled:  true,
			Instance: "softap",
		},
		Network: Network{
			ConfigDir:      "/etc/softap",
			CommandTimeout: netcfg.DefaultCommandTimeout,
			RadioSettle:    3 * time.Second,
			RadioOffDelay:  1 * time.Second,
			SetupOnStart:   true,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// AccessPointConfig converts the access point section for the controller.
func (c *Config) AccessPointConfig() netmode.AccessPointConfig {
	ap := c.AccessPoint
	return netmode.AccessPointConfig{
		SSID:           ap.SSID,
		Passphrase:     ap.Passphrase,
		StaticIP:       ap.StaticIP,
		PrefixLen:      ap.PrefixLen,
		LANInterface:   ap.LANInterface,
		WANInterface:   ap.WANInterface,
		DHCPRangeStart: ap.DHCPRangeStart,
		DHCPRangeEnd:   ap.DHCPRangeEnd,
		Channel:        ap.Channel,
		DNSRedirect:    ap.DNSRedirect,
	}
}

// ShellConfig converts the network section for the shell configurator.
func (c *Config) ShellConfig() netcfg.Config {
	sc := netcfg.DefaultConfig()
	if c.Network.ConfigDir != "" {
		sc.Paths.HostapdConf = filepath.Join(c.Network.ConfigDir, "hostapd.conf")
		sc.Paths.DnsmasqConf = filepath.Join(c.Network.ConfigDir, "dnsmasq.conf")
	}
	sc.StationInterface = c.Network.StationInterface
	sc.RadioSettle = c.Network.RadioSettle
	sc.RadioOffDelay = c.Network.RadioOffDelay
	return sc
}
