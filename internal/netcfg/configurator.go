package netcfg

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/softap/internal/netmode"
)

// Paths locates generated files and kernel knobs.
type Paths struct {
	HostapdConf string
	DnsmasqConf string
}

// DefaultPaths returns the locations used on the stock device image.
func DefaultPaths() Paths {
	return Paths{
		HostapdConf: "/etc/softap/hostapd.conf",
		DnsmasqConf: "/etc/softap/dnsmasq.conf",
	}
}

// Tools names the external programs. Plain names are resolved from PATH.
type Tools struct {
	IP       string
	Iptables string
	Nmcli    string
	Hostapd  string
	Dnsmasq  string
	Killall  string
	Sysctl   string
}

// DefaultTools returns the program names looked up in PATH.
func DefaultTools() Tools {
	return Tools{
		IP:       "ip",
		Iptables: "iptables",
		Nmcli:    "nmcli",
		Hostapd:  "hostapd",
		Dnsmasq:  "dnsmasq",
		Killall:  "killall",
		Sysctl:   "sysctl",
	}
}

// Config holds the configuration for the shell configurator.
type Config struct {
	Paths Paths
	Tools Tools

	// StationInterface pins nmcli to one device when joining. Empty lets
	// NetworkManager choose.
	StationInterface string

	// RadioSettle is waited after each radio toggle and after a rescan.
	RadioSettle time.Duration
	// RadioOffDelay is waited between switching the radio off and on.
	RadioOffDelay time.Duration
}

// DefaultConfig returns a Config with the stock timings.
func DefaultConfig() Config {
	return Config{
		Paths:         DefaultPaths(),
		Tools:         DefaultTools(),
		RadioSettle:   3 * time.Second,
		RadioOffDelay: 1 * time.Second,
	}
}

// killallNoProcess is the killall exit code when nothing matched.
const killallNoProcess = 1

// Shell implements netmode.Configurator with standard Linux tools.
type Shell struct {
	config Config
	runner Runner
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewShell creates a configurator that runs commands through runner.
func NewShell(config Config, runner Runner, logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{
		config: config,
		runner: runner,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Apply performs the external actions for one stage.
func (s *Shell) Apply(ctx context.Context, action netmode.Action) error {
	s.logger.Debug("applying stage", zap.String("stage", string(action.Stage)))

	switch action.Stage {
	case netmode.StageWriteHostapdConfig,
		netmode.StageWriteDHCPConfig,
		netmode.StageInterfaceUp,
		netmode.StageAssignStaticIP,
		netmode.StageApplyNATRules,
		netmode.StageStartDHCPServer,
		netmode.StageRestartAccessPoint:
		if action.AccessPoint == nil {
			return fmt.Errorf("%s: %w", action.Stage, ErrMissingParameters)
		}
	case netmode.StageAssociate:
		if action.Station == nil {
			return fmt.Errorf("%s: %w", action.Stage, ErrMissingParameters)
		}
	}

	t := s.config.Tools
	ap := action.AccessPoint

	switch action.Stage {
	case netmode.StageWriteHostapdConfig:
		return s.writeRendered(action.Stage, s.config.Paths.HostapdConf, RenderHostapdConfig, *ap)

	case netmode.StageWriteDHCPConfig:
		return s.writeRendered(action.Stage, s.config.Paths.DnsmasqConf, RenderDnsmasqConfig, *ap)

	case netmode.StageStopDHCPServer:
		return s.run(ctx, action.Stage, Cmd(t.Killall, "dnsmasq"), killallNoProcess)

	case netmode.StageInterfaceUp:
		return s.run(ctx, action.Stage, Cmd(t.IP, "link", "set", ap.LANInterface, "up"))

	case netmode.StageAssignStaticIP:
		return s.runAll(ctx, action.Stage,
			Cmd(t.IP, "addr", "flush", "dev", ap.LANInterface),
			Cmd(t.IP, "addr", "add", fmt.Sprintf("%s/%d", ap.StaticIP, ap.PrefixLen), "dev", ap.LANInterface),
		)

	case netmode.StageEnableForwarding:
		return s.run(ctx, action.Stage, Cmd(t.Sysctl, "-w", "net.ipv4.ip_forward=1"))

	case netmode.StageFlushNATRules:
		return s.runAll(ctx, action.Stage,
			Cmd(t.Iptables, "--flush"),
			Cmd(t.Iptables, "--table", "nat", "--flush"),
			Cmd(t.Iptables, "--delete-chain"),
			Cmd(t.Iptables, "--table", "nat", "--delete-chain"),
		)

	case netmode.StageApplyNATRules:
		return s.runAll(ctx, action.Stage, natRules(t.Iptables, *ap)...)

	case netmode.StageStartDHCPServer:
		return s.run(ctx, action.Stage,
			Cmd(t.Dnsmasq, "-C", s.config.Paths.DnsmasqConf, "--interface="+ap.LANInterface))

	case netmode.StageRestartAccessPoint:
		if err := s.run(ctx, action.Stage, Cmd(t.Killall, "hostapd"), killallNoProcess); err != nil {
			return err
		}
		return s.run(ctx, action.Stage, Cmd(t.Hostapd, "-B", s.config.Paths.HostapdConf))

	case netmode.StageStopAccessPoint:
		return s.run(ctx, action.Stage, Cmd(t.Killall, "hostapd"), killallNoProcess)

	case netmode.StageRadioCycle:
		if err := s.run(ctx, action.Stage, Cmd(t.Nmcli, "radio", "wifi", "off")); err != nil {
			return err
		}
		if err := s.sleep(ctx, s.config.RadioOffDelay); err != nil {
			return err
		}
		if err := s.run(ctx, action.Stage, Cmd(t.Nmcli, "radio", "wifi", "on")); err != nil {
			return err
		}
		return s.sleep(ctx, s.config.RadioSettle)

	case netmode.StageRescan:
		err := s.run(ctx, action.Stage, Cmd(t.Nmcli, "device", "wifi", "rescan"))
		if sleepErr := s.sleep(ctx, s.config.RadioSettle); sleepErr != nil && err == nil {
			err = sleepErr
		}
		return err

	case netmode.StageAssociate:
		return s.run(ctx, action.Stage, associateCommand(t.Nmcli, *action.Station, s.config.StationInterface))

	default:
		return &UnsupportedStageError{Stage: action.Stage}
	}
}

// natRules returns the forwarding and masquerade rules between the AP-facing
// interface and the uplink. They are appended after a flush, so applying
// them twice never accumulates duplicates.
func natRules(iptables string, ap netmode.AccessPointConfig) []Command {
	rules := []Command{
		Cmd(iptables, "-A", "FORWARD", "-i", ap.WANInterface, "-o", ap.LANInterface,
			"-m", "state", "--state", "ESTABLISHED,RELATED", "-j", "ACCEPT"),
		Cmd(iptables, "-A", "FORWARD", "-i", ap.LANInterface, "-o", ap.WANInterface, "-j", "ACCEPT"),
		Cmd(iptables, "-t", "nat", "-A", "POSTROUTING", "-o", ap.WANInterface, "-j", "MASQUERADE"),
	}
	if ap.DNSRedirect != "" {
		rules = append(rules, Cmd(iptables, "-t", "nat", "-I", "PREROUTING", "-i", ap.LANInterface,
			"-p", "udp", "--dport", "53", "-j", "DNAT", "--to-destination", ap.DNSRedirect))
	}
	return rules
}

func associateCommand(nmcli string, creds netmode.StationCredentials, iface string) Command {
	args := []string{"device", "wifi", "connect", creds.SSID}
	var secret []int
	if creds.Passphrase != "" {
		args = append(args, "password", creds.Passphrase)
		secret = append(secret, len(args)-1)
	}
	if iface != "" {
		args = append(args, "ifname", iface)
	}
	return Command{Name: nmcli, Args: args, Secret: secret}
}

func (s *Shell) writeRendered(stage netmode.Stage, path string, render func(netmode.AccessPointConfig) ([]byte, error), ap netmode.AccessPointConfig) error {
	data, err := render(ap)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(path, data, 0600); err != nil {
		return &FileWriteError{Path: path, Err: err}
	}
	s.logger.Debug("wrote config file",
		zap.String("stage", string(stage)),
		zap.String("path", path),
		zap.Int("size", len(data)),
	)
	return nil
}

func (s *Shell) runAll(ctx context.Context, stage netmode.Stage, cmds ...Command) error {
	for _, cmd := range cmds {
		if err := s.run(ctx, stage, cmd); err != nil {
			return err
		}
	}
	return nil
}

// run executes cmd and treats exit code 0, plus any of okCodes, as success.
func (s *Shell) run(ctx context.Context, stage netmode.Stage, cmd Command, okCodes ...int) error {
	result, err := s.runner.Run(ctx, cmd)
	if err != nil {
		if IsTimeout(err) {
			return err
		}
		execErr := &ExecutionError{Stage: stage, Command: cmd.String(), ExitCode: -1, Err: err}
		if result != nil {
			execErr.Stderr = result.Stderr
		}
		return execErr
	}

	if result.ExitCode == 0 {
		return nil
	}
	for _, code := range okCodes {
		if result.ExitCode == code {
			s.logger.Debug("accepted non-zero exit",
				zap.String("stage", string(stage)),
				zap.String("command", cmd.String()),
				zap.Int("exit_code", result.ExitCode),
			)
			return nil
		}
	}

	return &ExecutionError{
		Stage:    stage,
		Command:  cmd.String(),
		ExitCode: result.ExitCode,
		Stderr:   result.Stderr,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
