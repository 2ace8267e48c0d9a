package netcfg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/softap/internal/netmode"
)

// fakeRunner records commands and returns scripted exit codes.
type fakeRunner struct {
	commands []Command
	// exitCodes maps a command line prefix to the exit code it returns
	exitCodes map[string]int
	// errs maps a command line prefix to an error returned by Run
	errs map[string]error
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	f.commands = append(f.commands, cmd)
	line := cmd.String()
	for prefix, err := range f.errs {
		if strings.HasPrefix(line, prefix) {
			return &Result{ExitCode: -1}, err
		}
	}
	for prefix, code := range f.exitCodes {
		if strings.HasPrefix(line, prefix) {
			return &Result{ExitCode: code, Stderr: "scripted failure"}, nil
		}
	}
	return &Result{}, nil
}

func (f *fakeRunner) lines() []string {
	out := make([]string, len(f.commands))
	for i, c := range f.commands {
		out[i] = c.String()
	}
	return out
}

func testAccessPoint() *netmode.AccessPointConfig {
	return &netmode.AccessPointConfig{
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
	}
}

func newTestShell(t *testing.T, runner Runner) *Shell {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Paths.HostapdConf = filepath.Join(dir, "hostapd.conf")
	cfg.Paths.DnsmasqConf = filepath.Join(dir, "dnsmasq.conf")
	cfg.RadioSettle = 0
	cfg.RadioOffDelay = 0
	return NewShell(cfg, runner, zap.NewNop())
}

func TestShellAccessPointPlanCommands(t *testing.T) {
	runner := &fakeRunner{}
	shell := newTestShell(t, runner)
	ap := testAccessPoint()

	for _, stage := range netmode.AccessPointPlan {
		if err := shell.Apply(context.Background(), netmode.Action{Stage: stage, AccessPoint: ap}); err != nil {
			t.Fatalf("Apply(%s) error = %v", stage, err)
		}
	}

	want := []string{
		"killall dnsmasq",
		"ip link set wlan1 up",
		"ip addr flush dev wlan1",
		"ip addr add 192.168.43.1/24 dev wlan1",
		"sysctl -w net.ipv4.ip_forward=1",
		"iptables --flush",
		"iptables --table nat --flush",
		"iptables --delete-chain",
		"iptables --table nat --delete-chain",
		"iptables -A FORWARD -i wlan0 -o wlan1 -m state --state ESTABLISHED,RELATED -j ACCEPT",
		"iptables -A FORWARD -i wlan1 -o wlan0 -j ACCEPT",
		"iptables -t nat -A POSTROUTING -o wlan0 -j MASQUERADE",
		"iptables -t nat -I PREROUTING -i wlan1 -p udp --dport 53 -j DNAT --to-destination 114.114.114.114",
		"dnsmasq -C " + shell.config.Paths.DnsmasqConf + " --interface=wlan1",
		"killall hostapd",
		"hostapd -B " + shell.config.Paths.HostapdConf,
	}

	got := runner.lines()
	if len(got) != len(want) {
		t.Fatalf("ran %d commands, want %d:\n%s", len(got), len(want), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, got[i], want[i])
		}
	}

	hostapd, err := os.ReadFile(shell.config.Paths.HostapdConf)
	if err != nil {
		t.Fatalf("hostapd config not written: %v", err)
	}
	if !strings.Contains(string(hostapd), "ssid=MySoftAP\n") {
		t.Errorf("hostapd config missing ssid:\n%s", hostapd)
	}

	if _, err := os.Stat(shell.config.Paths.DnsmasqConf); err != nil {
		t.Errorf("dnsmasq config not written: %v", err)
	}
}

func TestShellNoDNSRedirect(t *testing.T) {
	runner := &fakeRunner{}
	shell := newTestShell(t, runner)
	ap := testAccessPoint()
	ap.DNSRedirect = ""

	if err := shell.Apply(context.Background(), netmode.Action{Stage: netmode.StageApplyNATRules, AccessPoint: ap}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	for _, line := range runner.lines() {
		if strings.Contains(line, "DNAT") {
			t.Errorf("unexpected DNAT rule %q", line)
		}
	}
	if len(runner.commands) != 3 {
		t.Errorf("ran %d rules, want 3", len(runner.commands))
	}
}

func TestShellStationPlanCommands(t *testing.T) {
	runner := &fakeRunner{}
	shell := newTestShell(t, runner)
	creds := &netmode.StationCredentials{SSID: "HomeNet", Passphrase: "hunter22"}

	for _, stage := range netmode.StationPlan {
		if err := shell.Apply(context.Background(), netmode.Action{Stage: stage, Station: creds}); err != nil {
			t.Fatalf("Apply(%s) error = %v", stage, err)
		}
	}

	want := []string{
		"killall hostapd",
		"killall dnsmasq",
		"nmcli radio wifi off",
		"nmcli radio wifi on",
		"nmcli device wifi rescan",
		"nmcli device wifi connect HomeNet password <redacted>",
	}
	got := runner.lines()
	if len(got) != len(want) {
		t.Fatalf("ran %d commands, want %d:\n%s", len(got), len(want), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, got[i], want[i])
		}
	}

	// The real argument vector still carries the passphrase.
	last := runner.commands[len(runner.commands)-1]
	if last.Args[len(last.Args)-1] != "hunter22" {
		t.Errorf("passphrase argument = %q, want hunter22", last.Args[len(last.Args)-1])
	}
}

func TestShellAssociateOpenNetwork(t *testing.T) {
	runner := &fakeRunner{}
	shell := newTestShell(t, runner)
	shell.config.StationInterface = "wlan0"

	creds := &netmode.StationCredentials{SSID: "Cafe"}
	if err := shell.Apply(context.Background(), netmode.Action{Stage: netmode.StageAssociate, Station: creds}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	got := runner.lines()[0]
	if got != "nmcli device wifi connect Cafe ifname wlan0" {
		t.Errorf("command = %q", got)
	}
}

func TestShellKillallNothingRunning(t *testing.T) {
	runner := &fakeRunner{exitCodes: map[string]int{"killall": 1}}
	shell := newTestShell(t, runner)

	if err := shell.Apply(context.Background(), netmode.Action{Stage: netmode.StageStopDHCPServer}); err != nil {
		t.Errorf("exit code 1 from killall should be accepted, got %v", err)
	}
}

func TestShellCommandFailure(t *testing.T) {
	tests := []struct {
		name     string
		runner   *fakeRunner
		stage    netmode.Stage
		wantCode int
	}{
		{
			name:     "ip link fails",
			runner:   &fakeRunner{exitCodes: map[string]int{"ip link": 2}},
			stage:    netmode.StageInterfaceUp,
			wantCode: 2,
		},
		{
			name:     "killall other failure",
			runner:   &fakeRunner{exitCodes: map[string]int{"killall": 3}},
			stage:    netmode.StageRestartAccessPoint,
			wantCode: 3,
		},
		{
			name:     "nmcli cannot start",
			runner:   &fakeRunner{errs: map[string]error{"nmcli": errors.New("executable file not found")}},
			stage:    netmode.StageRadioCycle,
			wantCode: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shell := newTestShell(t, tt.runner)
			err := shell.Apply(context.Background(), netmode.Action{Stage: tt.stage, AccessPoint: testAccessPoint()})
			if err == nil {
				t.Fatal("Apply() error = nil, want error")
			}

			var execErr *ExecutionError
			if !errors.As(err, &execErr) {
				t.Fatalf("error type = %T, want *ExecutionError", err)
			}
			if execErr.Stage != tt.stage {
				t.Errorf("Stage = %s, want %s", execErr.Stage, tt.stage)
			}
			if ExitCode(err) != tt.wantCode {
				t.Errorf("ExitCode() = %d, want %d", ExitCode(err), tt.wantCode)
			}
		})
	}
}

func TestShellAssociateFailureRedactsPassphrase(t *testing.T) {
	runner := &fakeRunner{exitCodes: map[string]int{"nmcli device wifi connect": 4}}
	shell := newTestShell(t, runner)

	creds := &netmode.StationCredentials{SSID: "HomeNet", Passphrase: "hunter22"}
	err := shell.Apply(context.Background(), netmode.Action{Stage: netmode.StageAssociate, Station: creds})
	if err == nil {
		t.Fatal("Apply() error = nil, want error")
	}
	if strings.Contains(err.Error(), "hunter22") {
		t.Errorf("error leaks passphrase: %v", err)
	}
}

func TestShellMissingParameters(t *testing.T) {
	shell := newTestShell(t, &fakeRunner{})

	err := shell.Apply(context.Background(), netmode.Action{Stage: netmode.StageWriteHostapdConfig})
	if !errors.Is(err, ErrMissingParameters) {
		t.Errorf("AP stage without config: error = %v, want ErrMissingParameters", err)
	}

	err = shell.Apply(context.Background(), netmode.Action{Stage: netmode.StageAssociate})
	if !errors.Is(err, ErrMissingParameters) {
		t.Errorf("associate without credentials: error = %v, want ErrMissingParameters", err)
	}
}

func TestShellUnsupportedStage(t *testing.T) {
	shell := newTestShell(t, &fakeRunner{})

	err := shell.Apply(context.Background(), netmode.Action{Stage: "reticulate-splines"})
	var unsupported *UnsupportedStageError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v, want *UnsupportedStageError", err)
	}
}

func TestShellRadioCycleHonorsContext(t *testing.T) {
	runner := &fakeRunner{}
	shell := newTestShell(t, runner)
	shell.config.RadioOffDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := shell.Apply(ctx, netmode.Action{Stage: netmode.StageRadioCycle})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(runner.commands) != 1 {
		t.Errorf("ran %d commands, want only the radio off", len(runner.commands))
	}
}

func TestShellWithController(t *testing.T) {
	runner := &fakeRunner{exitCodes: map[string]int{"nmcli device wifi connect": 10}}
	shell := newTestShell(t, runner)
	controller := netmode.NewController(shell, zap.NewNop())

	result := controller.Provision(context.Background(),
		netmode.StationCredentials{SSID: "HomeNet", Passphrase: "hunter22"},
		*testAccessPoint(),
	)

	if result.Joined {
		t.Fatal("Joined = true, want false")
	}
	if stage, ok := netmode.FailedStage(result.StationErr); !ok || stage != netmode.StageAssociate {
		t.Errorf("failed stage = %s, want %s", stage, netmode.StageAssociate)
	}
	if result.FallbackErr != nil {
		t.Errorf("FallbackErr = %v, want nil", result.FallbackErr)
	}
	if controller.CurrentMode() != netmode.ModeAccessPoint {
		t.Errorf("mode = %s, want access-point", controller.CurrentMode())
	}
}
