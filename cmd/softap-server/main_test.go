package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/softap/internal/config"
	"github.com/muurk/softap/internal/logging"
	"github.com/muurk/softap/internal/netmode"
)

// serveFlags returns a fresh command with the serve flags parsed from args.
func serveFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "serve"}
	registerServeFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v) error = %v", args, err)
	}
	return cmd
}

func TestApplyServeFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "no flags keeps config",
			check: func(t *testing.T, cfg *config.Config) {
				if *cfg != *config.Default() {
					t.Errorf("config changed without flags: %+v", cfg)
				}
			},
		},
		{
			name: "ports and page",
			args: []string{"--port", "9090", "--status-port", "0", "--page", "/srv/setup.html"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Server.Port != 9090 || cfg.Status.Port != 0 || cfg.Server.PagePath != "/srv/setup.html" {
					t.Errorf("server = %+v, status = %+v", cfg.Server, cfg.Status)
				}
			},
		},
		{
			name: "access point",
			args: []string{"--ssid", "Workshop", "--passphrase", "s3cretpass", "--lan", "wlan2", "--wan", "eth0"},
			check: func(t *testing.T, cfg *config.Config) {
				ap := cfg.AccessPoint
				if ap.SSID != "Workshop" || ap.Passphrase != "s3cretpass" || ap.LANInterface != "wlan2" || ap.WANInterface != "eth0" {
					t.Errorf("access point = %+v", ap)
				}
			},
		},
		{
			name: "booleans invert config",
			args: []string{"--dry-run", "--skip-setup", "--no-mdns", "--exit-on-provision=false"},
			check: func(t *testing.T, cfg *config.Config) {
				if !cfg.Network.DryRun || cfg.Network.SetupOnStart || cfg.Discovery.Enabled || cfg.Server.ExitOnProvision {
					t.Errorf("network = %+v, discovery = %+v, exit = %v", cfg.Network, cfg.Discovery, cfg.Server.ExitOnProvision)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			applyServeFlags(serveFlags(t, tt.args...), cfg)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := loadConfig(serveFlags(t, "--port", "9090"), applyServeFlags)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}

	// Overrides are validated like the file.
	_, err = loadConfig(serveFlags(t, "--passphrase", "short"), applyServeFlags)
	if err == nil {
		t.Error("loadConfig() with a short passphrase should fail validation")
	}
}

func TestRunInitConfig(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "softap", "config.yaml")
	forceWrite = false

	if err := runInitConfig(initConfigCmd, nil); err != nil {
		t.Fatalf("runInitConfig() error = %v", err)
	}
	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load() of written file error = %v", err)
	}
	if cfg.AccessPoint.SSID != config.Default().AccessPoint.SSID {
		t.Errorf("SSID = %q", cfg.AccessPoint.SSID)
	}

	err = runInitConfig(initConfigCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Errorf("second runInitConfig() error = %v, want refusal", err)
	}

	forceWrite = true
	defer func() { forceWrite = false }()
	if err := runInitConfig(initConfigCmd, nil); err != nil {
		t.Errorf("runInitConfig() with --force error = %v", err)
	}
}

func TestNewController_DryRun(t *testing.T) {
	cfg := config.Default()
	cfg.Network.DryRun = true
	cfg.Network.ConfigDir = t.TempDir()
	cfg.Network.RadioSettle = 0
	cfg.Network.RadioOffDelay = 0

	controller := newController(cfg, zap.NewNop())
	if controller.CurrentMode() != netmode.ModeAccessPoint {
		t.Errorf("CurrentMode() = %v, want access point", controller.CurrentMode())
	}

	if err := controller.EnterAccessPointMode(t.Context(), cfg.AccessPointConfig()); err != nil {
		t.Fatalf("EnterAccessPointMode() in dry run error = %v", err)
	}

	// Dry runs still render the config files.
	for _, name := range []string{"hostapd.conf", "dnsmasq.conf"} {
		if _, err := os.Stat(filepath.Join(cfg.Network.ConfigDir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestLogTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(zap.NewNop()) })

	events := make(chan netmode.Event, 3)
	events <- netmode.Event{Mode: netmode.ModeStation, Phase: netmode.PhaseStarted}
	events <- netmode.Event{Mode: netmode.ModeStation, Stage: netmode.StageStopAccessPoint, Phase: netmode.PhaseStep}
	events <- netmode.Event{Mode: netmode.ModeStation, Stage: netmode.StageAssociate, Phase: netmode.PhaseFailed, Error: "exit status 4"}
	close(events)

	logTransitions(events)

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("logged %d entries, want 3", len(entries))
	}
	failed := entries[2]
	if failed.Level != zapcore.WarnLevel {
		t.Errorf("failed stage level = %v, want warn", failed.Level)
	}
	fields := failed.ContextMap()
	if fields["stage"] != "associate" || fields["phase"] != "failed" || fields["mode"] != "station" {
		t.Errorf("failed stage fields = %v", fields)
	}
	if fields["error"] != "exit status 4" {
		t.Errorf("error field = %v, want exit status 4", fields["error"])
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Errorf("started level = %v, want debug", entries[0].Level)
	}
}
