package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/softap/internal/config"
	"github.com/muurk/softap/internal/discovery"
	"github.com/muurk/softap/internal/logging"
	"github.com/muurk/softap/internal/netcfg"
	"github.com/muurk/softap/internal/netmode"
	"github.com/muurk/softap/internal/server"
	"github.com/muurk/softap/internal/statusapi"
	"github.com/muurk/softap/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Serve command flags. Each one only overrides the config file when set.
var (
	serveHost       string
	servePort       int
	servePage       string
	statusPort      int
	apSSID          string
	apPassphrase    string
	lanInterface    string
	wanInterface    string
	dryRun          bool
	skipSetup       bool
	noMDNS          bool
	exitOnProvision bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the provisioning daemon",
	Long: `Bring up the setup access point and serve the configuration page.

The daemon accepts one request at a time on the provisioning port:

  GET  /index.html   the configuration page
  POST /save         {"ssid":"...","password":"..."}

A successful join ends the daemon (exit status 0) unless exit_on_provision
is false. A failed join restores the access point and keeps serving.

A read-only status API (GET /status, websocket /status/ws) runs on a second
port, and the service is announced over mDNS as _softap._tcp.`,
	Example: `  # Run with /etc/softap/config.yaml
  softap-server serve

  # Print the commands instead of running them
  softap-server serve --dry-run --log-level debug

  # Custom access point and port
  softap-server serve --ssid Workshop --passphrase s3cretpass --port 9090

  # Leave the network alone at startup (access point already up)
  softap-server serve --skip-setup`,
	RunE: runServe,
}

func init() {
	registerServeFlags(serveCmd)
}

func registerServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&serveHost, "host", "", "Provisioning listen address (empty = all interfaces)")
	f.IntVar(&servePort, "port", 0, "Provisioning port (default from config, 8080)")
	f.StringVar(&servePage, "page", "", "Configuration page served at /index.html")
	f.IntVar(&statusPort, "status-port", 0, "Status API port (0 disables)")
	f.StringVar(&apSSID, "ssid", "", "Access point SSID")
	f.StringVar(&apPassphrase, "passphrase", "", "Access point WPA2 passphrase")
	f.StringVar(&lanInterface, "lan", "", "Access point interface")
	f.StringVar(&wanInterface, "wan", "", "Uplink interface")
	f.BoolVar(&dryRun, "dry-run", false, "Log network commands instead of running them")
	f.BoolVar(&skipSetup, "skip-setup", false, "Do not bring up the access point at startup")
	f.BoolVar(&noMDNS, "no-mdns", false, "Do not advertise over mDNS")
	f.BoolVar(&exitOnProvision, "exit-on-provision", true, "Exit after a successful join")
}

// applyServeFlags copies explicitly set flags over the loaded config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = serveHost
	}
	if flags.Changed("port") {
		cfg.Server.Port = servePort
	}
	if flags.Changed("page") {
		cfg.Server.PagePath = servePage
	}
	if flags.Changed("status-port") {
		cfg.Status.Port = statusPort
	}
	if flags.Changed("ssid") {
		cfg.AccessPoint.SSID = apSSID
	}
	if flags.Changed("passphrase") {
		cfg.AccessPoint.Passphrase = apPassphrase
	}
	if flags.Changed("lan") {
		cfg.AccessPoint.LANInterface = lanInterface
	}
	if flags.Changed("wan") {
		cfg.AccessPoint.WANInterface = wanInterface
	}
	if flags.Changed("dry-run") {
		cfg.Network.DryRun = dryRun
	}
	if flags.Changed("skip-setup") {
		cfg.Network.SetupOnStart = !skipSetup
	}
	if flags.Changed("no-mdns") {
		cfg.Discovery.Enabled = !noMDNS
	}
	if flags.Changed("exit-on-provision") {
		cfg.Server.ExitOnProvision = exitOnProvision
	}
}

// loadConfig reads the config file, applies flag overrides and validates
// the result.
func loadConfig(cmd *cobra.Command, overrides func(*cobra.Command, *config.Config)) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		overrides(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// initLogging starts the global logger at the --log-level flag, falling back
// to the config file level.
func initLogging(cfg *config.Config) error {
	level := logLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	return logging.Initialize(level)
}

// newController wires the mode controller to the host, or to a logging
// stand-in for dry runs.
func newController(cfg *config.Config, logger *zap.Logger) *netmode.Controller {
	var runner netcfg.Runner
	if cfg.Network.DryRun {
		runner = netcfg.NewLogRunner(logger.Named("dry-run"))
	} else {
		runner = netcfg.NewExecRunner(cfg.Network.CommandTimeout, logger.Named("exec"))
	}

	shell := netcfg.NewShell(cfg.ShellConfig(), runner, logger.Named("netcfg"))
	return netmode.NewController(shell, logger.Named("netmode"))
}

// logTransitions writes every controller event to the log until events is
// closed.
func logTransitions(events <-chan netmode.Event) {
	for ev := range events {
		var err error
		if ev.Error != "" {
			err = errors.New(ev.Error)
		}
		logging.LogTransition(ev.Mode.String(), string(ev.Stage), string(ev.Phase), err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, applyServeFlags)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}
	defer logging.Sync()
	logger := logging.GetLogger()

	logging.Info("Starting softap-server",
		zap.String("version", version.Version),
		zap.String("config", configPath),
		zap.Stringer("access_point", cfg.AccessPointConfig()),
		zap.Bool("dry_run", cfg.Network.DryRun),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := newController(cfg, logger)

	events, unsubscribe := controller.Subscribe()
	defer unsubscribe()
	go logTransitions(events)

	if cfg.Network.SetupOnStart {
		// The router still starts on failure: the page may be reachable on
		// another interface, and a later save retries the AP as fallback.
		if err := controller.EnterAccessPointMode(ctx, cfg.AccessPointConfig()); err != nil {
			logging.Error("Access point setup failed", zap.Error(err))
		}
	}

	srv := server.New(&server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		PagePath:    cfg.Server.PagePath,
		ReadTimeout: cfg.Server.ReadTimeout,
		Fallback:    cfg.AccessPointConfig(),
	}, controller)
	if err := srv.Start(); err != nil {
		return err
	}

	if cfg.Status.Port > 0 {
		api := statusapi.New(&statusapi.Config{
			Host:    cfg.Status.Host,
			Port:    cfg.Status.Port,
			Version: version.Version,
		}, controller, logger.Named("status"))
		if err := api.Start(); err != nil {
			return fmt.Errorf("failed to start status API: %w", err)
		}
		go func() {
			if err := api.Serve(); err != nil {
				logging.Error("Status API stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = api.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Discovery.Enabled {
		advertiser, err := discovery.Advertise(discovery.Advertisement{
			Instance:   cfg.Discovery.Instance,
			Port:       cfg.Server.Port,
			StatusPort: cfg.Status.Port,
			Path:       "/index.html",
			Version:    version.Version,
			Interfaces: []string{cfg.AccessPoint.LANInterface},
		}, logger.Named("mdns"))
		if err != nil {
			logging.Warn("mDNS advertisement disabled", zap.Error(err))
		} else {
			defer advertiser.Shutdown()
		}
	}

	outcome, err := srv.Serve(ctx)
	if err != nil {
		return fmt.Errorf("provisioning server stopped: %w", err)
	}

	if outcome == server.OutcomeProvisioned && !cfg.Server.ExitOnProvision {
		logging.Info("Joined network; status API stays up until signalled")
		<-ctx.Done()
	}

	logging.Info("Shutting down", zap.Stringer("outcome", outcome))
	return nil
}
