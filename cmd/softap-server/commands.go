package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/softap/internal/config"
	"github.com/muurk/softap/internal/logging"
	"github.com/muurk/softap/internal/netmode"
)

var (
	apDryRun   bool
	forceWrite bool
)

var accessPointCmd = &cobra.Command{
	Use:   "ap",
	Short: "Bring the access point up once and exit",
	Long: `Run the access point plan once with the configured settings, then exit.

Useful for recovering a device by hand, or for checking the generated
hostapd and dnsmasq configuration with --dry-run. Every stage is idempotent,
so running it on a device that is already an access point is safe.`,
	Example: `  # Show what would be run
  softap-server ap --dry-run --log-level debug

  # Restore the access point
  sudo softap-server ap`,
	RunE: runAccessPoint,
}

func init() {
	accessPointCmd.Flags().BoolVar(&apDryRun, "dry-run", false, "Log network commands instead of running them")
}

func runAccessPoint(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, func(cmd *cobra.Command, cfg *config.Config) {
		if cmd.Flags().Changed("dry-run") {
			cfg.Network.DryRun = apDryRun
		}
	})
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := newController(cfg, logging.GetLogger())

	ap := cfg.AccessPointConfig()
	if err := controller.EnterAccessPointMode(ctx, ap); err != nil {
		if stage, ok := netmode.FailedStage(err); ok {
			logging.Error("Access point setup failed", zap.String("stage", string(stage)), zap.Error(err))
		}
		return err
	}

	fmt.Printf("Access point %q up on %s (%s/%d)\n", ap.SSID, ap.LANInterface, ap.StaticIP, ap.PrefixLen)
	return nil
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a default configuration file",
	Long: `Write the default configuration to --config (default /etc/softap/config.yaml).

An existing file is left untouched unless --force is given. The file is
written with mode 0600 because it holds the access point passphrase.`,
	Example: `  sudo softap-server init-config
  softap-server init-config --config ./softap.yaml --force`,
	RunE: runInitConfig,
}

func init() {
	initConfigCmd.Flags().BoolVar(&forceWrite, "force", false, "Overwrite an existing file")
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !forceWrite {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	if err := config.Default().Save(configPath); err != nil {
		return err
	}
	fmt.Printf("Wrote default configuration to %s\n", configPath)
	return nil
}
