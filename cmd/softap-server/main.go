// Softap-server is the Wi-Fi provisioning daemon.
//
// It brings up a setup access point, serves a configuration page on it, and
// when credentials are posted joins that network, falling back to the
// access point if the join fails.
//
// Usage:
//
//	softap-server serve [flags]
//
// See 'softap-server --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/softap/internal/config"
	"github.com/muurk/softap/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "softap-server",
	Short: "Wi-Fi provisioning daemon",
	Long: `A daemon that provisions Wi-Fi credentials on a headless Linux device.

The device starts as an access point serving a configuration page. Posting
an SSID and password makes it join that network; if the join fails the
access point is restored so the operator can try again.

For talking to a running daemon from a laptop, use the separate 'softap-cfg'
utility.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(accessPointCmd)
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("softap-server %s\n", version.Full())
	},
}
