// Softap-cfg is the operator utility for softap daemons.
//
// It finds daemons over mDNS, reads their status, follows mode transitions
// live, and provisions Wi-Fi credentials from a laptop joined to the setup
// access point.
//
// Usage:
//
//	softap-cfg [command] [flags]
//
// See 'softap-cfg --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/softap/internal/logging"
	"github.com/muurk/softap/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "softap-cfg",
	Short: "softap operator utility",
	Long: `A utility for provisioning devices running softap-server.

Join the device's setup access point, then run 'softap-cfg provision'.
The daemon is found over mDNS unless --host is given.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless SOFTAP_LOG_LEVEL is set.
		return logging.Initialize("")
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("softap-cfg %s\n", version.Full())
	},
}
