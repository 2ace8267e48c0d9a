package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/softap/internal/discovery"
	"github.com/muurk/softap/internal/logging"
	"github.com/muurk/softap/internal/netmode"
	"github.com/muurk/softap/internal/provclient"
	"github.com/muurk/softap/internal/statusapi"
	"github.com/muurk/softap/internal/ui"
)

// Daemon selection flags
var (
	daemonHost   string
	daemonPort   int
	daemonStatus int
	instance     string
	scanTimeout  time.Duration
	reqTimeout   time.Duration
	jsonOutput   bool
)

// Provision flags
var (
	targetSSID     string
	targetPassword string
	assumeYes      bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&daemonHost, "host", "", "Daemon address (skips mDNS discovery)")
	pf.IntVar(&daemonPort, "port", discovery.DefaultPort, "Provisioning port, with --host")
	pf.IntVar(&daemonStatus, "status-port", 8081, "Status API port, with --host (0 = disabled)")
	pf.StringVar(&instance, "instance", "", "mDNS instance name to pick when several daemons answer")
	pf.DurationVar(&scanTimeout, "scan-timeout", discovery.DefaultScanTimeout, "mDNS discovery timeout")
	pf.DurationVar(&reqTimeout, "timeout", provclient.DefaultTimeout, "Request timeout")

	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw status JSON")

	provisionCmd.Flags().StringVar(&targetSSID, "ssid", "", "Network to join (prompted when empty)")
	provisionCmd.Flags().StringVar(&targetPassword, "password", "", "Network password (prompted without echo when empty)")
	provisionCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(provisionCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find softap daemons over mDNS",
	Long: `Browse for _softap._tcp services and list every daemon that answers.

Run this from a machine joined to the device's setup access point.`,
	Example: `  softap-cfg scan
  softap-cfg scan --scan-timeout 15s`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Scan", "softap-cfg scan",
		ui.Field{Key: "Service", Value: discovery.ServiceType},
		ui.Field{Key: "Timeout", Value: scanTimeout.String()},
	)

	scanner := &discovery.Scanner{Timeout: scanTimeout}
	devices, err := scanner.ScanForDevices(cmd.Context())
	if err != nil {
		p.PrintFailure("Scan failed", err, []string{
			"mDNS needs multicast on the interface (UDP port 5353)",
			"Use --host to address the daemon directly",
		})
		return err
	}

	if len(devices) == 0 {
		p.PrintWarning("No daemons found",
			ui.Field{Key: "Hint", Value: "join the device's setup access point and retry"},
			ui.Field{Key: "Default", Value: "softap-cfg --host 192.168.43.1 status"},
		)
		return nil
	}

	for i, d := range devices {
		details := []ui.Field{
			{Key: "Address", Value: d.BaseURL()},
			{Key: "Host", Value: d.Hostname},
		}
		if d.StatusURL() != "" {
			details = append(details, ui.Field{Key: "Status API", Value: d.StatusURL()})
		}
		if d.Version != "" {
			details = append(details, ui.Field{Key: "Version", Value: d.Version})
		}
		p.PrintSuccess(fmt.Sprintf("%d. %s", i+1, d.Instance), details...)
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's current mode",
	Example: `  softap-cfg status
  softap-cfg --host 192.168.43.1 status --json`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())

	client, err := resolveClient(cmd.Context(), p)
	if err != nil {
		return err
	}

	status, err := client.Status(cmd.Context())
	if err != nil {
		p.PrintFailure("Status unavailable", err, ui.SplitHint(provclient.TroubleshootingHint(err)))
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		p.Println(string(data))
		return nil
	}

	details := statusFields(status)
	if status.Mode == netmode.ModeUnknown {
		p.PrintWarning("Mode unknown", details...)
		return nil
	}
	p.PrintSuccess(fmt.Sprintf("%s mode", status.Mode), details...)
	return nil
}

func statusFields(status *statusapi.StatusResponse) []ui.Field {
	fields := []ui.Field{{Key: "Mode", Value: status.Mode.String()}}
	if status.LastStage != "" {
		fields = append(fields, ui.Field{Key: "Last stage", Value: string(status.LastStage)})
	}
	if status.LastError != "" {
		fields = append(fields, ui.Field{Key: "Last error", Value: status.LastError})
	}
	if !status.UpdatedAt.IsZero() {
		fields = append(fields, ui.Field{Key: "Updated", Value: status.UpdatedAt.Local().Format(time.RFC3339)})
	}
	if status.Version != "" {
		fields = append(fields, ui.Field{Key: "Version", Value: status.Version})
	}
	return fields
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow mode transitions live",
	Long: `Stream the daemon's transition events until interrupted.

The first line is the current status; every later line is one stage of a
transition as the daemon runs it.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := resolveClient(ctx, p)
	if err != nil {
		return err
	}

	err = client.Watch(ctx, func(msg statusapi.Message) bool {
		switch {
		case msg.Status != nil:
			p.Printf("  %s mode (updated %s)\n", msg.Status.Mode, msg.Status.UpdatedAt.Local().Format(time.Kitchen))
		case msg.Event != nil:
			p.Println(ui.FormatEvent(*msg.Event))
		}
		return true
	})
	if err != nil {
		p.PrintFailure("Status stream failed", err, ui.SplitHint(provclient.TroubleshootingHint(err)))
		return err
	}
	return nil
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Send Wi-Fi credentials to the daemon",
	Long: `Send an SSID and password to the daemon and report how the join went.

The daemon answers only after it has tried the network and, on failure,
restored its access point. With the status API enabled the transition is
shown live and a failed join is reported as such. On success the access
point disappears, usually before the answer arrives.`,
	Example: `  # Prompt for everything
  softap-cfg provision

  # Non-interactive
  softap-cfg --host 192.168.43.1 provision --ssid HomeNet --password hunter22 --yes`,
	RunE: runProvision,
}

func runProvision(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	prompter := ui.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := resolveClient(ctx, p)
	if err != nil {
		return err
	}

	if _, err := client.FetchPage(ctx); err != nil {
		p.PrintFailure("Daemon unreachable", err, ui.SplitHint(provclient.TroubleshootingHint(err)))
		return err
	}

	creds, err := readCredentials(prompter)
	if err != nil {
		return err
	}

	p.Newline()
	p.PrintHeader("Provision", "softap-cfg provision",
		ui.Field{Key: "Daemon", Value: client.BaseURL},
		ui.Field{Key: "Network", Value: creds.SSID},
	)

	if !assumeYes {
		ok, err := prompter.Confirm("LEAVE SETUP NETWORK", []string{
			"The device will take its access point down to join " + strconv.Quote(creds.SSID),
			"This machine will lose its connection to the device",
			"If the join fails the access point comes back within a minute",
		})
		if err != nil {
			return err
		}
		if !ok {
			p.Println("  Aborted.")
			return nil
		}
	}

	var report *provclient.ProvisionReport
	err = ui.Wait(ctx, p.Writer(), "Joining "+creds.SSID, func(ctx context.Context, onEvent func(netmode.Event)) error {
		client.OnEvent = onEvent
		var err error
		report, err = client.Provision(ctx, creds)
		return err
	})
	if err != nil {
		if errors.Is(err, ui.ErrInterrupted) {
			return err
		}
		p.PrintFailure("Provisioning failed", err, ui.SplitHint(provclient.TroubleshootingHint(err)))
		return err
	}

	logging.Debug("provision report", zap.Stringer("verdict", report.Verdict), zap.Int("events", len(report.Events)))
	return printReport(p, creds, report)
}

// readCredentials takes the flags, prompting for anything missing.
func readCredentials(prompter *ui.Prompter) (netmode.StationCredentials, error) {
	creds := netmode.StationCredentials{SSID: targetSSID, Passphrase: targetPassword}

	var err error
	if creds.SSID == "" {
		if creds.SSID, err = prompter.Line("Network name (SSID)", ""); err != nil {
			return creds, err
		}
	}
	if creds.Passphrase == "" {
		if creds.Passphrase, err = prompter.Secret("Password"); err != nil {
			return creds, err
		}
	}
	return creds, provclient.ValidateCredentials(creds)
}

// errJoinFailed makes the command exit non-zero after a failed join.
var errJoinFailed = errors.New("device could not join the network")

func printReport(p *ui.Printer, creds netmode.StationCredentials, report *provclient.ProvisionReport) error {
	network := ui.Field{Key: "Network", Value: creds.SSID}

	switch report.Verdict {
	case provclient.VerdictJoined:
		p.PrintSuccess("Device joined "+creds.SSID, network)

	case provclient.VerdictProbablyJoined:
		p.PrintSuccess("Credentials delivered", network,
			ui.Field{Key: "Outcome", Value: "probably joined"},
			ui.Field{Key: "Why", Value: "the setup access point went away, as it does after a successful join"},
		)

	case provclient.VerdictJoinFailed:
		tips := []string{
			"Check the password and that " + strconv.Quote(creds.SSID) + " is in range",
			"Reconnect to the setup access point and run provision again",
		}
		if report.FallbackFailed {
			tips = []string{
				"The access point could not be restored either",
				"Use the device console: softap-server ap",
			}
		}
		p.PrintFailure("Join failed", errors.New(report.StationError), tips)
		return errJoinFailed

	default:
		p.PrintWarning("Credentials accepted, outcome unknown", network,
			ui.Field{Key: "Why", Value: "the daemon runs without a status API"},
			ui.Field{Key: "Next", Value: "check whether the setup access point is still visible"},
		)
	}
	return nil
}

// resolveClient builds a client for --host, or for the daemon found over
// mDNS.
func resolveClient(ctx context.Context, p *ui.Printer) (*provclient.Client, error) {
	if daemonHost != "" {
		client := provclient.NewClient(daemonHost, daemonPort, daemonStatus)
		client.SetTimeout(reqTimeout)
		return client, nil
	}

	scanner := &discovery.Scanner{Timeout: scanTimeout}
	p.Printf("  Looking for softap daemons (%s)...\n", scanTimeout)

	var device *discovery.Device
	if instance != "" {
		d, err := scanner.WaitForDevice(ctx, instance)
		if err != nil {
			return nil, err
		}
		device = d
	} else {
		devices, err := scanner.ScanForDevices(ctx)
		if err != nil {
			return nil, fmt.Errorf("discovery failed: %w", err)
		}
		switch len(devices) {
		case 0:
			return nil, errors.New("no daemons found; use --host to specify the address")
		case 1:
			device = devices[0]
		default:
			for i, d := range devices {
				p.Printf("  %d. %s\n", i+1, d)
			}
			return nil, errors.New("several daemons found; use --instance or --host to pick one")
		}
	}

	p.Printf("  Found %s\n\n", device)
	client := provclient.NewClientWithURL(device.BaseURL(), device.StatusURL())
	client.SetTimeout(reqTimeout)
	return client, nil
}
