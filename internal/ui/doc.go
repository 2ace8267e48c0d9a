// Package ui provides terminal UI components for the softap-cfg CLI.
//
// Components render with Lipgloss and follow a "print and move on" pattern:
//
//   - Header: command banner showing the operation and its target daemon
//   - Progress: stage list for one mode transition, fed by status events
//   - Result: success, failure or warning boxes
//   - WaitModel: Bubble Tea spinner shown while a request is outstanding
//   - Prompter: line, secret and yes/no questions
//
// Wait is the entry point for long requests such as saving credentials:
//
//	err := ui.Wait(ctx, os.Stdout, "Saving credentials", func(ctx context.Context, onEvent func(netmode.Event)) error {
//	    client.OnEvent = onEvent
//	    report, err = client.Provision(ctx, creds)
//	    return err
//	})
//
// When stdin is not a terminal Wait prints events one per line instead.
//
// # Logging Integration
//
// softap-cfg leaves zap silent unless SOFTAP_LOG_LEVEL is set, so that this
// output is not interleaved with log lines.
package ui
