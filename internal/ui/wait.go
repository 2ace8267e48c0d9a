package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/softap/internal/netmode"
)

// ErrInterrupted is returned by Wait when the user pressed ctrl+c.
var ErrInterrupted = errors.New("interrupted")

// EventMsg delivers a daemon transition event to WaitModel.
type EventMsg netmode.Event

// DoneMsg ends WaitModel.
type DoneMsg struct {
	Err error
}

// WaitModel shows a spinner while a request to the daemon is outstanding,
// plus one progress block per transition reported over the status stream.
type WaitModel struct {
	Label       string
	Transitions []*Progress
	Done        bool
	Interrupted bool
	Err         error

	spinner spinner.Model
	started time.Time
}

// NewWaitModel creates a spinner model with the given label.
func NewWaitModel(label string) WaitModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return WaitModel{Label: label, spinner: s, started: time.Now()}
}

// Init implements tea.Model
func (m WaitModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m WaitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.Interrupted = true
			return m, tea.Quit
		}

	case EventMsg:
		m.Transitions = applyEvent(m.Transitions, netmode.Event(msg))

	case DoneMsg:
		m.Done = true
		m.Err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m WaitModel) View() string {
	var b strings.Builder
	if !m.Done && !m.Interrupted {
		elapsed := time.Since(m.started).Round(time.Second)
		b.WriteString(fmt.Sprintf("  %s %s %s\n\n", m.spinner.View(), ProgressLabelStyle.UnsetPaddingLeft().Render(m.Label),
			StepNoteStyle.Render("("+elapsed.String()+")")))
	}
	for _, p := range m.Transitions {
		b.WriteString(p.Render())
		b.WriteString("\n\n")
	}
	return b.String()
}

// applyEvent folds ev into the transition list. A started event opens a new
// block; other events update the latest block for the same mode.
func applyEvent(transitions []*Progress, ev netmode.Event) []*Progress {
	if ev.Phase == netmode.PhaseStarted {
		p := NewModeProgress(transitionLabel(ev.Mode), ev.Mode)
		p.Apply(ev)
		return append(transitions, p)
	}
	for i := len(transitions) - 1; i >= 0; i-- {
		if transitions[i].Apply(ev) {
			break
		}
	}
	return transitions
}

func transitionLabel(mode netmode.Mode) string {
	if mode == netmode.ModeStation {
		return "Joining network"
	}
	return "Restoring access point"
}

// Operation is the work Wait runs. It reports daemon events through
// onEvent.
type Operation func(ctx context.Context, onEvent func(netmode.Event)) error

// Wait runs op behind a spinner. On a terminal it is a Bubble Tea program
// that can be interrupted with ctrl+c; otherwise events are printed one per
// line as they arrive.
func Wait(ctx context.Context, out io.Writer, label string, op Operation) error {
	if !IsInteractive() {
		return waitPlain(ctx, out, label, op)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(NewWaitModel(label), tea.WithOutput(out))

	errc := make(chan error, 1)
	go func() {
		err := op(ctx, func(ev netmode.Event) { prog.Send(EventMsg(ev)) })
		errc <- err
		prog.Send(DoneMsg{Err: err})
	}()

	final, err := prog.Run()
	if err != nil {
		cancel()
		<-errc
		return err
	}
	if m, ok := final.(WaitModel); ok && m.Interrupted {
		cancel()
		<-errc
		return ErrInterrupted
	}
	return <-errc
}

func waitPlain(ctx context.Context, out io.Writer, label string, op Operation) error {
	_, _ = fmt.Fprintf(out, "  %s...\n", label)
	return op(ctx, func(ev netmode.Event) {
		_, _ = fmt.Fprintln(out, FormatEvent(ev))
	})
}

// FormatEvent renders one transition event as a single line.
func FormatEvent(ev netmode.Event) string {
	switch ev.Phase {
	case netmode.PhaseStarted:
		return fmt.Sprintf("  %s entering %s mode", StepMarkerRunning, ev.Mode)
	case netmode.PhaseStep:
		return fmt.Sprintf("  %s %s", StepCompleteStyle.Render(StepMarkerComplete), ev.Stage)
	case netmode.PhaseFailed:
		return fmt.Sprintf("  %s %s %s", ErrorTitleStyle.Render(FailureMarker), ev.Stage, StepNoteStyle.Render("("+ev.Error+")"))
	case netmode.PhaseSucceeded:
		return fmt.Sprintf("  %s now in %s mode", SuccessTitleStyle.Render(SuccessMarker), ev.Mode)
	default:
		return fmt.Sprintf("  %s %s %s", ev.Phase, ev.Mode, ev.Stage)
	}
}
