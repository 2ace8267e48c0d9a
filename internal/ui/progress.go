package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/softap/internal/netmode"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Successfully completed
	StepFailed                     // Failed
	StepSkipped                    // Never reached because an earlier step failed
)

// Step represents a single step in a multi-step operation
type Step struct {
	Number  int
	Name    string
	Status  StepStatus
	Message string // Optional note (e.g., the failure reason)
}

// Progress tracks one mode transition on the daemon as a bar plus a step
// list, driven by the events of the status stream.
type Progress struct {
	Label   string
	Mode    netmode.Mode
	Steps   []Step
	Current int     // Current step (1-based)
	Percent float64 // 0.0 - 1.0
	Width   int
	bar     progress.Model
}

// NewProgress creates a progress display for the stages of a transition
// into mode.
func NewProgress(label string, mode netmode.Mode, stages []netmode.Stage) *Progress {
	steps := make([]Step, len(stages))
	for i, stage := range stages {
		steps[i] = Step{Number: i + 1, Name: string(stage), Status: StepPending}
	}

	p := &Progress{Label: label, Mode: mode, Steps: steps}
	p.SetWidth(GetTerminalWidth())
	return p
}

// NewModeProgress creates a progress display for the plan the daemon runs
// when entering mode.
func NewModeProgress(label string, mode netmode.Mode) *Progress {
	switch mode {
	case netmode.ModeStation:
		return NewProgress(label, mode, netmode.StationPlan)
	default:
		return NewProgress(label, netmode.ModeAccessPoint, netmode.AccessPointPlan)
	}
}

// SetWidth sets the terminal width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := width - 20 // room for percentage and step count
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// Total returns the number of steps
func (p *Progress) Total() int {
	return len(p.Steps)
}

// UpdateStep updates a specific step's status and optional message
func (p *Progress) UpdateStep(stepNumber int, status StepStatus, message string) {
	if stepNumber < 1 || stepNumber > len(p.Steps) {
		return
	}
	idx := stepNumber - 1
	p.Steps[idx].Status = status
	p.Steps[idx].Message = message

	if status == StepRunning {
		p.Current = stepNumber
	}

	completed := 0
	for _, s := range p.Steps {
		if s.Status == StepComplete {
			completed++
		}
	}
	if len(p.Steps) > 0 {
		p.Percent = float64(completed) / float64(len(p.Steps))
	}
}

// Apply folds a transition event into the display. Events for other modes
// are ignored and reported as not applied.
func (p *Progress) Apply(ev netmode.Event) bool {
	if ev.Mode != p.Mode {
		return false
	}

	switch ev.Phase {
	case netmode.PhaseStarted:
		for i := range p.Steps {
			p.Steps[i].Status = StepPending
			p.Steps[i].Message = ""
		}
		p.Percent = 0
		p.UpdateStep(1, StepRunning, "")

	case netmode.PhaseStep:
		n := p.stepNumber(ev.Stage)
		if n == 0 {
			break
		}
		p.UpdateStep(n, StepComplete, "")
		p.UpdateStep(n+1, StepRunning, "")

	case netmode.PhaseFailed:
		n := p.stepNumber(ev.Stage)
		if n == 0 {
			break
		}
		p.UpdateStep(n, StepFailed, ev.Error)
		for i := n; i < len(p.Steps); i++ {
			p.Steps[i].Status = StepSkipped
		}

	case netmode.PhaseSucceeded:
		for i := range p.Steps {
			p.UpdateStep(i+1, StepComplete, p.Steps[i].Message)
		}
	}
	return true
}

// Failed reports whether any step failed
func (p *Progress) Failed() bool {
	for _, s := range p.Steps {
		if s.Status == StepFailed {
			return true
		}
	}
	return false
}

func (p *Progress) stepNumber(stage netmode.Stage) int {
	for i, s := range p.Steps {
		if s.Name == string(stage) {
			return i + 1
		}
	}
	return 0
}

// Render returns the styled progress display as a string
func (p *Progress) Render() string {
	var b strings.Builder

	if p.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(p.Label))
		b.WriteString("\n\n")
	}

	b.WriteString(p.renderProgressBar())
	b.WriteString("\n\n")

	lines := make([]string, 0, len(p.Steps))
	for _, step := range p.Steps {
		lines = append(lines, p.renderStepLine(step))
	}
	b.WriteString(strings.Join(lines, "\n"))

	return b.String()
}

func (p *Progress) renderProgressBar() string {
	return lipgloss.NewStyle().
		PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%  [%d/%d]", p.bar.ViewAs(p.Percent), p.Percent*100, p.Current, p.Total()))
}

func (p *Progress) renderStepLine(step Step) string {
	var (
		marker string
		style  lipgloss.Style
	)
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, style = StepMarkerSkipped, StepPendingStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  [%d/%d] ", step.Number, p.Total()))
	b.WriteString(style.Render(step.Name))

	// Markers line up in one column.
	padding := 28 - lipgloss.Width(step.Name)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(style.Render(marker))

	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}
