package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ErrNoInput is returned when input ends before an answer was given.
var ErrNoInput = errors.New("no input")

// Prompter asks the operator questions. Secrets are read without echo when
// the input is a terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	fd       int
	terminal bool
}

// NewPrompter creates a prompter reading from in and writing questions to
// out. Nil arguments mean os.Stdin and os.Stdout.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	p := &Prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.terminal = true
	}
	return p
}

// Line asks a question and returns the trimmed answer, or def when the
// answer is empty.
func (p *Prompter) Line(question, def string) (string, error) {
	label := question
	if def != "" {
		label += " [" + def + "]"
	}
	_, _ = fmt.Fprint(p.out, PromptStyle.Render(label+": "))

	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		_, _ = fmt.Fprintln(p.out)
		if err == io.EOF {
			return "", ErrNoInput
		}
		return "", err
	}

	answer := strings.TrimSpace(line)
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Secret asks for a value that must not be echoed. Trailing newline
// characters are removed but other whitespace is kept.
func (p *Prompter) Secret(question string) (string, error) {
	_, _ = fmt.Fprint(p.out, PromptStyle.Render(question+": "))

	if p.terminal {
		secret, err := term.ReadPassword(p.fd)
		_, _ = fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(secret), nil
	}

	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Confirm shows a warning box and asks for a yes/no answer. Only "y" or
// "yes" confirm.
func (p *Prompter) Confirm(title string, warnings []string) (bool, error) {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)), ""}
	for _, warning := range warnings {
		lines = append(lines, lipgloss.NewStyle().Foreground(TextColor).Render("   • "+warning))
	}
	lines = append(lines, "")

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
	_, _ = fmt.Fprintln(p.out, box)
	_, _ = fmt.Fprintln(p.out)

	answer, err := p.Line("Proceed? (y/N)", "")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	_, _ = fmt.Fprintln(p.out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false, nil
}
