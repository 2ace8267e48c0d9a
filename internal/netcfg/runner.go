package netcfg

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultCommandTimeout bounds a single external command.
const DefaultCommandTimeout = 30 * time.Second

// redacted replaces secret arguments in logs and errors.
const redacted = "<redacted>"

// Command is one external program invocation.
type Command struct {
	Name string
	Args []string

	// Secret holds indexes into Args that must never be logged.
	Secret []int
}

// Cmd builds a Command with no secret arguments.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// String returns the command line with secret arguments redacted.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for i, arg := range c.Args {
		if c.isSecret(i) {
			parts = append(parts, redacted)
			continue
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

func (c Command) isSecret(i int) bool {
	for _, s := range c.Secret {
		if s == i {
			return true
		}
	}
	return false
}

// Result is the outcome of running a Command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner runs external commands. Only the exit status is acted upon.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Timeout time.Duration
	logger  *zap.Logger
}

// NewExecRunner creates a runner with the given per-command timeout.
func NewExecRunner(timeout time.Duration, logger *zap.Logger) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{Timeout: timeout, logger: logger}
}

// Run executes cmd and waits for it. A non-zero exit code is reported as a
// Result together with a nil error; the caller decides which codes are
// acceptable. Failure to start and timeouts are errors.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	start := time.Now()
	c := exec.CommandContext(timeoutCtx, cmd.Name, cmd.Args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	c.Stdout = &stdoutBuf
	c.Stderr = &stderrBuf

	err := c.Run()

	result := &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}

	r.logger.Debug("command finished",
		zap.String("command", cmd.String()),
		zap.Duration("duration", result.Duration),
		zap.String("stderr", result.Stderr),
	)

	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return result, &TimeoutError{Command: cmd.String(), Timeout: r.Timeout.String()}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, err
	}

	return result, nil
}

// LogRunner only logs commands. It backs the dry-run mode used on
// development machines where touching the network stack is not wanted.
type LogRunner struct {
	logger *zap.Logger
}

// NewLogRunner creates a dry-run runner.
func NewLogRunner(logger *zap.Logger) *LogRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRunner{logger: logger}
}

// Run logs cmd and reports success.
func (r *LogRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	r.logger.Info("dry run", zap.String("command", cmd.String()))
	return &Result{}, nil
}
