package netcfg

import (
	"errors"
	"fmt"

	"github.com/muurk/softap/internal/netmode"
)

// ExecutionError represents a failed external command.
type ExecutionError struct {
	// Stage is the transition stage that ran the command
	Stage netmode.Stage
	// Command is the command line, with secrets redacted
	Command string
	// ExitCode is the process exit code (-1 if it never ran)
	ExitCode int
	// Stderr is the captured stderr output
	Stderr string
	// Underlying error if any
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: command %q failed (exit code %d): %v\nstderr: %s",
			e.Stage, e.Command, e.ExitCode, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: command %q failed (exit code %d)\nstderr: %s",
		e.Stage, e.Command, e.ExitCode, e.Stderr)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// TimeoutError represents a command that did not finish within its timeout.
type TimeoutError struct {
	// Command is the command line, with secrets redacted
	Command string
	// Timeout is the configured timeout
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %q timed out after %s", e.Command, e.Timeout)
}

// FileWriteError represents a failure to write a generated config file.
type FileWriteError struct {
	// Path is the destination file
	Path string
	// Underlying error
	Err error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *FileWriteError) Unwrap() error {
	return e.Err
}

// ErrMissingParameters is returned when an action lacks the config its
// stage needs.
var ErrMissingParameters = errors.New("action is missing its parameters")

// UnsupportedStageError is returned for a stage the configurator does not know.
type UnsupportedStageError struct {
	Stage netmode.Stage
}

func (e *UnsupportedStageError) Error() string {
	return fmt.Sprintf("unsupported stage %q", e.Stage)
}

// IsTimeout checks if an error is a command timeout
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// ExitCode returns the exit code carried by err, or -1.
func ExitCode(err error) int {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.ExitCode
	}
	return -1
}
