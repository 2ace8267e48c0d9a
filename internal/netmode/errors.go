package netmode

import (
	"errors"
	"fmt"
)

// ModeError reports which configuration stage failed while entering a mode.
type ModeError struct {
	Mode  Mode  // mode that was being entered
	Stage Stage // stage that failed
	Err   error // underlying collaborator error
}

// Error implements the error interface
func (e *ModeError) Error() string {
	return fmt.Sprintf("entering %s mode failed at %s: %v", e.Mode, e.Stage, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ModeError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage recorded in err's chain, if any.
func FailedStage(err error) (Stage, bool) {
	var modeErr *ModeError
	if errors.As(err, &modeErr) {
		return modeErr.Stage, true
	}
	return "", false
}
