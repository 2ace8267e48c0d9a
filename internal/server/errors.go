package server

import (
	"errors"
	"fmt"
)

// ResourceError means a local asset the router cannot work without is
// missing. It stops the server.
type ResourceError struct {
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("required resource %s unavailable: %v", e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// BindError means the listening socket could not be created.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to listen on %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// ErrNotStarted is returned by Serve when Start has not bound a listener.
var ErrNotStarted = errors.New("server not started")

// IsResourceError checks if an error is a missing local resource
func IsResourceError(err error) bool {
	var resErr *ResourceError
	return errors.As(err, &resErr)
}
