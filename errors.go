package procmgr

import (
	"errors"
	"fmt"
)

// Common errors returned by supervisor operations
var (
	// ErrEmptyCommand indicates Spawn was called without an executable
	ErrEmptyCommand = errors.New("procmgr: empty command")

	// ErrNoFilePath indicates a routing that writes to file has no path
	ErrNoFilePath = errors.New("procmgr: file routing without path")

	// ErrNotFound indicates the target does not resolve to a registered process
	ErrNotFound = errors.New("procmgr: process not found")

	// ErrClosed indicates the supervisor has been closed
	ErrClosed = errors.New("procmgr: supervisor closed")

	// ErrSurvived indicates a process was still running after SIGKILL
	ErrSurvived = errors.New("procmgr: process survived kill")

	// ErrUnknownOutputMode indicates an output mode string could not be parsed
	ErrUnknownOutputMode = errors.New("procmgr: unknown output mode")
)

// OpError represents an error from a supervisor operation
type OpError struct {
	// Op is the operation that failed
	Op Operation
	// PID is the process involved, 0 if none was assigned
	PID int
	// Name is the process label or the path involved in the operation
	Name string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("procmgr %s %q (pid %d): %v", e.Op.String(), e.Name, e.PID, e.Err)
	}
	return fmt.Sprintf("procmgr %s %q: %v", e.Op.String(), e.Name, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// MultiError aggregates multiple errors from bulk operations
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// Unwrap exposes the aggregated errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
