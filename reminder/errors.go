/*
errors.go - Centralized error types for the reminder core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Gateways and the HTTP layer wrap or match these with errors.Is.

ERROR CATEGORIES:
  1. Abort errors - stop a pass before anything is sent
     (missing headers, no destinations, channel not ready, pass in progress,
     store unavailable)
  2. Per-record errors - collected into the pass result, never returned
     (send failures, write-back failures)

  Date parse failures are not errors at all: an unparseable date leaves
  the record without a date and it is never due.

SEE ALSO:
  - engine.go: Produces per-record errors
  - service.go: Produces abort errors
  - api/handlers.go: Maps errors to HTTP status codes
*/
package reminder

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingHeaders is returned when a required logical column cannot be
	// resolved from the header row.
	ErrMissingHeaders = errors.New("missing required headers")

	// ErrChannelNotReady is returned when the messaging session is not
	// authenticated.
	ErrChannelNotReady = errors.New("messaging channel not ready")

	// ErrNoDestinations is returned when no destination addresses are configured.
	ErrNoDestinations = errors.New("no destination addresses configured")

	// ErrPassInProgress is returned when a reconciliation pass is already running.
	ErrPassInProgress = errors.New("reconciliation pass already in progress")

	// ErrStoreUnavailable is returned when the backing spreadsheet cannot be read.
	ErrStoreUnavailable = errors.New("spreadsheet store unavailable")

	// ErrSendFailed marks a failed send to one destination.
	ErrSendFailed = errors.New("send failed")

	// ErrWriteFailed marks a failed write-back of the sent marker.
	ErrWriteFailed = errors.New("write-back failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingHeadersError lists the logical fields that did not resolve.
type MissingHeadersError struct {
	Fields []Field
}

func (e *MissingHeadersError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("missing required headers: %s", strings.Join(names, ", "))
}

func (e *MissingHeadersError) Unwrap() error {
	return ErrMissingHeaders
}

// SendError records a failed send of one record to one destination.
type SendError struct {
	RowNumber int
	Address   string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("row %d: send to %s failed: %v", e.RowNumber, e.Address, e.Err)
}

func (e *SendError) Unwrap() []error {
	return []error{ErrSendFailed, e.Err}
}

// WriteError records a failed write of the sent marker.
type WriteError struct {
	RowNumber int
	Column    int
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("row %d: marking column %d as sent failed: %v", e.RowNumber, e.Column, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrWriteFailed, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error stems from sheet layout or
// configuration the operator has to fix.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingHeaders) ||
		errors.Is(err, ErrNoDestinations)
}

// IsAbort returns true if the error stopped a pass before any send.
func IsAbort(err error) bool {
	return IsClientError(err) ||
		errors.Is(err, ErrChannelNotReady) ||
		errors.Is(err, ErrPassInProgress) ||
		errors.Is(err, ErrStoreUnavailable)
}
