// Package common defines the sentinel errors shared by the client, the
// reference server and their storage layers. Callers should use errors.Is
// to match these values; concrete errors wrap them with fmt.Errorf("%w").
package common

import "errors"

var (
	// ErrTransport is returned when a remote call failed for any reason:
	// dial errors, timeouts, non-2xx statuses, undecodable bodies. It is
	// deliberately not sub-classified.
	ErrTransport = errors.New("transport error")

	// ErrStorage wraps failures of the local or server-side persistence.
	ErrStorage = errors.New("storage error")

	// ErrNotFound means the operation referenced a nonexistent id.
	ErrNotFound = errors.New("not found")

	// ErrMalformedPending marks a queued operation that lacks the data
	// needed to replay it (e.g. a check-out without name or date).
	ErrMalformedPending = errors.New("malformed pending operation")

	// ErrValidation rejects missing required user input.
	ErrValidation = errors.New("validation error")

	// ErrSyncInProgress is returned by non-blocking sync attempts when a
	// session is already running.
	ErrSyncInProgress = errors.New("sync already in progress")
)
