package evidence

import (
	"errors"
	"fmt"
)

// Store names used in errors and metrics labels.
const (
	StoreResults = "resultsdb"
	StoreWaivers = "waiverdb"
)

// FailureKind classifies a fetch failure.
type FailureKind string

const (
	// FailureRetryable covers timeouts, connection failures and 5xx-class
	// responses. Retries were attempted and exhausted.
	FailureRetryable FailureKind = "retryable"

	// FailureNonRetryable covers 4xx-class responses and malformed payloads.
	// No retry can help.
	FailureNonRetryable FailureKind = "non_retryable"
)

// FetchError is the typed failure surfaced when an evidence store could not
// be queried. It degrades the affected verdicts, never the whole decision.
type FetchError struct {
	// Store is the evidence store that failed (StoreResults or StoreWaivers).
	Store string

	// Kind classifies the failure.
	Kind FailureKind

	// StatusCode is the last HTTP status received, zero for transport errors.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error returns the error message.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch failed (%s, HTTP %d): %v", e.Store, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch failed (%s): %v", e.Store, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether a later attempt could succeed.
func (e *FetchError) Retryable() bool { return e.Kind == FailureRetryable }

// AsFetchError extracts a *FetchError from an error chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
