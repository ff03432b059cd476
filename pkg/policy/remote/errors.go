package remote

import "fmt"

// MalformedDocumentError indicates a gating file was fetched but could not
// be parsed into remote policies.
type MalformedDocumentError struct {
	// URL is where the document was fetched from.
	URL string

	// Cause is the underlying parse or validation failure.
	Cause error
}

// Error returns the error message.
func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed remote rule file at %q: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *MalformedDocumentError) Unwrap() error { return e.Cause }
