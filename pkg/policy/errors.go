package policy

import "fmt"

// ValidationError indicates a malformed policy document or an invalid policy
// scope. These surface at load time, never at decision time.
type ValidationError struct {
	// Source is the file or document the policy came from.
	Source string

	// PolicyID is the offending policy, when known.
	PolicyID string

	// Errors are the individual validation findings.
	Errors []string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	prefix := e.Source
	if e.PolicyID != "" {
		prefix = fmt.Sprintf("%s (policy %q)", e.Source, e.PolicyID)
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s: %s", prefix, e.Errors[0])
	}
	return fmt.Sprintf("%s: %d validation errors: %v", prefix, len(e.Errors), e.Errors)
}

// LoadError indicates a policy source could not be read or parsed.
type LoadError struct {
	Path  string
	Cause error
}

// Error returns the error message.
func (e *LoadError) Error() string {
	return fmt.Sprintf("loading policies from %q: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error { return e.Cause }
