package evidence

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/greenlight/pkg/subject"
)

// Outcome is the reported state of one test result. The set is closed;
// unknown outcome strings are rejected when decoding store responses.
type Outcome string

const (
	OutcomePassed  Outcome = "PASSED"
	OutcomeFailed  Outcome = "FAILED"
	OutcomeError   Outcome = "ERROR"
	OutcomeQueued  Outcome = "QUEUED"
	OutcomeRunning Outcome = "RUNNING"
	OutcomeInfo    Outcome = "INFO"
)

// ParseOutcome validates an outcome string from a store response.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomePassed, OutcomeFailed, OutcomeError, OutcomeQueued,
		OutcomeRunning, OutcomeInfo:
		return o, nil
	}
	return "", fmt.Errorf("unknown test outcome %q", s)
}

// Passed reports whether the outcome satisfies a passing-test requirement.
func (o Outcome) Passed() bool { return o == OutcomePassed }

// Failed reports whether the outcome is a definitive failure.
func (o Outcome) Failed() bool { return o == OutcomeFailed || o == OutcomeError }

// Pending reports whether the outcome is not yet determined. Pending results
// gate the same way as absent results.
func (o Outcome) Pending() bool {
	return o == OutcomeQueued || o == OutcomeRunning || o == OutcomeInfo
}

// severity orders outcomes worst-first for the timestamp tie-break. A tie
// between records must resolve to the worst outcome so that gating errs
// toward false negatives.
func (o Outcome) severity() int {
	switch o {
	case OutcomeError:
		return 0
	case OutcomeFailed:
		return 1
	case OutcomeQueued, OutcomeRunning, OutcomeInfo:
		return 2
	case OutcomePassed:
		return 3
	}
	return 2
}

// WorseThan reports whether o is a worse gating outcome than other.
func (o Outcome) WorseThan(other Outcome) bool {
	return o.severity() < other.severity()
}

// TestResult is one reported outcome for a subject, as returned by the
// results store.
type TestResult struct {
	// ID is the store-assigned record identifier.
	ID string `json:"id"`

	// TestCase is the fully qualified test case name (e.g. "dist.rpmdeplint").
	TestCase string `json:"testcase"`

	// Outcome is the reported state of this result.
	Outcome Outcome `json:"outcome"`

	// SubmitTime is when the result was reported. Recency decides which of
	// several results for the same test case is authoritative.
	SubmitTime time.Time `json:"submit_time"`

	// Scenario distinguishes repeated runs of one test case where applicable
	// (e.g. an install scenario). Empty when not reported.
	Scenario string `json:"scenario,omitempty"`

	// Architecture is the hardware dimension of the run, when reported.
	Architecture string `json:"architecture,omitempty"`

	// Ref is the subject reference form this result was reported against.
	Ref subject.Reference `json:"ref"`
}

// Waiver is a human-issued override for a (subject, test case) pair, as
// returned by the waiver store. A record with Waived=false is a revocation
// marker and never counts as an active waiver.
type Waiver struct {
	// ID is the store-assigned record identifier.
	ID string `json:"id"`

	// TestCase is the waived test case name.
	TestCase string `json:"testcase"`

	// Ref is the subject reference form the waiver was issued against.
	Ref subject.Reference `json:"ref"`

	// Waived is true for an active waiver, false for a revocation marker.
	Waived bool `json:"waived"`

	// Comment is the human justification recorded with the waiver.
	Comment string `json:"comment,omitempty"`

	// Username identifies the waiver issuer.
	Username string `json:"username,omitempty"`

	// Timestamp is when the waiver was issued. The most recent record for a
	// test case wins.
	Timestamp time.Time `json:"timestamp"`
}

// Active reports whether the waiver currently overrides a failing or missing
// result.
func (w Waiver) Active() bool { return w.Waived }

// ResultsClient fetches test results for a subject's reference forms.
type ResultsClient interface {
	// FetchResults returns all results reported against any of the given
	// reference forms. The truncated flag is set when the store signalled
	// more records than the client was willing to page through; callers must
	// surface it, never merge it away silently.
	FetchResults(ctx context.Context, refs []subject.Reference) (results []TestResult, truncated bool, err error)
}

// WaiversClient fetches waivers for a subject's reference forms. Revoked
// waivers are included; filtering is the evaluator's concern.
type WaiversClient interface {
	FetchWaivers(ctx context.Context, refs []subject.Reference) ([]Waiver, error)
}
