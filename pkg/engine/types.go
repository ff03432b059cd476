package engine

import (
	"context"
	"time"

	"mercator-hq/greenlight/pkg/evidence"
	"mercator-hq/greenlight/pkg/subject"
)

// VerdictKind is the outcome of evaluating one rule target.
type VerdictKind string

const (
	// VerdictSatisfied means the authoritative result passed.
	VerdictSatisfied VerdictKind = "SATISFIED"

	// VerdictFailed means the authoritative result failed and no active
	// waiver covers it.
	VerdictFailed VerdictKind = "FAILED"

	// VerdictMissing means no usable result exists yet. Queued and running
	// results count as missing.
	VerdictMissing VerdictKind = "MISSING"

	// VerdictWaived means a failing or missing result is overridden by an
	// active waiver.
	VerdictWaived VerdictKind = "WAIVED"

	// VerdictError means the rule could not be evaluated, for example
	// because required evidence could not be fetched.
	VerdictError VerdictKind = "ERROR"
)

// Satisfied reports whether the verdict counts toward a passing policy.
func (k VerdictKind) Satisfied() bool {
	return k == VerdictSatisfied || k == VerdictWaived
}

// Verdict is the evaluation outcome for one rule target within one policy.
type Verdict struct {
	// Kind is the verdict outcome.
	Kind VerdictKind `json:"type"`

	// PolicyID identifies the policy the rule belongs to.
	PolicyID string `json:"policy"`

	// RuleID identifies the rule within the policy.
	RuleID string `json:"rule"`

	// TestCase is the test case name the verdict is about. Empty for
	// rule-level errors that have no single target.
	TestCase string `json:"testcase,omitempty"`

	// Scenario is set when the rule restricts matching to one scenario.
	Scenario string `json:"scenario,omitempty"`

	// Result is the authoritative test result behind the verdict, when one
	// exists.
	Result *evidence.TestResult `json:"result,omitempty"`

	// Waiver is the active waiver behind a WAIVED verdict.
	Waiver *evidence.Waiver `json:"waiver,omitempty"`

	// Error describes why the rule could not be evaluated. Set only for
	// ERROR verdicts.
	Error string `json:"error,omitempty"`
}

// Request asks for a gating decision on one subject.
type Request struct {
	// Subject is the artifact under evaluation.
	Subject subject.Subject

	// ProductVersion selects which policies apply (e.g. "fedora-27").
	ProductVersion string

	// DecisionContext selects which policies apply (e.g.
	// "bodhi_update_push_stable").
	DecisionContext string
}

// Decision is the aggregate gating answer for one request. It is
// deterministic for identical input and evidence: two evaluations within
// the evidence cache window produce identical decisions.
type Decision struct {
	// Passed is true iff every applicable policy passed. A subject with no
	// applicable policies passes vacuously.
	Passed bool `json:"policies_satisfied"`

	// Subject is the evaluated subject.
	Subject subject.Subject `json:"subject"`

	// ProductVersion is the requested product version.
	ProductVersion string `json:"product_version"`

	// DecisionContext is the requested decision context.
	DecisionContext string `json:"decision_context"`

	// PolicyIDs lists the applicable policies in resolution order.
	PolicyIDs []string `json:"applicable_policies"`

	// PoliciesVersion identifies the policy snapshot the decision was made
	// against.
	PoliciesVersion string `json:"policies_version,omitempty"`

	// Satisfied lists the satisfied and waived requirements, in policy
	// resolution order then rule declaration order.
	Satisfied []Verdict `json:"satisfied_requirements"`

	// Unsatisfied lists the failed, missing and errored requirements, in
	// the same order.
	Unsatisfied []Verdict `json:"unsatisfied_requirements"`

	// Waivers lists the active waivers that affected the decision.
	Waivers []evidence.Waiver `json:"waivers"`

	// Summary is a one-line human explanation of the decision.
	Summary string `json:"summary"`

	// Notes carries partial-failure context: evidence fetch failures and
	// truncated record sets.
	Notes []string `json:"notes,omitempty"`
}

// EvidenceSource provides a subject's test results and waivers. Implemented
// by evidence.Cache; tests substitute in-memory fakes.
type EvidenceSource interface {
	// Results returns the subject's test results. The truncated flag is set
	// when the store reported more records than were fetched.
	Results(ctx context.Context, sub subject.Subject) ([]evidence.TestResult, bool, error)

	// Waivers returns the subject's waiver records, including revoked ones.
	Waivers(ctx context.Context, sub subject.Subject) ([]evidence.Waiver, error)
}

// Observer receives decision events for metrics reporting. A nil observer
// is valid and ignored.
type Observer interface {
	// DecisionEvaluated records one completed evaluation.
	DecisionEvaluated(passed bool, elapsed time.Duration)
}
