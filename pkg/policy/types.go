package policy

import (
	"path"
	"strings"

	"mercator-hq/greenlight/pkg/subject"
)

// Scope restricts where a policy or an individual rule applies. Empty
// fields do not restrict. ProductVersions entries are fnmatch-style glob
// patterns ("fedora-*").
type Scope struct {
	// SubjectTypes limits the scope to the listed item types.
	SubjectTypes []string `yaml:"subject_types,omitempty"`

	// ProductVersions limits the scope to product versions matching any of
	// the listed glob patterns.
	ProductVersions []string `yaml:"product_versions,omitempty"`
}

// Matches reports whether the scope applies to the given subject and product
// version. Scope matching is deterministic: every predicate present must be
// satisfied.
func (s Scope) Matches(sub subject.Subject, productVersion string) bool {
	if len(s.SubjectTypes) > 0 {
		found := false
		for _, st := range s.SubjectTypes {
			for _, ref := range sub.References() {
				if ref.Type == st {
					found = true
				}
			}
		}
		if !found {
			return false
		}
	}
	if len(s.ProductVersions) > 0 && !matchesAnyPattern(s.ProductVersions, productVersion) {
		return false
	}
	return true
}

// Rule is one requirement inside a policy. The kind set is closed: the
// evaluator type-switches exhaustively over the three variants below and a
// new kind must not compile into silent fall-through.
type Rule interface {
	// ID returns a stable, human-readable rule identity for explanations.
	ID() string

	// RuleScope returns the rule's optional scope restriction.
	RuleScope() Scope

	isRule()
}

// PassingTestCaseRule requires the subject's latest result for a test case
// (or for every member of a gating tag) to be PASSED or waived. Exactly one
// of TestCase and GatingTag is set.
type PassingTestCaseRule struct {
	// TestCase is the required test case name.
	TestCase string

	// GatingTag names a configured group of test cases; every member is
	// required.
	GatingTag string

	// Scenario restricts result matching to one scenario dimension when set.
	Scenario string

	// Scope optionally restricts where the rule applies.
	Scope Scope
}

func (r PassingTestCaseRule) ID() string {
	if r.GatingTag != "" {
		return "gating-tag:" + r.GatingTag
	}
	if r.Scenario != "" {
		return r.TestCase + "/" + r.Scenario
	}
	return r.TestCase
}

func (r PassingTestCaseRule) RuleScope() Scope { return r.Scope }

func (PassingTestCaseRule) isRule() {}

// BlacklistRule excludes matching (subject, test case) combinations from the
// policy's requirement set. Suppression happens before evaluation; the
// suppressed targets never produce verdicts.
type BlacklistRule struct {
	// TestCases are test case names or glob patterns to suppress.
	TestCases []string

	// Packages limits suppression to subjects whose package name matches
	// any of the glob patterns. Empty means all subjects.
	Packages []string

	// Scope optionally restricts where the rule applies.
	Scope Scope
}

func (r BlacklistRule) ID() string {
	return "blacklist:" + strings.Join(r.TestCases, ",")
}

func (r BlacklistRule) RuleScope() Scope { return r.Scope }

func (BlacklistRule) isRule() {}

// AppliesTo reports whether the blacklist covers the given subject.
func (r BlacklistRule) AppliesTo(sub subject.Subject) bool {
	if len(r.Packages) == 0 {
		return true
	}
	return matchesAnyPattern(r.Packages, PackageName(sub.Identifier()))
}

// Suppresses reports whether the blacklist covers the given test case.
func (r BlacklistRule) Suppresses(testCase string) bool {
	return matchesAnyPattern(r.TestCases, testCase)
}

// RemotePolicyRule defers to gating rules published in the subject's own
// source repository, fetched out-of-band at evaluation time.
type RemotePolicyRule struct {
	// Scope optionally restricts where the rule applies.
	Scope Scope
}

func (RemotePolicyRule) ID() string { return "remote-policy" }

func (r RemotePolicyRule) RuleScope() Scope { return r.Scope }

func (RemotePolicyRule) isRule() {}

// Policy is a named, ordered collection of rules with a scope. A subject
// matches a policy iff every scope predicate on the policy is satisfied.
type Policy struct {
	// ID is the unique, human-readable policy identifier.
	ID string

	// ProductVersions are glob patterns for the product versions the policy
	// applies to.
	ProductVersions []string

	// DecisionContexts are the decision contexts the policy answers for.
	DecisionContexts []string

	// SubjectType is the item type the policy applies to.
	SubjectType string

	// ExcludedPackages are package-name glob patterns exempted from this
	// policy entirely.
	ExcludedPackages []string

	// Rules is the ordered requirement list.
	Rules []Rule
}

// Matches reports whether the policy applies to the given subject, product
// version and decision context.
func (p *Policy) Matches(sub subject.Subject, productVersion, decisionContext string) bool {
	typeMatch := false
	for _, ref := range sub.References() {
		if ref.Type == p.SubjectType {
			typeMatch = true
			break
		}
	}
	if !typeMatch {
		return false
	}
	if !matchesAnyPattern(p.ProductVersions, productVersion) {
		return false
	}
	contextMatch := false
	for _, dc := range p.DecisionContexts {
		if dc == decisionContext {
			contextMatch = true
			break
		}
	}
	if !contextMatch {
		return false
	}
	if len(p.ExcludedPackages) > 0 &&
		matchesAnyPattern(p.ExcludedPackages, PackageName(sub.Identifier())) {
		return false
	}
	return true
}

// PackageName extracts the package name from an NVR-style identifier
// ("glibc-2.26-27.fc27" -> "glibc"). Identifiers without the two trailing
// version-release segments are returned unchanged.
func PackageName(identifier string) string {
	first := strings.LastIndex(identifier, "-")
	if first <= 0 {
		return identifier
	}
	second := strings.LastIndex(identifier[:first], "-")
	if second <= 0 {
		return identifier
	}
	return identifier[:second]
}

// matchesAnyPattern reports whether value matches any fnmatch-style glob in
// patterns. Invalid patterns never match; validity is enforced at load time.
func matchesAnyPattern(patterns []string, value string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(p, value); err == nil && ok {
			return true
		}
	}
	return false
}
