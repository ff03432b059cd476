package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/greenlight/pkg/evidence"
	"mercator-hq/greenlight/pkg/policy"
	"mercator-hq/greenlight/pkg/policy/remote"
	"mercator-hq/greenlight/pkg/subject"
)

// Engine turns policies plus fetched evidence into gating decisions. It
// holds no per-request state; concurrent evaluations are independent and
// share only the policy registry and the evidence source.
type Engine struct {
	registry   *policy.Registry
	evidence   EvidenceSource
	remote     remote.Fetcher
	gatingTags map[string][]string
	logger     *slog.Logger
	obs        Observer
}

// New creates an engine. remoteFetcher may be nil, in which case
// remote_policy rules evaluate to an error verdict. gatingTags maps a tag
// name to its member test cases. obs may be nil.
func New(registry *policy.Registry, source EvidenceSource, remoteFetcher remote.Fetcher, gatingTags map[string][]string, logger *slog.Logger, obs Observer) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:   registry,
		evidence:   source,
		remote:     remoteFetcher,
		gatingTags: gatingTags,
		logger:     logger.With("component", "engine"),
		obs:        obs,
	}
}

// evidenceSet is the evidence gathered once per evaluation and shared by
// every rule. Fetch failures are recorded, not raised: affected verdicts
// degrade instead of aborting the decision.
type evidenceSet struct {
	results    map[string][]evidence.TestResult
	waivers    map[string]evidence.Waiver
	resultsErr error
	waiversErr error
}

// Evaluate computes the gating decision for one request. It returns an
// error only for an unresolvable subject or caller cancellation; evidence
// fetch failures are embedded in the decision.
func (e *Engine) Evaluate(ctx context.Context, req Request) (*Decision, error) {
	start := time.Now()
	if err := req.Subject.Validate(); err != nil {
		return nil, err
	}

	policies := e.registry.Resolve(req.Subject, req.ProductVersion, req.DecisionContext)

	decision := &Decision{
		Subject:         req.Subject,
		ProductVersion:  req.ProductVersion,
		DecisionContext: req.DecisionContext,
		PoliciesVersion: e.registry.Version(),
		PolicyIDs:       make([]string, 0, len(policies)),
		Satisfied:       []Verdict{},
		Unsatisfied:     []Verdict{},
		Waivers:         []evidence.Waiver{},
	}
	for _, p := range policies {
		decision.PolicyIDs = append(decision.PolicyIDs, p.ID)
	}

	var ev evidenceSet
	if len(policies) > 0 {
		ev = e.gatherEvidence(ctx, req.Subject, decision)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	var all []Verdict
	for _, p := range policies {
		all = append(all, e.evaluatePolicy(ctx, p, req, &ev)...)
	}

	seenWaivers := make(map[string]bool)
	for _, v := range all {
		if v.Kind.Satisfied() {
			decision.Satisfied = append(decision.Satisfied, v)
		} else {
			decision.Unsatisfied = append(decision.Unsatisfied, v)
		}
		if v.Waiver != nil && !seenWaivers[v.Waiver.ID] {
			seenWaivers[v.Waiver.ID] = true
			decision.Waivers = append(decision.Waivers, *v.Waiver)
		}
	}
	decision.Passed = len(decision.Unsatisfied) == 0
	decision.Summary = summarize(all)

	elapsed := time.Since(start)
	if e.obs != nil {
		e.obs.DecisionEvaluated(decision.Passed, elapsed)
	}
	e.logger.Info("decision evaluated",
		"subject", req.Subject.String(),
		"decision_context", req.DecisionContext,
		"product_version", req.ProductVersion,
		"policies", len(policies),
		"passed", decision.Passed,
		"unsatisfied", len(decision.Unsatisfied),
		"elapsed", elapsed)
	return decision, nil
}

// gatherEvidence fetches results and waivers once and indexes them by test
// case. Failures and truncation are recorded in the decision's notes.
func (e *Engine) gatherEvidence(ctx context.Context, sub subject.Subject, decision *Decision) evidenceSet {
	ev := evidenceSet{
		results: make(map[string][]evidence.TestResult),
		waivers: make(map[string]evidence.Waiver),
	}

	results, truncated, err := e.evidence.Results(ctx, sub)
	if err != nil {
		ev.resultsErr = err
		decision.Notes = append(decision.Notes,
			fmt.Sprintf("failed to retrieve test results: %v", err))
	} else {
		if truncated {
			decision.Notes = append(decision.Notes,
				"test result set was truncated by the results store; the decision may be based on incomplete evidence")
		}
		for _, r := range results {
			if sub.Matches(r.Ref) {
				ev.results[r.TestCase] = append(ev.results[r.TestCase], r)
			}
		}
	}

	waivers, err := e.evidence.Waivers(ctx, sub)
	if err != nil {
		ev.waiversErr = err
		decision.Notes = append(decision.Notes,
			fmt.Sprintf("failed to retrieve waivers: %v; failing results cannot be waived", err))
		return ev
	}
	// The most recent waiver record per test case wins; a newer record with
	// Waived=false revokes an older active waiver.
	for _, w := range waivers {
		if !sub.Matches(w.Ref) {
			continue
		}
		prev, ok := ev.waivers[w.TestCase]
		if !ok || w.Timestamp.After(prev.Timestamp) {
			ev.waivers[w.TestCase] = w
		}
	}
	return ev
}

// activeWaiver returns the effective waiver for a test case, if any.
func (ev *evidenceSet) activeWaiver(testCase string) *evidence.Waiver {
	w, ok := ev.waivers[testCase]
	if !ok || !w.Active() {
		return nil
	}
	return &w
}

// evaluatePolicy evaluates one policy's rules. Rules run concurrently and
// their verdicts are recombined in declaration order, so concurrency never
// changes output ordering.
func (e *Engine) evaluatePolicy(ctx context.Context, p *policy.Policy, req Request, ev *evidenceSet) []Verdict {
	blacklists := applicableBlacklists(p.Rules, req)

	verdictsByRule := make([][]Verdict, len(p.Rules))
	var wg sync.WaitGroup
	for i, rule := range p.Rules {
		if !rule.RuleScope().Matches(req.Subject, req.ProductVersion) {
			continue
		}
		switch r := rule.(type) {
		case policy.PassingTestCaseRule:
			wg.Add(1)
			go func(i int, r policy.PassingTestCaseRule) {
				defer wg.Done()
				verdictsByRule[i] = e.evaluatePassingRule(p.ID, r, ev, blacklists)
			}(i, r)
		case policy.BlacklistRule:
			// Already folded into the suppression set.
		case policy.RemotePolicyRule:
			wg.Add(1)
			go func(i int, r policy.RemotePolicyRule) {
				defer wg.Done()
				verdictsByRule[i] = e.evaluateRemoteRule(ctx, p.ID, r, req, ev)
			}(i, r)
		}
	}
	wg.Wait()

	var out []Verdict
	for _, vs := range verdictsByRule {
		out = append(out, vs...)
	}
	return out
}

// applicableBlacklists collects the blacklist rules that cover the request's
// subject.
func applicableBlacklists(rules []policy.Rule, req Request) []policy.BlacklistRule {
	var out []policy.BlacklistRule
	for _, rule := range rules {
		b, ok := rule.(policy.BlacklistRule)
		if !ok {
			continue
		}
		if b.RuleScope().Matches(req.Subject, req.ProductVersion) && b.AppliesTo(req.Subject) {
			out = append(out, b)
		}
	}
	return out
}

func suppressed(blacklists []policy.BlacklistRule, testCase string) bool {
	for _, b := range blacklists {
		if b.Suppresses(testCase) {
			return true
		}
	}
	return false
}

// evaluatePassingRule produces one verdict per required target. A gating
// tag expands to one target per member test case.
func (e *Engine) evaluatePassingRule(policyID string, r policy.PassingTestCaseRule, ev *evidenceSet, blacklists []policy.BlacklistRule) []Verdict {
	var targets []string
	if r.GatingTag != "" {
		members, ok := e.gatingTags[r.GatingTag]
		if !ok {
			return []Verdict{{
				Kind:     VerdictError,
				PolicyID: policyID,
				RuleID:   r.ID(),
				Error:    fmt.Sprintf("gating tag %q is not configured", r.GatingTag),
			}}
		}
		targets = members
	} else {
		targets = []string{r.TestCase}
	}

	var out []Verdict
	for _, tc := range targets {
		if suppressed(blacklists, tc) {
			continue
		}
		if ev.resultsErr != nil {
			out = append(out, Verdict{
				Kind:     VerdictError,
				PolicyID: policyID,
				RuleID:   r.ID(),
				TestCase: tc,
				Scenario: r.Scenario,
				Error:    fmt.Sprintf("test results are unavailable: %v", ev.resultsErr),
			})
			continue
		}
		out = append(out, evaluateTarget(policyID, r.ID(), tc, r.Scenario, ev))
	}
	return out
}

// evaluateTarget computes the verdict for one required test case.
func evaluateTarget(policyID, ruleID, testCase, scenario string, ev *evidenceSet) Verdict {
	v := Verdict{
		PolicyID: policyID,
		RuleID:   ruleID,
		TestCase: testCase,
		Scenario: scenario,
	}

	authoritative := pickAuthoritative(ev.results[testCase], scenario)
	waiver := ev.activeWaiver(testCase)

	// No usable result yet. Queued and running results count the same as
	// absent ones so an incomplete run never passes gating.
	if authoritative == nil || authoritative.Outcome.Pending() {
		v.Result = authoritative
		if waiver != nil {
			v.Kind = VerdictWaived
			v.Waiver = waiver
		} else {
			v.Kind = VerdictMissing
		}
		return v
	}

	v.Result = authoritative
	if authoritative.Outcome.Passed() {
		v.Kind = VerdictSatisfied
		return v
	}
	if waiver != nil {
		v.Kind = VerdictWaived
		v.Waiver = waiver
		return v
	}
	v.Kind = VerdictFailed
	return v
}

// pickAuthoritative selects the result that decides the verdict: the most
// recent submit time wins, and an exact timestamp tie goes to the worst
// outcome so a tie never passes gating on the optimistic record.
func pickAuthoritative(candidates []evidence.TestResult, scenario string) *evidence.TestResult {
	var best *evidence.TestResult
	for i := range candidates {
		c := &candidates[i]
		if scenario != "" && c.Scenario != scenario {
			continue
		}
		switch {
		case best == nil:
			best = c
		case c.SubmitTime.After(best.SubmitTime):
			best = c
		case c.SubmitTime.Equal(best.SubmitTime) && c.Outcome.WorseThan(best.Outcome):
			best = c
		}
	}
	return best
}

// evaluateRemoteRule fetches the subject's own gating file and evaluates its
// rules as if they were declared inline. A fetch or parse failure yields one
// error verdict; a repository without a gating file yields none.
func (e *Engine) evaluateRemoteRule(ctx context.Context, policyID string, r policy.RemotePolicyRule, req Request, ev *evidenceSet) []Verdict {
	if e.remote == nil {
		return []Verdict{{
			Kind:     VerdictError,
			PolicyID: policyID,
			RuleID:   r.ID(),
			Error:    "remote rule evaluation is disabled",
		}}
	}

	doc, err := e.remote.Fetch(ctx, req.Subject)
	if err != nil {
		e.logger.Warn("remote rule fetch failed",
			"subject", req.Subject.String(), "error", err)
		return []Verdict{{
			Kind:     VerdictError,
			PolicyID: policyID,
			RuleID:   r.ID(),
			Error:    fmt.Sprintf("remote rule file could not be used: %v", err),
		}}
	}
	if doc == nil {
		return nil
	}

	var out []Verdict
	for _, rp := range doc.Policies {
		if !remotePolicyApplies(rp, req) {
			continue
		}
		blacklists := applicableBlacklists(rp.Rules, req)
		for _, rule := range rp.Rules {
			pr, ok := rule.(policy.PassingTestCaseRule)
			if !ok {
				continue
			}
			out = append(out, e.evaluatePassingRule(policyID, pr, ev, blacklists)...)
		}
	}
	return out
}

// remotePolicyApplies matches a remote policy against the request. Remote
// documents may omit scoping fields; an omitted field does not restrict.
func remotePolicyApplies(rp *policy.Policy, req Request) bool {
	scope := policy.Scope{ProductVersions: rp.ProductVersions}
	if rp.SubjectType != "" {
		scope.SubjectTypes = []string{rp.SubjectType}
	}
	if !scope.Matches(req.Subject, req.ProductVersion) {
		return false
	}
	if len(rp.DecisionContexts) == 0 {
		return true
	}
	for _, dc := range rp.DecisionContexts {
		if dc == req.DecisionContext {
			return true
		}
	}
	return false
}
