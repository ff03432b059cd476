// Package policy holds the in-memory gating policy model: policies, their
// scopes, and the closed set of rule kinds the evaluator understands.
//
// Policies are parsed from YAML documents at load time and held as an
// immutable snapshot in a Registry. A reload swaps the whole snapshot
// atomically so in-flight evaluations always see a consistent policy set;
// rules are never mutated in place.
//
// Policy definitions can live in a local directory (optionally hot-reloaded
// via a file watcher) or in a git repository synced on a schedule.
//
// Rule is a sealed interface over exactly three kinds: PassingTestCaseRule,
// BlacklistRule and RemotePolicyRule. Adding a kind forces a review of every
// type switch over Rule, which is what the evaluator's correctness depends on.
package policy
