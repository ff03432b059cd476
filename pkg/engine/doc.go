// Package engine evaluates gating policies against fetched evidence and
// aggregates the per-rule verdicts into a single decision for a subject.
package engine
