// Package remote fetches gating rules published in a subject's own source
// repository. A RemotePolicyRule in a policy defers to these rules: they are
// fetched at evaluation time and evaluated as if they were inlined into the
// deferring policy.
//
// The gating file lives at a URL derived from the subject (dist-git web UI
// style). Absence of the file means the repository publishes no extra rules
// and is not an error; an unreachable store or a malformed document is a
// typed failure the evaluator turns into an ERROR verdict.
package remote
