// Package metrics exposes Prometheus metrics for decisions, the evidence
// cache and the evidence store clients.
package metrics
