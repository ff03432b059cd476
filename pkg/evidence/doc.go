// Package evidence provides read-only client adapters for the external
// evidence stores a gating decision is built from: the results store
// (automated test outcomes) and the waiver store (human overrides).
//
// # Architecture
//
// The package has three layers:
//
//  1. Client adapters - narrow HTTP contracts returning normalized records
//  2. Retry wrapper - bounded retries with backoff around every remote call
//  3. Cache - short-TTL read-through cache with in-flight de-duplication
//
// Evidence is never persisted by this package. The cache exists only to
// collapse bursts of identical lookups (many policies evaluated for one
// subject within a single decision, or near-simultaneous decisions for the
// same subject); the stores remain the sole source of truth.
//
// # Failure semantics
//
// Remote failures surface as *FetchError with a retryable/non-retryable
// classification. Failed fetches are never cached, so the next miss retries
// against the live store.
package evidence
