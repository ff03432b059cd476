package policy

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mercator-hq/greenlight/pkg/subject"
)

// Registry holds the loaded policy set as an immutable snapshot. Replace
// swaps the whole snapshot atomically; in-flight resolutions keep the
// snapshot they started with, so an evaluation never observes a half-loaded
// policy set.
type Registry struct {
	mu      sync.RWMutex
	current snapshot
	logger  *slog.Logger
}

// snapshot is one immutable generation of the policy set.
type snapshot struct {
	policies []*Policy
	version  string
	loadedAt time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger.With("component", "policy.registry")}
}

// Replace atomically installs a new policy snapshot. The slice is owned by
// the registry from this point and must not be mutated by the caller.
func (r *Registry) Replace(policies []*Policy) {
	version := snapshotVersion(policies)

	r.mu.Lock()
	r.current = snapshot{
		policies: policies,
		version:  version,
		loadedAt: time.Now(),
	}
	r.mu.Unlock()

	r.logger.Info("policy snapshot replaced",
		"policy_count", len(policies),
		"version", version,
	)
}

// Resolve returns the policies applicable to the subject, product version
// and decision context, in declaration order. Declaration order is stable so
// decision explanations are reproducible across runs for identical input.
func (r *Registry) Resolve(sub subject.Subject, productVersion, decisionContext string) []*Policy {
	r.mu.RLock()
	snap := r.current
	r.mu.RUnlock()

	var applicable []*Policy
	for _, p := range snap.policies {
		if p.Matches(sub, productVersion, decisionContext) {
			applicable = append(applicable, p)
		}
	}
	return applicable
}

// All returns the current snapshot's policies in declaration order.
func (r *Registry) All() []*Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	policies := make([]*Policy, len(r.current.policies))
	copy(policies, r.current.policies)
	return policies
}

// Version returns the content hash of the current snapshot, empty before
// the first Replace.
func (r *Registry) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.version
}

// snapshotVersion derives a stable content hash over policy identity and
// rule order.
func snapshotVersion(policies []*Policy) string {
	h := sha256.New()
	for _, p := range policies {
		fmt.Fprintf(h, "%s|%s|%s|%s\n",
			p.ID,
			strings.Join(p.ProductVersions, ","),
			strings.Join(p.DecisionContexts, ","),
			p.SubjectType,
		)
		for _, rule := range p.Rules {
			fmt.Fprintf(h, "  %s\n", rule.ID())
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}
