package main

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/greenlight/pkg/config"
	"mercator-hq/greenlight/pkg/engine"
	"mercator-hq/greenlight/pkg/evidence"
	"mercator-hq/greenlight/pkg/policy"
	"mercator-hq/greenlight/pkg/policy/remote"
	"mercator-hq/greenlight/pkg/telemetry/logging"
	"mercator-hq/greenlight/pkg/telemetry/metrics"
)

// components holds the wired core of the service, shared between the serve
// and decide commands.
type components struct {
	registry  *policy.Registry
	engine    *engine.Engine
	cache     *evidence.Cache
	collector *metrics.Collector // nil when metrics are disabled
	gitSource *policy.GitSource  // nil without a git policy source
	policyDir string
	logger    *slog.Logger
}

// newLogger builds the process logger from configuration, honoring the
// --verbose flag.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Telemetry.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Config{
		Level:     level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
}

// buildComponents wires the policy registry, evidence clients, cache and
// decision engine from configuration. It syncs the git policy source (when
// configured) and loads the initial policy snapshot.
func buildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger, withMetrics bool) (*components, error) {
	c := &components{logger: logger}

	if withMetrics && cfg.Telemetry.Metrics.Enabled {
		c.collector = metrics.NewCollector(nil)
	}

	// Policy source: a configured git repository is synced first and serves
	// the policy directory.
	c.policyDir = cfg.Policy.Dir
	if cfg.Policy.Git.Repository != "" {
		src, err := policy.NewGitSource(cfg.Policy.Git, logger)
		if err != nil {
			return nil, err
		}
		if err := src.Sync(ctx); err != nil {
			return nil, fmt.Errorf("initial policy sync failed: %w", err)
		}
		c.gitSource = src
		if c.policyDir == "" {
			c.policyDir = src.PoliciesDir()
		}
	}

	c.registry = policy.NewRegistry(logger)
	if err := c.reloadPolicies(); err != nil {
		return nil, err
	}

	// Evidence clients share one retry discipline.
	results, err := evidence.NewResultsDBClient(cfg.ResultsDB, cfg.Retry, logger)
	if err != nil {
		return nil, err
	}
	waivers, err := evidence.NewWaiverDBClient(cfg.WaiverDB, cfg.Retry, logger)
	if err != nil {
		return nil, err
	}
	var cacheObs evidence.Observer
	if c.collector != nil {
		cacheObs = c.collector
	}
	c.cache = evidence.NewCache(results, waivers, cfg.Cache, cacheObs, logger)

	var fetcher remote.Fetcher
	if cfg.RemoteRules.Enabled {
		f, err := remote.NewHTTPFetcher(cfg.RemoteRules, cfg.Retry, logger)
		if err != nil {
			return nil, err
		}
		fetcher = f
	}

	var engObs engine.Observer
	if c.collector != nil {
		engObs = c.collector
	}
	c.engine = engine.New(c.registry, c.cache, fetcher, cfg.Policy.GatingTags, logger, engObs)
	return c, nil
}

// reloadPolicies loads the policy directory and swaps it into the registry.
func (c *components) reloadPolicies() error {
	policies, err := policy.LoadDir(c.policyDir)
	if err != nil {
		return fmt.Errorf("loading policies from %q: %w", c.policyDir, err)
	}
	c.registry.Replace(policies)
	if c.collector != nil {
		c.collector.PoliciesLoaded(len(policies))
	}
	c.logger.Info("policies loaded", "dir", c.policyDir, "count", len(policies),
		"version", c.registry.Version())
	return nil
}
