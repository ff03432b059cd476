package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/robfig/cron/v3"
)

// GitSourceConfig configures a git-hosted policy source.
type GitSourceConfig struct {
	// Repository is the clone URL of the policy repository.
	Repository string `yaml:"repository"`

	// Branch is the branch to track. Default: "main"
	Branch string `yaml:"branch"`

	// Path is the subdirectory inside the repository holding policy files.
	// Empty means the repository root.
	Path string `yaml:"path"`

	// LocalPath is where the repository is checked out. Defaults to a
	// directory under the system temp dir.
	LocalPath string `yaml:"local_path"`

	// SyncSchedule is a cron expression for periodic pulls
	// (e.g. "@every 5m"). Empty disables periodic sync.
	SyncSchedule string `yaml:"sync_schedule"`
}

// GitSource keeps a local checkout of a git-hosted policy repository in
// sync and exposes its policy directory for loading.
type GitSource struct {
	cfg    GitSourceConfig
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
	cron *cron.Cron
}

// NewGitSource creates a git policy source.
func NewGitSource(cfg GitSourceConfig, logger *slog.Logger) (*GitSource, error) {
	if cfg.Repository == "" {
		return nil, fmt.Errorf("git policy repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = filepath.Join(os.TempDir(), "greenlight-policies")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GitSource{
		cfg:    cfg,
		logger: logger.With("component", "policy.gitsource"),
	}, nil
}

// PoliciesDir returns the local directory policy files are loaded from.
func (s *GitSource) PoliciesDir() string {
	return filepath.Join(s.cfg.LocalPath, s.cfg.Path)
}

// Sync clones the repository on first use and fast-forwards the checkout on
// subsequent calls. An already-up-to-date pull is not an error.
func (s *GitSource) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		if repo, err := gogit.PlainOpen(s.cfg.LocalPath); err == nil {
			s.repo = repo
		} else {
			repo, err := gogit.PlainCloneContext(ctx, s.cfg.LocalPath, false, &gogit.CloneOptions{
				URL:           s.cfg.Repository,
				ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
				SingleBranch:  true,
				Depth:         1,
			})
			if err != nil {
				return fmt.Errorf("cloning policy repository: %w", err)
			}
			s.repo = repo
			s.logger.Info("policy repository cloned",
				"repository", s.cfg.Repository,
				"branch", s.cfg.Branch,
				"path", s.cfg.LocalPath,
			)
			return nil
		}
	}

	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}
	err = wt.PullContext(ctx, &gogit.PullOptions{
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  true,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pulling policy repository: %w", err)
	}
	return nil
}

// StartSync schedules periodic syncs per the configured cron expression and
// invokes onSync after each successful pull. It is a no-op when no schedule
// is configured.
func (s *GitSource) StartSync(ctx context.Context, onSync func()) error {
	if s.cfg.SyncSchedule == "" {
		s.logger.Info("git sync schedule not configured, skipping periodic sync")
		return nil
	}
	if _, err := cron.ParseStandard(s.cfg.SyncSchedule); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", s.cfg.SyncSchedule, err)
	}

	s.mu.Lock()
	s.cron = cron.New()
	s.mu.Unlock()

	_, err := s.cron.AddFunc(s.cfg.SyncSchedule, func() {
		if err := s.Sync(ctx); err != nil {
			s.logger.Error("scheduled policy sync failed", "error", err)
			return
		}
		onSync()
	})
	if err != nil {
		return fmt.Errorf("scheduling policy sync: %w", err)
	}

	s.cron.Start()
	s.logger.Info("periodic policy sync started", "schedule", s.cfg.SyncSchedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts periodic syncing.
func (s *GitSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}
