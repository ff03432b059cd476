package history

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// StartRetention schedules periodic pruning of records older than
// retentionDays. The returned stop function halts the scheduler; it is also
// stopped when ctx is done. A retentionDays of zero disables pruning and
// returns a no-op stop function.
func (s *Store) StartRetention(ctx context.Context, schedule string, retentionDays int) (func(), error) {
	if retentionDays <= 0 {
		return func() {}, nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	age := time.Duration(retentionDays) * 24 * time.Hour
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		pruneCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := s.Prune(pruneCtx, age)
		if err != nil {
			s.logger.Error("decision pruning failed", "error", err)
			return
		}
		if n > 0 {
			s.logger.Info("pruned old decisions", "removed", n, "retention_days", retentionDays)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return func() { c.Stop() }, nil
}
