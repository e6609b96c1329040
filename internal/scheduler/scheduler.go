// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	// RetentionSpec runs the retention purge daily at 03:00.
	RetentionSpec = "0 3 * * *"
	// PruneSpec runs limiter pruning at the top of every hour.
	PruneSpec = "@hourly"
)

// Purger deletes saved calculations created before a cutoff.
type Purger interface {
	PurgeCalculationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner drops expired rate-limit counters.
type Pruner interface {
	Prune() int
}

// Config selects which jobs are registered.
type Config struct {
	// RetentionDays of zero or less disables the purge job.
	RetentionDays int
	Purger        Purger
	// OnPurge is called with the number of removed calculations.
	OnPurge func(n int64)
	// Pruner may be nil when the limiter keeps no local state.
	Pruner Pruner
}

// Scheduler wraps a cron runner with the maintenance jobs.
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Logger
	cfg  Config
	now  func() time.Time
	jobs int
}

// New registers the configured jobs without starting them.
func New(cfg Config, log *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		log:  log,
		cfg:  cfg,
		now:  time.Now,
	}

	if cfg.RetentionDays > 0 && cfg.Purger != nil {
		if _, err := s.cron.AddFunc(RetentionSpec, func() { s.PurgeExpired(context.Background()) }); err != nil {
			return nil, fmt.Errorf("schedule retention purge: %w", err)
		}
		s.jobs++
	}
	if cfg.Pruner != nil {
		if _, err := s.cron.AddFunc(PruneSpec, s.PruneLimiter); err != nil {
			return nil, fmt.Errorf("schedule limiter prune: %w", err)
		}
		s.jobs++
	}

	return s, nil
}

// Jobs returns how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return s.jobs
}

// Start runs the jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("jobs", s.jobs).Info("scheduler started")
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
}

// PurgeExpired removes calculations older than the retention window.
func (s *Scheduler) PurgeExpired(ctx context.Context) {
	if s.cfg.RetentionDays <= 0 || s.cfg.Purger == nil {
		return
	}

	cutoff := s.now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
	removed, err := s.cfg.Purger.PurgeCalculationsBefore(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Error("retention purge failed")
		return
	}
	if s.cfg.OnPurge != nil {
		s.cfg.OnPurge(removed)
	}
	s.log.WithFields(logrus.Fields{"removed": removed, "cutoff": cutoff.Format(time.RFC3339)}).Info("retention purge finished")
}

// PruneLimiter drops rate-limit counters from previous days.
func (s *Scheduler) PruneLimiter() {
	if s.cfg.Pruner == nil {
		return
	}
	removed := s.cfg.Pruner.Prune()
	s.log.WithField("days", removed).Debug("limiter pruned")
}
