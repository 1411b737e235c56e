package worker

import (
	"context"
	"fmt"
	"log/slog"

	"assessment-service/internal/app"
	"github.com/robfig/cron/v3"
)

const (
	DefaultExpiredSchedule = "@hourly"
	DefaultPurgeSchedule   = "0 3 * * *"
)

// Sweeps is what the scheduler drives.
type Sweeps interface {
	SweepExpired(ctx context.Context) (app.SweepReport, error)
	PurgeCompleted(ctx context.Context, daysOld int) (int64, error)
	RetentionDays() int
}

// Config holds cron expressions for the recurring sweeps.
type Config struct {
	ExpiredSchedule string
	PurgeSchedule   string
}

// Scheduler owns the recurring cleanup jobs for the lifetime of the process.
type Scheduler struct {
	cron   *cron.Cron
	sweeps Sweeps
	log    *slog.Logger
	ctx    context.Context
}

func NewScheduler(sweeps Sweeps, cfg Config, log *slog.Logger) (*Scheduler, error) {
	if cfg.ExpiredSchedule == "" {
		cfg.ExpiredSchedule = DefaultExpiredSchedule
	}
	if cfg.PurgeSchedule == "" {
		cfg.PurgeSchedule = DefaultPurgeSchedule
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweeps: sweeps,
		log:    log,
		ctx:    context.Background(),
	}
	if _, err := s.cron.AddFunc(cfg.ExpiredSchedule, s.RunExpired); err != nil {
		return nil, fmt.Errorf("expired sweep schedule %q: %w", cfg.ExpiredSchedule, err)
	}
	if _, err := s.cron.AddFunc(cfg.PurgeSchedule, s.RunPurge); err != nil {
		return nil, fmt.Errorf("purge schedule %q: %w", cfg.PurgeSchedule, err)
	}
	return s, nil
}

// Run starts the jobs and blocks until ctx is done, then waits for running
// jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.log.Info("sweep scheduler started", "jobs", len(s.cron.Entries()))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("sweep scheduler stopped")
	return nil
}

// RunExpired performs one expired-attempt sweep; failures are logged so the
// schedule continues.
func (s *Scheduler) RunExpired() {
	report, err := s.sweeps.SweepExpired(s.ctx)
	if err != nil {
		s.log.Error("scheduled expired sweep failed", "err", err)
		return
	}
	s.log.Info("scheduled expired sweep", "removed", report.Removed, "failed", report.Failed)
}

// RunPurge deletes completed attempts older than the configured retention.
func (s *Scheduler) RunPurge() {
	days := s.sweeps.RetentionDays()
	n, err := s.sweeps.PurgeCompleted(s.ctx, days)
	if err != nil {
		s.log.Error("scheduled purge failed", "days_old", days, "err", err)
		return
	}
	s.log.Info("scheduled purge", "days_old", days, "removed", n)
}
