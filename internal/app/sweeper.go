package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"assessment-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultSweepGrace is tolerated past a time limit before the periodic sweep
	// reclaims an attempt. It is deliberately longer than DefaultStartGrace.
	DefaultSweepGrace = 30 * time.Minute
	// DefaultRetentionDays is how long completed attempts are kept.
	DefaultRetentionDays = 365
	// MinRetentionDays is the smallest retention a purge accepts.
	MinRetentionDays = 30
)

// SweepReport counts what one expiry sweep did.
type SweepReport struct {
	Scanned  int `json:"scanned"`
	Removed  int `json:"removed"`
	Orphaned int `json:"orphaned"`
	Expired  int `json:"expired"`
	Failed   int `json:"failed"`
}

// SweeperConfig tunes the sweeper.
type SweeperConfig struct {
	Grace            time.Duration
	RetentionDays    int
	MinRetentionDays int
}

// Sweeper reconciles attempts left behind by disconnected clients and purges
// old completed attempts.
type Sweeper struct {
	attempts AttemptRepository
	quizzes  QuizRepository
	cfg      SweeperConfig
	now      func() time.Time
	log      *slog.Logger
	sf       singleflight.Group
}

func NewSweeper(attempts AttemptRepository, quizzes QuizRepository, cfg SweeperConfig, log *slog.Logger) *Sweeper {
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultSweepGrace
	}
	if cfg.MinRetentionDays <= 0 {
		cfg.MinRetentionDays = MinRetentionDays
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}
	if cfg.RetentionDays < cfg.MinRetentionDays {
		cfg.RetentionDays = cfg.MinRetentionDays
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{attempts: attempts, quizzes: quizzes, cfg: cfg, now: time.Now, log: log}
}

// NewSweeperWithClock is test-only for deterministic timestamps.
func NewSweeperWithClock(attempts AttemptRepository, quizzes QuizRepository, cfg SweeperConfig, now func() time.Time) *Sweeper {
	s := NewSweeper(attempts, quizzes, cfg, nil)
	s.now = now
	return s
}

// RetentionDays is the retention used by the scheduled purge.
func (s *Sweeper) RetentionDays() int { return s.cfg.RetentionDays }

// SweepExpired deletes non-completed attempts whose quiz is gone or whose time
// limit plus grace has passed. Concurrent callers share one pass.
func (s *Sweeper) SweepExpired(ctx context.Context) (SweepReport, error) {
	v, err, _ := s.sf.Do("expired", func() (interface{}, error) {
		return s.sweepExpired(ctx)
	})
	if err != nil {
		return SweepReport{}, err
	}
	return v.(SweepReport), nil
}

type quizLookup struct {
	quiz    domain.Quiz
	deleted bool
	err     error
}

func (s *Sweeper) sweepExpired(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	pending, err := s.attempts.ListIncomplete(ctx)
	if err != nil {
		return report, fmt.Errorf("list incomplete attempts: %w", err)
	}
	report.Scanned = len(pending)

	now := s.now()
	quizzes := make(map[string]quizLookup)
	for _, attempt := range pending {
		lookup, ok := quizzes[attempt.QuizID]
		if !ok {
			quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
			lookup = quizLookup{quiz: quiz, deleted: errors.Is(err, domain.ErrQuizNotFound)}
			if err != nil && !lookup.deleted {
				lookup.err = err
			}
			quizzes[attempt.QuizID] = lookup
		}
		if lookup.err != nil {
			s.log.Warn("sweep: quiz lookup failed", "quiz_id", attempt.QuizID, "attempt_id", attempt.ID, "err", lookup.err)
			report.Failed++
			continue
		}

		orphan := lookup.deleted
		limit := lookup.quiz.TimeLimitDuration()
		expired := !orphan && limit > 0 && attempt.Elapsed(now) > limit+s.cfg.Grace
		if !orphan && !expired {
			continue
		}

		err := s.attempts.Delete(ctx, attempt.ID)
		if errors.Is(err, domain.ErrAttemptNotFound) {
			continue
		}
		if err != nil {
			s.log.Warn("sweep: delete attempt failed", "attempt_id", attempt.ID, "err", err)
			report.Failed++
			continue
		}
		report.Removed++
		if orphan {
			report.Orphaned++
		} else {
			report.Expired++
		}
	}

	s.log.Info("expired attempt sweep finished",
		"scanned", report.Scanned, "removed", report.Removed, "failed", report.Failed)
	return report, nil
}

// PurgeCompleted hard-deletes completed attempts that ended more than daysOld
// days ago. daysOld below the retention floor is rejected before any deletion.
func (s *Sweeper) PurgeCompleted(ctx context.Context, daysOld int) (int64, error) {
	if daysOld < s.cfg.MinRetentionDays {
		return 0, domain.Validationf("daysOld must be at least %d", s.cfg.MinRetentionDays)
	}
	cutoff := s.now().Add(-time.Duration(daysOld) * 24 * time.Hour)
	n, err := s.attempts.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge completed attempts: %w", err)
	}
	s.log.Info("old attempt purge finished", "days_old", daysOld, "removed", n)
	return n, nil
}

// Stats reports aggregate attempt counts.
func (s *Sweeper) Stats(ctx context.Context) (domain.AttemptStats, error) {
	return s.attempts.Stats(ctx)
}

// FullCleanup selects which sweeps a combined cleanup runs.
type FullCleanup struct {
	CleanupExpired  bool `json:"cleanupExpired"`
	CleanupOld      bool `json:"cleanupOld"`
	OldAttemptsDays int  `json:"oldAttemptsDays"`
}

// FullCleanupReport is the outcome of RunFull.
type FullCleanupReport struct {
	Expired    *SweepReport `json:"expired,omitempty"`
	OldRemoved *int64       `json:"oldRemoved,omitempty"`
}

// RunFull runs the requested sweeps. The retention floor is validated first so
// an invalid request deletes nothing.
func (s *Sweeper) RunFull(ctx context.Context, req FullCleanup) (FullCleanupReport, error) {
	days := req.OldAttemptsDays
	if days == 0 {
		days = s.cfg.RetentionDays
	}
	if req.CleanupOld && days < s.cfg.MinRetentionDays {
		return FullCleanupReport{}, domain.Validationf("oldAttemptsDays must be at least %d", s.cfg.MinRetentionDays)
	}

	var out FullCleanupReport
	if req.CleanupExpired {
		report, err := s.SweepExpired(ctx)
		if err != nil {
			return out, err
		}
		out.Expired = &report
	}
	if req.CleanupOld {
		n, err := s.PurgeCompleted(ctx, days)
		if err != nil {
			return out, err
		}
		out.OldRemoved = &n
	}
	return out, nil
}
