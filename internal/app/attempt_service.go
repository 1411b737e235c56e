package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"assessment-service/internal/domain"
	"assessment-service/internal/scoring"
	"github.com/google/uuid"
)

// DefaultStartGrace is tolerated past a quiz's time limit before StartAttempt
// discards a dangling attempt.
const DefaultStartGrace = 5 * time.Minute

// ExpirySweeper reclaims abandoned attempts.
type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (SweepReport, error)
}

// AttemptService owns the lifecycle of quiz attempts.
type AttemptService struct {
	attempts AttemptRepository
	quizzes  QuizRepository
	catalog  CatalogRepository

	progress  ProgressTracker
	points    PointsAwarder
	sweeper   ExpirySweeper
	listeners []ChangeListener

	startGrace time.Duration
	now        func() time.Time
	newID      func() string
	log        *slog.Logger
}

// AttemptOption customises an AttemptService.
type AttemptOption func(*AttemptService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) AttemptOption {
	return func(s *AttemptService) { s.now = now }
}

func WithStartGrace(d time.Duration) AttemptOption {
	return func(s *AttemptService) { s.startGrace = d }
}

func WithLogger(log *slog.Logger) AttemptOption {
	return func(s *AttemptService) { s.log = log }
}

func WithProgressTracker(p ProgressTracker) AttemptOption {
	return func(s *AttemptService) { s.progress = p }
}

func WithPointsAwarder(p PointsAwarder) AttemptOption {
	return func(s *AttemptService) { s.points = p }
}

// WithSweeper runs an expiry sweep before every start.
func WithSweeper(sw ExpirySweeper) AttemptOption {
	return func(s *AttemptService) { s.sweeper = sw }
}

func WithChangeListener(l ChangeListener) AttemptOption {
	return func(s *AttemptService) { s.listeners = append(s.listeners, l) }
}

func NewAttemptService(attempts AttemptRepository, quizzes QuizRepository, catalog CatalogRepository, opts ...AttemptOption) *AttemptService {
	s := &AttemptService{
		attempts:   attempts,
		quizzes:    quizzes,
		catalog:    catalog,
		startGrace: DefaultStartGrace,
		now:        time.Now,
		newID:      uuid.NewString,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartResult is an active attempt plus the learner-safe quiz content.
type StartResult struct {
	Attempt domain.Attempt `json:"attempt"`
	Quiz    domain.Quiz    `json:"quiz"`
	Resumed bool           `json:"resumed"`
}

// StartAttempt returns the caller's in-progress attempt for the quiz, creating
// one when none exists or the existing one outlived its time limit.
func (s *AttemptService) StartAttempt(ctx context.Context, quizID, userID string) (StartResult, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return StartResult{}, err
	}
	if !quiz.Published {
		return StartResult{}, domain.ErrQuizNotPublished
	}
	if err := s.checkEnrollment(ctx, quiz, userID); err != nil {
		return StartResult{}, err
	}
	if quiz.MaxAttempts > 0 {
		done, err := s.attempts.CountCompleted(ctx, quizID, userID)
		if err != nil {
			return StartResult{}, fmt.Errorf("count attempts: %w", err)
		}
		if done >= quiz.MaxAttempts {
			return StartResult{}, domain.Forbiddenf("maximum number of attempts (%d) reached for this quiz", quiz.MaxAttempts)
		}
	}

	if s.sweeper != nil {
		if _, err := s.sweeper.SweepExpired(ctx); err != nil {
			s.log.Warn("inline expiry sweep failed", "quiz_id", quizID, "err", err)
		}
	}

	existing, found, err := s.attempts.FindActive(ctx, quizID, userID)
	if err != nil {
		return StartResult{}, fmt.Errorf("find active attempt: %w", err)
	}
	if found {
		if !s.startExpired(quiz, existing) {
			return StartResult{Attempt: existing, Quiz: quiz.ForLearner(), Resumed: true}, nil
		}
		if err := s.attempts.Delete(ctx, existing.ID); err != nil && !errors.Is(err, domain.ErrAttemptNotFound) {
			return StartResult{}, fmt.Errorf("delete stale attempt: %w", err)
		}
		s.log.Info("discarded stale attempt", "attempt_id", existing.ID, "quiz_id", quizID, "user_id", userID)
	}

	attempt := domain.Attempt{
		ID:        s.newID(),
		QuizID:    quizID,
		UserID:    userID,
		StartedAt: s.now(),
		Answers:   []domain.Answer{},
		MaxScore:  quiz.MaxScore(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		if !errors.Is(err, domain.ErrActiveAttemptExists) {
			return StartResult{}, fmt.Errorf("create attempt: %w", err)
		}
		// A concurrent start won; continue with its attempt.
		winner, ok, ferr := s.attempts.FindActive(ctx, quizID, userID)
		if ferr != nil || !ok {
			return StartResult{}, err
		}
		return StartResult{Attempt: winner, Quiz: quiz.ForLearner(), Resumed: true}, nil
	}
	return StartResult{Attempt: attempt, Quiz: quiz.ForLearner()}, nil
}

func (s *AttemptService) startExpired(quiz domain.Quiz, attempt domain.Attempt) bool {
	limit := quiz.TimeLimitDuration()
	return limit > 0 && attempt.Elapsed(s.now()) >= limit+s.startGrace
}

func (s *AttemptService) checkEnrollment(ctx context.Context, quiz domain.Quiz, userID string) error {
	if quiz.TestSeriesID == "" {
		return nil
	}
	series, err := s.catalog.GetTestSeries(ctx, quiz.TestSeriesID)
	if err != nil {
		return err
	}
	if !series.Published {
		return domain.ErrTestSeriesNotPublished
	}
	enrolled, err := s.catalog.IsEnrolled(ctx, series.ID, userID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if enrolled {
		return nil
	}
	if series.IsFree() {
		return domain.Forbiddenf("you must enroll in this test series to take this quiz")
	}
	return domain.Forbiddenf("you must purchase this test series to take this quiz")
}

// SubmitResult is the frozen attempt and its score summary.
type SubmitResult struct {
	Attempt domain.Attempt      `json:"attempt"`
	Summary domain.ScoreSummary `json:"result"`
}

// SubmitAttempt scores and freezes an attempt. Progress and reward
// notifications are best-effort and never fail the submission.
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID, userID string, answers []domain.AnswerSubmission) (SubmitResult, error) {
	if answers == nil {
		return SubmitResult{}, domain.ErrAnswersRequired
	}

	attempt, err := s.attempts.Get(ctx, attemptID)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return SubmitResult{}, domain.ErrAttemptGone
	}
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load attempt: %w", err)
	}
	if attempt.UserID != userID {
		return SubmitResult{}, domain.ErrNotAttemptOwner
	}
	if attempt.Completed {
		return SubmitResult{}, domain.ErrAttemptCompleted
	}

	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return SubmitResult{}, err
	}

	now := s.now()
	if limit := quiz.TimeLimitDuration(); limit > 0 && attempt.Elapsed(now) > limit && len(answers) == 0 {
		return SubmitResult{}, domain.ErrAttemptExpired
	}

	res := scoring.Score(quiz, answers)
	attempt.Answers = res.Answers
	attempt.EndedAt = &now
	attempt.Score = res.Earned
	attempt.MaxScore = res.Total
	attempt.Percentage = res.Percentage
	attempt.Passed = res.Passed(quiz.PassingScore)
	attempt.Completed = true
	attempt.ElapsedSeconds = int(now.Sub(attempt.StartedAt).Seconds())

	if err := s.attempts.Complete(ctx, attempt); err != nil {
		switch {
		case errors.Is(err, domain.ErrAttemptNotFound):
			return SubmitResult{}, domain.ErrAttemptGone
		case errors.Is(err, domain.ErrAttemptCompleted):
			return SubmitResult{}, err
		}
		return SubmitResult{}, fmt.Errorf("save attempt: %w", err)
	}

	s.notifyCompletion(context.WithoutCancel(ctx), quiz, attempt)
	s.changed(ctx, quiz.ID)

	return SubmitResult{
		Attempt: attempt,
		Summary: domain.ScoreSummary{
			Score:      attempt.Score,
			MaxScore:   attempt.MaxScore,
			Percentage: attempt.Percentage,
			Passed:     attempt.Passed,
			TimeSpent:  attempt.ElapsedSeconds,
		},
	}, nil
}

func (s *AttemptService) notifyCompletion(ctx context.Context, quiz domain.Quiz, attempt domain.Attempt) {
	if s.progress != nil {
		if err := s.progress.QuizCompleted(ctx, attempt.UserID, quiz.ProgressTarget(), attempt.Percentage); err != nil {
			s.log.Warn("progress update failed", "attempt_id", attempt.ID, "user_id", attempt.UserID, "err", err)
		}
	}
	if !attempt.Passed || s.points == nil {
		return
	}
	amount := scoring.RewardPoints(attempt.Percentage)
	desc := fmt.Sprintf("Passed quiz %q with %.0f%%", quiz.Title, attempt.Percentage)
	if err := s.points.AwardPoints(ctx, attempt.UserID, amount, "quiz", desc); err != nil {
		s.log.Warn("reward points failed", "attempt_id", attempt.ID, "user_id", attempt.UserID, "amount", amount, "err", err)
	}
}

func (s *AttemptService) changed(ctx context.Context, quizID string) {
	for _, l := range s.listeners {
		l.AttemptsChanged(ctx, quizID)
	}
}

// AttemptView is an attempt with the quiz it was taken against.
type AttemptView struct {
	Attempt domain.Attempt `json:"attempt"`
	Quiz    domain.Quiz    `json:"quiz"`
}

// GetAttempt returns an attempt to its taker, the quiz owner or an admin.
// Correct answers are revealed to admins and quiz owners, or to the taker of a
// completed attempt when the quiz allows review.
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID string, who domain.Requester) (AttemptView, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return AttemptView{}, err
	}
	owner := quiz.OwnerID != "" && quiz.OwnerID == who.UserID
	if attempt.UserID != who.UserID && !owner && !who.IsAdmin() {
		return AttemptView{}, domain.ErrNotAttemptOwner
	}
	if who.IsAdmin() || owner || (quiz.AllowReview && attempt.Completed) {
		return AttemptView{Attempt: attempt, Quiz: quiz}, nil
	}
	return AttemptView{Attempt: attempt.Redacted(), Quiz: quiz.ForLearner()}, nil
}

// ListQuizAttempts returns every attempt of a quiz to its owner or an admin.
func (s *AttemptService) ListQuizAttempts(ctx context.Context, quizID string, who domain.Requester) ([]domain.Attempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !who.IsAdmin() && quiz.OwnerID != who.UserID {
		return nil, domain.ErrNotQuizOwner
	}
	return s.attempts.ListByQuiz(ctx, quizID)
}

// ListMyAttempts returns the caller's own attempts of a quiz.
func (s *AttemptService) ListMyAttempts(ctx context.Context, quizID, userID string) ([]domain.Attempt, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	return s.attempts.ListByUser(ctx, quizID, userID)
}

// DeleteQuizAttempts removes every attempt of a quiz; quiz deletion calls this
// explicitly. Once the quiz itself is gone only admins may purge.
func (s *AttemptService) DeleteQuizAttempts(ctx context.Context, quizID string, who domain.Requester) (int64, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	switch {
	case errors.Is(err, domain.ErrQuizNotFound):
		if !who.IsAdmin() {
			return 0, err
		}
	case err != nil:
		return 0, err
	case !who.IsAdmin() && quiz.OwnerID != who.UserID:
		return 0, domain.ErrNotQuizOwner
	}

	n, err := s.attempts.DeleteByQuiz(ctx, quizID)
	if err != nil {
		return 0, fmt.Errorf("delete quiz attempts: %w", err)
	}
	s.log.Info("deleted quiz attempts", "quiz_id", quizID, "count", n)
	s.changed(ctx, quizID)
	return n, nil
}
