package app

import (
	"context"
	"time"

	"assessment-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// CatalogRepository answers test-series publish and enrolment questions.
type CatalogRepository interface {
	GetTestSeries(ctx context.Context, seriesID string) (domain.TestSeries, error)
	IsEnrolled(ctx context.Context, seriesID, userID string) (bool, error)
}

// AttemptRepository persists attempts. Implementations must refuse a second
// non-completed attempt for the same (quiz, user) with domain.ErrActiveAttemptExists,
// and return domain.ErrAttemptNotFound for unknown ids.
type AttemptRepository interface {
	Create(ctx context.Context, attempt domain.Attempt) error
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	FindActive(ctx context.Context, quizID, userID string) (domain.Attempt, bool, error)
	CountCompleted(ctx context.Context, quizID, userID string) (int, error)
	// Complete freezes a scored attempt. It fails with ErrAttemptCompleted when
	// the stored attempt is already frozen.
	Complete(ctx context.Context, attempt domain.Attempt) error
	Delete(ctx context.Context, attemptID string) error
	DeleteByQuiz(ctx context.Context, quizID string) (int64, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListIncomplete(ctx context.Context) ([]domain.Attempt, error)
	ListCompleted(ctx context.Context, quizID string) ([]domain.Attempt, error)
	ListByQuiz(ctx context.Context, quizID string) ([]domain.Attempt, error)
	ListByUser(ctx context.Context, quizID, userID string) ([]domain.Attempt, error)
	Stats(ctx context.Context) (domain.AttemptStats, error)
}

// ProgressTracker is the course-progress collaborator.
type ProgressTracker interface {
	QuizCompleted(ctx context.Context, userID, targetID string, percentage float64) error
}

// PointsAwarder is the reward-points collaborator.
type PointsAwarder interface {
	AwardPoints(ctx context.Context, userID string, amount int, category, description string) error
}

// LeaderboardCache stores computed leaderboards between submissions.
type LeaderboardCache interface {
	Get(ctx context.Context, quizID string) (domain.Leaderboard, bool)
	Set(ctx context.Context, board domain.Leaderboard)
	Invalidate(ctx context.Context, quizID string)
}

// ChangeListener is told whenever the completed attempts of a quiz change.
type ChangeListener interface {
	AttemptsChanged(ctx context.Context, quizID string)
}
