package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"assessment-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// uniqueViolation is the SQLSTATE raised by the one-active-attempt index.
const uniqueViolation = "23505"

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:qa"`

	ID             string          `bun:"id,pk"`
	QuizID         string          `bun:"quiz_id"`
	UserID         string          `bun:"user_id"`
	StartedAt      time.Time       `bun:"started_at"`
	EndedAt        *time.Time      `bun:"ended_at"`
	Answers        []domain.Answer `bun:"answers,type:jsonb"`
	Score          int             `bun:"score"`
	MaxScore       int             `bun:"max_score"`
	Percentage     float64         `bun:"percentage"`
	Passed         bool            `bun:"passed"`
	Completed      bool            `bun:"completed"`
	ElapsedSeconds int             `bun:"time_spent"`
}

func toRow(a domain.Attempt) *attemptRow {
	answers := a.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}
	return &attemptRow{
		ID:             a.ID,
		QuizID:         a.QuizID,
		UserID:         a.UserID,
		StartedAt:      a.StartedAt.UTC(),
		EndedAt:        a.EndedAt,
		Answers:        answers,
		Score:          a.Score,
		MaxScore:       a.MaxScore,
		Percentage:     a.Percentage,
		Passed:         a.Passed,
		Completed:      a.Completed,
		ElapsedSeconds: a.ElapsedSeconds,
	}
}

func (r *attemptRow) toDomain() domain.Attempt {
	answers := r.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}
	return domain.Attempt{
		ID:             r.ID,
		QuizID:         r.QuizID,
		UserID:         r.UserID,
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
		Answers:        answers,
		Score:          r.Score,
		MaxScore:       r.MaxScore,
		Percentage:     r.Percentage,
		Passed:         r.Passed,
		Completed:      r.Completed,
		ElapsedSeconds: r.ElapsedSeconds,
	}
}

// AttemptStore persists attempts in the quiz_attempts table. The partial
// unique index on (quiz_id, user_id) WHERE NOT completed backs the
// one-active-attempt rule.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.Attempt) error {
	_, err := s.db.NewInsert().Model(toRow(attempt)).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.ErrActiveAttemptExists
	}
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	row := new(attemptRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", attemptID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("select attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *AttemptStore) FindActive(ctx context.Context, quizID, userID string) (domain.Attempt, bool, error) {
	row := new(attemptRow)
	err := s.db.NewSelect().Model(row).
		Where("quiz_id = ?", quizID).
		Where("user_id = ?", userID).
		Where("completed = FALSE").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, false, nil
	}
	if err != nil {
		return domain.Attempt{}, false, fmt.Errorf("select active attempt: %w", err)
	}
	return row.toDomain(), true, nil
}

func (s *AttemptStore) CountCompleted(ctx context.Context, quizID, userID string) (int, error) {
	return s.db.NewSelect().Model((*attemptRow)(nil)).
		Where("quiz_id = ?", quizID).
		Where("user_id = ?", userID).
		Where("completed = TRUE").
		Count(ctx)
}

// Complete freezes the attempt only while it is still open, so two racing
// submissions cannot both succeed.
func (s *AttemptStore) Complete(ctx context.Context, attempt domain.Attempt) error {
	res, err := s.db.NewUpdate().Model(toRow(attempt)).
		Column("ended_at", "answers", "score", "max_score", "percentage", "passed", "completed", "time_spent").
		Where("id = ?", attempt.ID).
		Where("completed = FALSE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.Get(ctx, attempt.ID); err != nil {
		return err
	}
	return domain.ErrAttemptCompleted
}

func (s *AttemptStore) Delete(ctx context.Context, attemptID string) error {
	n, err := s.deleteWhere(ctx, "id = ?", attemptID)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (s *AttemptStore) DeleteByQuiz(ctx context.Context, quizID string) (int64, error) {
	return s.deleteWhere(ctx, "quiz_id = ?", quizID)
}

func (s *AttemptStore) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteWhere(ctx, "completed = TRUE AND ended_at < ?", cutoff.UTC())
}

func (s *AttemptStore) deleteWhere(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := s.db.NewDelete().Model((*attemptRow)(nil)).Where(query, args...).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete attempts: %w", err)
	}
	return res.RowsAffected()
}

func (s *AttemptStore) ListIncomplete(ctx context.Context) ([]domain.Attempt, error) {
	return s.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("completed = FALSE")
	})
}

func (s *AttemptStore) ListCompleted(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	return s.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("quiz_id = ?", quizID).Where("completed = TRUE")
	})
}

func (s *AttemptStore) ListByQuiz(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	return s.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("quiz_id = ?", quizID)
	})
}

func (s *AttemptStore) ListByUser(ctx context.Context, quizID, userID string) ([]domain.Attempt, error) {
	return s.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("quiz_id = ?", quizID).Where("user_id = ?", userID)
	})
}

func (s *AttemptStore) list(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]domain.Attempt, error) {
	var rows []attemptRow
	q := s.db.NewSelect().Model(&rows)
	if err := filter(q).Order("started_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]domain.Attempt, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *AttemptStore) Stats(ctx context.Context) (domain.AttemptStats, error) {
	var (
		stats   domain.AttemptStats
		average sql.NullFloat64
	)
	err := s.db.NewSelect().Model((*attemptRow)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("COUNT(*) FILTER (WHERE completed)").
		ColumnExpr("AVG(percentage) FILTER (WHERE completed)").
		Scan(ctx, &stats.Total, &stats.Completed, &average)
	if err != nil {
		return domain.AttemptStats{}, fmt.Errorf("attempt stats: %w", err)
	}
	stats.Incomplete = stats.Total - stats.Completed
	if average.Valid {
		stats.AverageScore = average.Float64
	}
	return stats, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}
