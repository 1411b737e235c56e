package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"assessment-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository. At most
// one non-completed attempt per (quiz, user) is admitted.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string]domain.Attempt)}
}

func (s *AttemptStore) Create(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if !a.Completed && a.QuizID == attempt.QuizID && a.UserID == attempt.UserID {
			return domain.ErrActiveAttemptExists
		}
	}
	s.attempts[attempt.ID] = clone(attempt)
	return nil
}

func (s *AttemptStore) Get(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return clone(a), nil
}

func (s *AttemptStore) FindActive(_ context.Context, quizID, userID string) (domain.Attempt, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.attempts {
		if !a.Completed && a.QuizID == quizID && a.UserID == userID {
			return clone(a), true, nil
		}
	}
	return domain.Attempt{}, false, nil
}

func (s *AttemptStore) CountCompleted(_ context.Context, quizID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.attempts {
		if a.Completed && a.QuizID == quizID && a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *AttemptStore) Complete(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.attempts[attempt.ID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if stored.Completed {
		return domain.ErrAttemptCompleted
	}
	attempt.Completed = true
	s.attempts[attempt.ID] = clone(attempt)
	return nil
}

func (s *AttemptStore) Delete(_ context.Context, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attemptID]; !ok {
		return domain.ErrAttemptNotFound
	}
	delete(s.attempts, attemptID)
	return nil
}

func (s *AttemptStore) DeleteByQuiz(_ context.Context, quizID string) (int64, error) {
	return s.deleteWhere(func(a domain.Attempt) bool { return a.QuizID == quizID }), nil
}

func (s *AttemptStore) DeleteCompletedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return s.deleteWhere(func(a domain.Attempt) bool {
		return a.Completed && a.EndedAt != nil && a.EndedAt.Before(cutoff)
	}), nil
}

func (s *AttemptStore) deleteWhere(match func(domain.Attempt) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, a := range s.attempts {
		if match(a) {
			delete(s.attempts, id)
			n++
		}
	}
	return n
}

func (s *AttemptStore) ListIncomplete(_ context.Context) ([]domain.Attempt, error) {
	return s.list(func(a domain.Attempt) bool { return !a.Completed }), nil
}

func (s *AttemptStore) ListCompleted(_ context.Context, quizID string) ([]domain.Attempt, error) {
	return s.list(func(a domain.Attempt) bool { return a.Completed && a.QuizID == quizID }), nil
}

func (s *AttemptStore) ListByQuiz(_ context.Context, quizID string) ([]domain.Attempt, error) {
	return s.list(func(a domain.Attempt) bool { return a.QuizID == quizID }), nil
}

func (s *AttemptStore) ListByUser(_ context.Context, quizID, userID string) ([]domain.Attempt, error) {
	return s.list(func(a domain.Attempt) bool { return a.QuizID == quizID && a.UserID == userID }), nil
}

// list returns matching attempts, newest first.
func (s *AttemptStore) list(match func(domain.Attempt) bool) []domain.Attempt {
	s.mu.RLock()
	out := make([]domain.Attempt, 0)
	for _, a := range s.attempts {
		if match(a) {
			out = append(out, clone(a))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (s *AttemptStore) Stats(_ context.Context) (domain.AttemptStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats domain.AttemptStats
	var sum float64
	for _, a := range s.attempts {
		stats.Total++
		if a.Completed {
			stats.Completed++
			sum += a.Percentage
		}
	}
	stats.Incomplete = stats.Total - stats.Completed
	if stats.Completed > 0 {
		stats.AverageScore = sum / float64(stats.Completed)
	}
	return stats, nil
}

func clone(a domain.Attempt) domain.Attempt {
	a.Answers = append([]domain.Answer(nil), a.Answers...)
	if a.Answers == nil {
		a.Answers = []domain.Answer{}
	}
	if a.EndedAt != nil {
		end := *a.EndedAt
		a.EndedAt = &end
	}
	return a
}
