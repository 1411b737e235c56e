package app

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"assessment-service/internal/domain"
)

// DefaultLeaderboardSize is the number of ranked entries returned.
const DefaultLeaderboardSize = 10

// LeaderboardService aggregates completed attempts into ranked boards.
type LeaderboardService struct {
	attempts AttemptRepository
	quizzes  QuizRepository
	cache    LeaderboardCache
	hub      *LeaderboardHub
	size     int
	now      func() time.Time
	log      *slog.Logger
}

func NewLeaderboardService(attempts AttemptRepository, quizzes QuizRepository, cache LeaderboardCache, hub *LeaderboardHub, size int, log *slog.Logger) *LeaderboardService {
	if size <= 0 {
		size = DefaultLeaderboardSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &LeaderboardService{
		attempts: attempts,
		quizzes:  quizzes,
		cache:    cache,
		hub:      hub,
		size:     size,
		now:      time.Now,
		log:      log,
	}
}

// GetLeaderboard returns the top entries of a quiz. Unpublished quizzes are
// visible to admins only.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, quizID string, who domain.Requester) (domain.Leaderboard, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if !quiz.Published && !who.IsAdmin() {
		return domain.Leaderboard{}, domain.ErrQuizNotPublished
	}
	return s.board(ctx, quizID)
}

func (s *LeaderboardService) board(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	if s.cache != nil {
		if board, ok := s.cache.Get(ctx, quizID); ok {
			return board, nil
		}
	}
	completed, err := s.attempts.ListCompleted(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	board := domain.Leaderboard{
		QuizID:    quizID,
		Entries:   Rank(completed, s.size),
		UpdatedAt: s.now(),
	}
	if s.cache != nil {
		s.cache.Set(ctx, board)
	}
	return board, nil
}

// Subscribe streams the quiz leaderboard, starting with the current board.
func (s *LeaderboardService) Subscribe(ctx context.Context, quizID string, who domain.Requester) (<-chan domain.Leaderboard, func(), error) {
	board, err := s.GetLeaderboard(ctx, quizID, who)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(board)
	return ch, cancel, nil
}

// AttemptsChanged drops the cached board and pushes a fresh one to live subscribers.
func (s *LeaderboardService) AttemptsChanged(ctx context.Context, quizID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, quizID)
	}
	if s.hub == nil || !s.hub.HasSubscribers(quizID) {
		return
	}
	board, err := s.board(ctx, quizID)
	if err != nil {
		s.log.Warn("leaderboard refresh failed", "quiz_id", quizID, "err", err)
		return
	}
	s.hub.Publish(board)
}

type standing struct {
	userID      string
	score       int
	percentage  float64
	attempts    int
	completedAt time.Time
}

// Rank groups completed attempts by user and orders users by best percentage,
// then best score, then the earliest completion of their best percentage. Best
// score and best percentage may come from different attempts.
func Rank(attempts []domain.Attempt, size int) []domain.LeaderboardEntry {
	byUser := make(map[string]*standing)
	for _, a := range attempts {
		if !a.Completed || a.EndedAt == nil {
			continue
		}
		st, ok := byUser[a.UserID]
		if !ok {
			st = &standing{userID: a.UserID, score: a.Score, percentage: a.Percentage, completedAt: *a.EndedAt}
			byUser[a.UserID] = st
		}
		st.attempts++
		if a.Score > st.score {
			st.score = a.Score
		}
		switch {
		case a.Percentage > st.percentage:
			st.percentage = a.Percentage
			st.completedAt = *a.EndedAt
		case a.Percentage == st.percentage && a.EndedAt.Before(st.completedAt):
			st.completedAt = *a.EndedAt
		}
	}

	standings := make([]*standing, 0, len(byUser))
	for _, st := range byUser {
		standings = append(standings, st)
	}
	sort.Slice(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.percentage != b.percentage {
			return a.percentage > b.percentage
		}
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.completedAt.Equal(b.completedAt) {
			return a.completedAt.Before(b.completedAt)
		}
		return a.userID < b.userID
	})

	if len(standings) > size {
		standings = standings[:size]
	}
	entries := make([]domain.LeaderboardEntry, len(standings))
	for i, st := range standings {
		entries[i] = domain.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      st.userID,
			Score:       st.score,
			Percentage:  st.percentage,
			Attempts:    st.attempts,
			CompletedAt: st.completedAt,
		}
	}
	return entries
}
