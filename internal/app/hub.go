package app

import (
	"sync"

	"assessment-service/internal/domain"
)

// LeaderboardHub fans out leaderboard snapshots to live subscribers per quiz.
type LeaderboardHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardHub() *LeaderboardHub {
	return &LeaderboardHub{subscribers: make(map[string]map[chan domain.Leaderboard]struct{})}
}

// Subscribe registers a channel that first receives initial and then every
// published board for the quiz. The caller must invoke cancel to avoid leaks.
func (h *LeaderboardHub) Subscribe(initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	h.mu.Lock()
	subs, ok := h.subscribers[initial.QuizID]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		h.subscribers[initial.QuizID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[initial.QuizID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.subscribers, initial.QuizID)
		}
	}
	return ch, cancel
}

// HasSubscribers reports whether anyone listens to the quiz.
func (h *LeaderboardHub) HasSubscribers(quizID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[quizID]) > 0
}

// Publish delivers a board to the quiz's subscribers without blocking.
func (h *LeaderboardHub) Publish(board domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[board.QuizID] {
		select {
		case ch <- board:
		default:
			// Slow subscriber: replace its oldest pending board.
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
}
