package memory

import (
	"context"
	"sync"
	"time"

	"assessment-service/internal/domain"
)

// LeaderboardCache keeps computed boards in process until they expire or a
// submission invalidates them.
type LeaderboardCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu     sync.RWMutex
	boards map[string]cachedBoard
}

type cachedBoard struct {
	board     domain.Leaderboard
	expiresAt time.Time
}

func NewLeaderboardCache(ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{ttl: ttl, clock: time.Now, boards: make(map[string]cachedBoard)}
}

func (c *LeaderboardCache) Get(_ context.Context, quizID string) (domain.Leaderboard, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.boards[quizID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Leaderboard{}, false
	}
	return entry.board, true
}

func (c *LeaderboardCache) Set(_ context.Context, board domain.Leaderboard) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.boards[board.QuizID] = cachedBoard{board: board, expiresAt: c.clock().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *LeaderboardCache) Invalidate(_ context.Context, quizID string) {
	c.mu.Lock()
	delete(c.boards, quizID)
	c.mu.Unlock()
}
