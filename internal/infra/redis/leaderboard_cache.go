package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"assessment-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// LeaderboardCache shares computed leaderboards between instances.
// Boards are stored as: SET leaderboard:{quizID} {json} EX ttl
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration, log *slog.Logger) *LeaderboardCache {
	if log == nil {
		log = slog.Default()
	}
	return &LeaderboardCache{client: client, ttl: ttl, log: log}
}

func (c *LeaderboardCache) Get(ctx context.Context, quizID string) (domain.Leaderboard, bool) {
	raw, err := c.client.Get(ctx, c.key(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("leaderboard cache read failed", "quiz_id", quizID, "err", err)
		}
		return domain.Leaderboard{}, false
	}
	var board domain.Leaderboard
	if err := json.Unmarshal(raw, &board); err != nil {
		return domain.Leaderboard{}, false
	}
	return board, true
}

func (c *LeaderboardCache) Set(ctx context.Context, board domain.Leaderboard) {
	if c.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(board)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(board.QuizID), payload, c.ttl).Err(); err != nil {
		c.log.Warn("leaderboard cache write failed", "quiz_id", board.QuizID, "err", err)
	}
}

// Invalidate is best-effort; a stale board ages out with its TTL.
func (c *LeaderboardCache) Invalidate(ctx context.Context, quizID string) {
	if err := c.client.Del(ctx, c.key(quizID)).Err(); err != nil {
		c.log.Warn("leaderboard cache invalidate failed", "quiz_id", quizID, "err", err)
	}
}

func (c *LeaderboardCache) key(quizID string) string {
	return "leaderboard:" + quizID
}
