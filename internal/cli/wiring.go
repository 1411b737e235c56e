package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/config"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	"assessment-service/internal/infra/postgres"
	"assessment-service/internal/infra/rabbit"
	infraredis "assessment-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// components are the wired repositories and services shared by the commands.
type components struct {
	attempts    *app.AttemptService
	leaderboard *app.LeaderboardService
	sweeper     *app.Sweeper
	closers     []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// wire picks Postgres, Redis and RabbitMQ adapters when configured and falls
// back to in-process ones otherwise.
func wire(ctx context.Context, cfg config.Config, log *slog.Logger) (*components, error) {
	c := &components{}

	var (
		loader       memory.QuizLoader = memory.NewStaticQuizzes(sampleQuizzes()...)
		catalog      app.CatalogRepository
		attemptStore app.AttemptRepository = memory.NewAttemptStore()
	)
	catalog = memory.NewStaticCatalog()

	if cfg.Postgres.URL != "" {
		db := openBun(cfg.Postgres.URL)
		c.closers = append(c.closers, func() { _ = db.Close() })
		if err := runMigrations(ctx, db, log); err != nil {
			c.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.closers = append(c.closers, pool.Close)
		loader = postgres.NewQuizLoader(pool)
		catalog = postgres.NewCatalogLoader(pool)
		attemptStore = postgres.NewAttemptStore(db)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	boardTTL := config.TTLDuration(cfg.Leaderboard.CacheTTL, time.Minute)
	var (
		quizzes    app.QuizRepository
		boardCache app.LeaderboardCache
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			c.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		quizzes = infraredis.NewQuizRepository(client, loader, quizTTL, log)
		boardCache = infraredis.NewLeaderboardCache(client, boardTTL, log)
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
		boardCache = memory.NewLeaderboardCache(boardTTL)
	}

	var (
		progress app.ProgressTracker
		points   app.PointsAwarder
	)
	if cfg.RabbitMQ.URL != "" {
		pub, err := rabbit.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = pub.Close() })
		progress, points = pub, pub
	} else {
		events := memory.NewEventLog(log)
		progress, points = events, events
	}

	// The sweeper reads quizzes uncached so deleted quizzes are seen at once.
	c.sweeper = app.NewSweeper(attemptStore, loader, app.SweeperConfig{
		Grace:            config.TTLDuration(cfg.Attempts.SweepGrace, app.DefaultSweepGrace),
		RetentionDays:    cfg.Attempts.RetentionDays,
		MinRetentionDays: cfg.Attempts.MinRetentionDays,
	}, log)
	c.leaderboard = app.NewLeaderboardService(attemptStore, quizzes, boardCache, app.NewLeaderboardHub(), cfg.Leaderboard.Size, log)
	c.attempts = app.NewAttemptService(attemptStore, quizzes, catalog,
		app.WithLogger(log),
		app.WithStartGrace(config.TTLDuration(cfg.Attempts.StartGrace, app.DefaultStartGrace)),
		app.WithSweeper(c.sweeper),
		app.WithProgressTracker(progress),
		app.WithPointsAwarder(points),
		app.WithChangeListener(c.leaderboard),
	)
	return c, nil
}

// sampleQuizzes seeds the in-process loader when no database is configured.
func sampleQuizzes() []domain.Quiz {
	return []domain.Quiz{
		{
			ID:           "quiz-1",
			Title:        "Warm-up",
			TimeLimit:    10,
			PassingScore: 60,
			Published:    true,
			OwnerID:      "admin",
			AllowReview:  true,
			Questions: []domain.Question{
				{
					ID:     "q1",
					Text:   "What is 2 + 2?",
					Points: 1,
					Kind: domain.MultipleChoice{Options: []domain.Option{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5"},
					}},
				},
				{
					ID:     "q2",
					Text:   "The Earth orbits the Sun.",
					Points: 1,
					Kind: domain.TrueFalse{Options: []domain.Option{
						{ID: "true", Text: "True", Correct: true},
						{ID: "false", Text: "False"},
					}},
				},
				{ID: "q3", Text: "Capital of France?", Points: 2, Kind: domain.ShortAnswer{CorrectAnswer: "Paris"}},
				{ID: "q4", Text: "Explain photosynthesis.", Points: 5, Kind: domain.Essay{}},
			},
		},
	}
}
