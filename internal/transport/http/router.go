package http

import (
	"log/slog"
	"net/http"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	Attempts       *app.AttemptService
	Leaderboard    *app.LeaderboardService
	Sweeper        *app.Sweeper
	Auth           *Authenticator
	AllowedOrigins []string
	Development    bool
	Log            *slog.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	attempts := NewAttemptHandler(cfg.Attempts, cfg.Leaderboard, log, cfg.Development)
	live := NewWSHandler(cfg.Leaderboard, log, cfg.Development)
	admin := NewAdminHandler(cfg.Sweeper, log, cfg.Development)

	authed := r.Group("/", cfg.Auth.Middleware())
	{
		authed.POST("/quizzes/:quizId/attempts", attempts.Start)
		authed.GET("/quizzes/:quizId/attempts", attempts.ListForQuiz)
		authed.DELETE("/quizzes/:quizId/attempts", attempts.DeleteForQuiz)
		authed.GET("/quizzes/:quizId/my-attempts", attempts.ListMine)
		authed.GET("/quizzes/:quizId/leaderboard", attempts.Leaderboard)
		authed.GET("/quizzes/:quizId/leaderboard/live", live.ServeLive)
		authed.POST("/quizzes/attempts/:attemptId/submit", attempts.Submit)
		authed.GET("/quizzes/attempts/:attemptId", attempts.Get)
	}

	cleanup := r.Group("/admin/attempts/cleanup", cfg.Auth.Middleware(), RequireRoles(domain.RoleAdmin))
	{
		cleanup.GET("/stats", admin.Stats)
		cleanup.POST("/expired", admin.Expired)
		cleanup.POST("/old", admin.Old)
		cleanup.POST("/full", admin.Full)
	}
	return r
}
