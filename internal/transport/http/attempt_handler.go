package http

import (
	"log/slog"
	"net/http"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/gin-gonic/gin"
)

// AttemptHandler serves the attempt lifecycle and leaderboard endpoints.
type AttemptHandler struct {
	attempts    *app.AttemptService
	leaderboard *app.LeaderboardService
	log         *slog.Logger
	dev         bool
}

func NewAttemptHandler(attempts *app.AttemptService, leaderboard *app.LeaderboardService, log *slog.Logger, dev bool) *AttemptHandler {
	return &AttemptHandler{attempts: attempts, leaderboard: leaderboard, log: log, dev: dev}
}

func (h *AttemptHandler) fail(c *gin.Context, err error) {
	writeError(c, h.log, h.dev, err)
}

// Start handles POST /quizzes/:quizId/attempts.
func (h *AttemptHandler) Start(c *gin.Context) {
	res, err := h.attempts.StartAttempt(c.Request.Context(), c.Param("quizId"), requester(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

type submitRequest struct {
	Answers []domain.AnswerSubmission `json:"answers"`
}

// Submit handles POST /quizzes/attempts/:attemptId/submit.
func (h *AttemptHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, domain.Validationf("invalid request body: %v", err))
		return
	}
	res, err := h.attempts.SubmitAttempt(c.Request.Context(), c.Param("attemptId"), requester(c).UserID, req.Answers)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Get handles GET /quizzes/attempts/:attemptId.
func (h *AttemptHandler) Get(c *gin.Context) {
	view, err := h.attempts.GetAttempt(c.Request.Context(), c.Param("attemptId"), requester(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListForQuiz handles GET /quizzes/:quizId/attempts.
func (h *AttemptHandler) ListForQuiz(c *gin.Context) {
	attempts, err := h.attempts.ListQuizAttempts(c.Request.Context(), c.Param("quizId"), requester(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts, "count": len(attempts)})
}

// ListMine handles GET /quizzes/:quizId/my-attempts.
func (h *AttemptHandler) ListMine(c *gin.Context) {
	attempts, err := h.attempts.ListMyAttempts(c.Request.Context(), c.Param("quizId"), requester(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts, "count": len(attempts)})
}

// DeleteForQuiz handles DELETE /quizzes/:quizId/attempts.
func (h *AttemptHandler) DeleteForQuiz(c *gin.Context) {
	n, err := h.attempts.DeleteQuizAttempts(c.Request.Context(), c.Param("quizId"), requester(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// Leaderboard handles GET /quizzes/:quizId/leaderboard.
func (h *AttemptHandler) Leaderboard(c *gin.Context) {
	board, err := h.leaderboard.GetLeaderboard(c.Request.Context(), c.Param("quizId"), requester(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}
