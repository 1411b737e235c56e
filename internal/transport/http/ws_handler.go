package http

import (
	"log/slog"
	"net/http"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler streams live leaderboards over websockets.
type WSHandler struct {
	leaderboard *app.LeaderboardService
	upgrader    websocket.Upgrader
	log         *slog.Logger
	dev         bool
}

func NewWSHandler(leaderboard *app.LeaderboardService, log *slog.Logger, dev bool) *WSHandler {
	return &WSHandler{
		leaderboard: leaderboard,
		log:         log,
		dev:         dev,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeLive handles GET /quizzes/:quizId/leaderboard/live. The current board is
// sent on connect and again after every submission to the quiz.
func (h *WSHandler) ServeLive(c *gin.Context) {
	quizID := c.Param("quizId")
	updates, cancel, err := h.leaderboard.Subscribe(c.Request.Context(), quizID, requester(c))
	if err != nil {
		writeError(c, h.log, h.dev, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "quiz_id", quizID, "err", err)
		return
	}
	defer conn.Close()

	// Inbound frames are ignored; reading detects the client going away.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case board, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[domain.Leaderboard]{Type: "leaderboard", Payload: board}); err != nil {
				h.log.Debug("ws write error", "quiz_id", quizID, "err", err)
				return
			}
		case <-readerDone:
			return
		}
	}
}
