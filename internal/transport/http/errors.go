package http

import (
	"log/slog"
	"net/http"

	"assessment-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain kinds onto status codes. Internal failures are
// logged and only described to the client in development mode.
func writeError(c *gin.Context, log *slog.Logger, dev bool, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	msg := domain.MessageOf(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		msg = "internal server error"
		if dev {
			msg = err.Error()
		}
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
