package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the cleanup operations to administrators.
type AdminHandler struct {
	sweeper *app.Sweeper
	log     *slog.Logger
	dev     bool
}

func NewAdminHandler(sweeper *app.Sweeper, log *slog.Logger, dev bool) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, log: log, dev: dev}
}

// bindOptional decodes a JSON body when one was sent.
func bindOptional(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.Validationf("invalid request body: %v", err)
	}
	return nil
}

// Stats handles GET /admin/attempts/cleanup/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.sweeper.Stats(c.Request.Context())
	if err != nil {
		writeError(c, h.log, h.dev, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Expired handles POST /admin/attempts/cleanup/expired.
func (h *AdminHandler) Expired(c *gin.Context) {
	report, err := h.sweeper.SweepExpired(c.Request.Context())
	if err != nil {
		writeError(c, h.log, h.dev, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type purgeRequest struct {
	DaysOld *int `json:"daysOld"`
}

// Old handles POST /admin/attempts/cleanup/old.
func (h *AdminHandler) Old(c *gin.Context) {
	var req purgeRequest
	if err := bindOptional(c, &req); err != nil {
		writeError(c, h.log, h.dev, err)
		return
	}
	days := h.sweeper.RetentionDays()
	if req.DaysOld != nil {
		days = *req.DaysOld
	}
	n, err := h.sweeper.PurgeCompleted(c.Request.Context(), days)
	if err != nil {
		writeError(c, h.log, h.dev, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n, "daysOld": days})
}

type fullCleanupRequest struct {
	CleanupExpired  *bool `json:"cleanupExpired"`
	CleanupOld      *bool `json:"cleanupOld"`
	OldAttemptsDays int   `json:"oldAttemptsDays"`
}

// Full handles POST /admin/attempts/cleanup/full. Both sweeps run unless
// explicitly disabled.
func (h *AdminHandler) Full(c *gin.Context) {
	var req fullCleanupRequest
	if err := bindOptional(c, &req); err != nil {
		writeError(c, h.log, h.dev, err)
		return
	}
	report, err := h.sweeper.RunFull(c.Request.Context(), app.FullCleanup{
		CleanupExpired:  req.CleanupExpired == nil || *req.CleanupExpired,
		CleanupOld:      req.CleanupOld == nil || *req.CleanupOld,
		OldAttemptsDays: req.OldAttemptsDays,
	})
	if err != nil {
		writeError(c, h.log, h.dev, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
