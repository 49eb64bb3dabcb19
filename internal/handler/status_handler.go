package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/seatwatch/internal/middleware"
	"github.com/noah-isme/seatwatch/internal/service"
	"github.com/noah-isme/seatwatch/pkg/response"
)

type statusQuery interface {
	Status(ctx context.Context) (*service.MonitorStatus, error)
	RequestResync(ctx context.Context, requestedBy string) error
}

// StatusHandler reports scheduler progress and accepts admin commands.
type StatusHandler struct {
	status statusQuery
}

// NewStatusHandler constructs StatusHandler.
func NewStatusHandler(status statusQuery) *StatusHandler {
	return &StatusHandler{status: status}
}

// Status godoc
// @Summary Scheduler status and last cycle report
// @Tags Status
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /status [get]
func (h *StatusHandler) Status(c *gin.Context) {
	status, err := h.status.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Resync godoc
// @Summary Request a catalog resync on the next cycle
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Success 202 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/resync [post]
func (h *StatusHandler) Resync(c *gin.Context) {
	requestedBy := ""
	if claims := middleware.Operator(c); claims != nil {
		requestedBy = claims.Subject
	}
	if err := h.status.RequestResync(c.Request.Context(), requestedBy); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"resync": "scheduled"})
}
