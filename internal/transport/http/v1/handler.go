// Package v1 provides the public HTTP handlers of sopdesk.
package v1

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/sopdesk/internal/config"
	"github.com/xiaot623/gogo/sopdesk/internal/domain"
	"github.com/xiaot623/gogo/sopdesk/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service        *service.Service
	logger         *zap.Logger
	upgrader       websocket.Upgrader
	wsReadLimit    int64
	wsWriteTimeout time.Duration
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, cfg *config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		wsReadLimit:    cfg.WSReadLimit,
		wsWriteTimeout: cfg.WSWriteTimeout,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Dialogue
	e.POST("/v1/sop/generate", h.Generate)
	e.POST("/api/sop/generate", h.Generate)
	e.GET("/v1/sop/ws", h.TurnSocket)
	e.GET("/v1/sop/schema", h.Schema)

	// Archive
	e.POST("/v1/sop/save", h.SaveBlueprint)
	e.POST("/api/sop/save", h.SaveBlueprint)
	e.GET("/v1/blueprints", h.ListBlueprints)
	e.GET("/v1/blueprints/:record_id", h.GetBlueprint)
	e.POST("/v1/leads", h.CreateLead)

	// Tracing
	e.GET("/v1/turns/:turn_id/events", h.GetTurnEvents)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorStatus maps a service error to a status, code and caller-safe message.
func errorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, domain.ErrorCodeInvalidRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrorCodeNotFound, err.Error()
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, domain.ErrorCodeUpstreamUnavailable, domain.UpstreamApology
	default:
		return http.StatusInternalServerError, domain.ErrorCodeInternal, "internal error"
	}
}

func (h *Handler) writeError(c echo.Context, err error) error {
	status, code, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(status, map[string]string{"error": msg, "code": code})
}
