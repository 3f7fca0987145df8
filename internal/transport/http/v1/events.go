package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// GetTurnEvents retrieves the trace events of a turn.
// GET /v1/turns/:turn_id/events?types=llm_call_done,phase_violation
func (h *Handler) GetTurnEvents(c echo.Context) error {
	var types []string
	if t := c.QueryParam("types"); t != "" {
		for _, name := range strings.Split(t, ",") {
			if name = strings.TrimSpace(name); name != "" {
				types = append(types, name)
			}
		}
	}

	events, err := h.service.TurnEvents(c.Request().Context(), c.Param("turn_id"), types)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}
