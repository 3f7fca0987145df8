package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
	"github.com/xiaot623/gogo/sopdesk/internal/envelope"
)

// Generate runs one dialogue turn.
// POST /v1/sop/generate
func (h *Handler) Generate(c echo.Context) error {
	var req domain.TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body", "code": domain.ErrorCodeInvalidRequest})
	}

	result, err := h.service.HandleTurn(c.Request().Context(), req)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, result.Response())
}

// Schema returns the JSON Schemas of the reply envelope and the blueprint.
// GET /v1/sop/schema
func (h *Handler) Schema(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"envelope":  envelope.EnvelopeSchema(),
		"blueprint": envelope.BlueprintSchema(),
	})
}
