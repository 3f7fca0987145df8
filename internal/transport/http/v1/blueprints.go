package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

// SaveBlueprint archives a blueprint.
// POST /v1/sop/save
func (h *Handler) SaveBlueprint(c echo.Context) error {
	var req domain.SaveBlueprintRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body", "code": domain.ErrorCodeInvalidRequest})
	}
	bp := req.Payload()
	if bp == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "sop_data is required", "code": domain.ErrorCodeInvalidRequest})
	}

	record, err := h.service.ArchiveBlueprint(c.Request().Context(), *bp)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, domain.SaveBlueprintResponse{
		Success:        true,
		RecordID:       record.RecordID,
		RemoteRecordID: record.RemoteRecordID,
	})
}

// ListBlueprints lists archived blueprints, newest first.
// GET /v1/blueprints
func (h *Handler) ListBlueprints(c echo.Context) error {
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	records, err := h.service.ListBlueprints(c.Request().Context(), limit)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"blueprints": records,
	})
}

// GetBlueprint returns one archived blueprint.
// GET /v1/blueprints/:record_id
func (h *Handler) GetBlueprint(c echo.Context) error {
	record, err := h.service.GetBlueprint(c.Request().Context(), c.Param("record_id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

// CreateLead records contact details.
// POST /v1/leads
func (h *Handler) CreateLead(c echo.Context) error {
	var lead domain.Lead
	if err := c.Bind(&lead); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body", "code": domain.ErrorCodeInvalidRequest})
	}

	saved, err := h.service.SaveLead(c.Request().Context(), lead)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, saved)
}
