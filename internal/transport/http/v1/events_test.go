package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

func TestGetTurnEvents(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)

	c, rec := postJSON(t, e, "/v1/sop/generate", `{"message":"我想自动处理发票"}`)
	if err := h.Generate(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var turn domain.TurnResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &turn); err != nil {
		t.Fatalf("decode turn: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/turns/"+turn.TurnID+"/events?types=llm_call_done", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("turn_id")
	c.SetParamValues(turn.TurnID)
	if err := h.GetTurnEvents(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Events []domain.TurnEvent `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Type != domain.EventTypeLLMCallDone {
		t.Fatalf("unexpected events: %+v", resp.Events)
	}
}

func TestGetTurnEventsNotFound(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/turns/turn_missing/events", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("turn_id")
	c.SetParamValues("turn_missing")
	if err := h.GetTurnEvents(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
