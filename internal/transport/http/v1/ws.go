package v1

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

// TurnSocket serves dialogue turns over a WebSocket. Frames are handled one
// at a time in arrival order.
// GET /v1/sop/ws
func (h *Handler) TurnSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return nil
	}
	defer conn.Close()

	if h.wsReadLimit > 0 {
		conn.SetReadLimit(h.wsReadLimit)
	}
	ctx := c.Request().Context()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			return nil
		}

		reply := h.handleFrame(c, data)
		if h.wsWriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(h.wsWriteTimeout))
		}
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Warn("websocket write failed", zap.Error(err))
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (h *Handler) handleFrame(c echo.Context, data []byte) domain.ResultFrame {
	var frame domain.TurnFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return domain.ResultFrame{Type: domain.FrameError, Code: domain.ErrorCodeInvalidRequest, Error: "invalid JSON frame"}
	}
	if frame.Type != domain.FrameTurn {
		return domain.ResultFrame{
			Type:      domain.FrameError,
			RequestID: frame.RequestID,
			Code:      domain.ErrorCodeInvalidRequest,
			Error:     "unknown frame type: " + frame.Type,
		}
	}

	result, err := h.service.HandleTurn(c.Request().Context(), frame.TurnRequest)
	if err != nil {
		_, code, msg := errorStatus(err)
		if code == domain.ErrorCodeInternal {
			h.logger.Error("websocket turn failed", zap.Error(err))
		}
		return domain.ResultFrame{Type: domain.FrameError, RequestID: frame.RequestID, Code: code, Error: msg}
	}

	resp := result.Response()
	return domain.ResultFrame{Type: domain.FrameTurnResult, RequestID: frame.RequestID, Result: &resp}
}
