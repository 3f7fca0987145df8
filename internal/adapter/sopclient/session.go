package sopclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

// Session is a turn socket connection. Turns are sent one at a time.
type Session struct {
	conn *websocket.Conn

	mu  sync.Mutex
	seq int
}

// Dial opens a turn socket against a server base URL such as
// http://localhost:8080.
func Dial(ctx context.Context, baseURL string) (*Session, error) {
	url := strings.TrimRight(baseURL, "/") + "/v1/sop/ws"
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return &Session{conn: conn}, nil
}

// Send runs one dialogue turn over the socket.
func (s *Session) Send(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	requestID := "req_" + strconv.Itoa(s.seq)

	// A zero deadline clears any previous one.
	deadline, _ := ctx.Deadline()
	_ = s.conn.SetWriteDeadline(deadline)
	_ = s.conn.SetReadDeadline(deadline)

	if err := s.conn.WriteJSON(domain.TurnFrame{Type: domain.FrameTurn, RequestID: requestID, TurnRequest: req}); err != nil {
		return nil, fmt.Errorf("failed to send frame: %w", err)
	}

	for {
		var frame domain.ResultFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}
		if frame.RequestID != "" && frame.RequestID != requestID {
			continue
		}
		switch frame.Type {
		case domain.FrameTurnResult:
			if frame.Result == nil {
				return nil, errors.New("turn result frame without result")
			}
			return frame.Result, nil
		case domain.FrameError:
			return nil, &APIError{Code: frame.Code, Message: frame.Error}
		default:
			return nil, fmt.Errorf("unexpected frame type %q", frame.Type)
		}
	}
}

// Close sends a close frame and closes the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
