package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

// recordEvent records a turn trace event to the store.
func (s *Service) recordEvent(ctx context.Context, turnID string, eventType domain.EventType, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.TurnEvent{
		EventID: "evt_" + uuid.New().String()[:8],
		TurnID:  turnID,
		Ts:      time.Now().UnixMilli(),
		Type:    eventType,
		Payload: payloadBytes,
	}

	return s.store.CreateEvent(ctx, event)
}

// traceEvent records an event and only logs failures; tracing never fails a turn.
func (s *Service) traceEvent(ctx context.Context, turnID string, eventType domain.EventType, payload interface{}) {
	if err := s.recordEvent(ctx, turnID, eventType, payload); err != nil {
		s.logger.Warn("failed to record turn event",
			zap.String("turn_id", turnID),
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}

// TurnEvents returns the trace of a turn, optionally filtered by event type.
func (s *Service) TurnEvents(ctx context.Context, turnID string, types []string) ([]domain.TurnEvent, error) {
	events, err := s.store.GetEvents(ctx, turnID, types)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	if len(events) == 0 && len(types) == 0 {
		return nil, fmt.Errorf("%w: turn %s", domain.ErrNotFound, turnID)
	}
	return events, nil
}
