package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/sopdesk/internal/adapter/llm"
	"github.com/xiaot623/gogo/sopdesk/internal/conversation"
	"github.com/xiaot623/gogo/sopdesk/internal/domain"
	"github.com/xiaot623/gogo/sopdesk/internal/envelope"
)

// HandleTurn runs one dialogue turn: it windows the history, makes exactly
// one completion call, interprets the reply and guards the phase transition.
// Only ErrInvalidRequest and ErrUpstreamUnavailable are returned for
// caller mistakes and provider failures; malformed replies degrade to chat.
func (s *Service) HandleTurn(ctx context.Context, req domain.TurnRequest) (*domain.TurnResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidRequest)
	}
	phase, ok := domain.ParsePhase(req.Phase)
	if !ok {
		return nil, fmt.Errorf("%w: unknown phase %q", domain.ErrInvalidRequest, req.Phase)
	}
	for i, turn := range req.History {
		if !turn.Role.Valid() {
			return nil, fmt.Errorf("%w: history[%d] has unknown role %q", domain.ErrInvalidRequest, i, turn.Role)
		}
	}

	turnID := "turn_" + uuid.New().String()[:8]
	window := conversation.Window(req.History, s.config.HistoryWindow)
	s.traceEvent(ctx, turnID, domain.EventTypeTurnReceived, domain.TurnReceivedPayload{
		Phase:        phase,
		HistoryTurns: len(req.History),
		WindowTurns:  len(window),
	})

	raw, err := s.complete(ctx, turnID, window, message)
	if err != nil {
		s.logger.Warn("completion failed", zap.String("turn_id", turnID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}

	result := &domain.TurnResult{TurnID: turnID}

	parsed := envelope.Parse(raw)
	env := parsed.Envelope
	if parsed.Outcome == envelope.Degraded {
		result.Degraded = true
		result.DegradeReason = parsed.Reason
		s.logger.Warn("completion degraded to chat", zap.String("turn_id", turnID), zap.String("reason", parsed.Reason))
		s.traceEvent(ctx, turnID, domain.EventTypeEnvelopeDegraded, domain.DegradedPayload{
			Reason: parsed.Reason,
			Phase:  phase,
		})
	}

	decision, err := s.policyEngine.Evaluate(ctx, phase, env.Type, result.Degraded)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate phase policy: %w", err)
	}
	if !decision.Allow {
		reason := fmt.Sprintf("%s reply not allowed in %s phase", env.Type, phase)
		s.logger.Warn("phase violation", zap.String("turn_id", turnID), zap.String("reason", reason))
		s.traceEvent(ctx, turnID, domain.EventTypePhaseViolation, domain.DegradedPayload{
			Reason:       reason,
			EnvelopeType: env.Type,
			Phase:        phase,
		})
		env = domain.Chat(env.Message)
		result.Degraded = true
		result.DegradeReason = reason

		decision, err = s.policyEngine.Evaluate(ctx, phase, env.Type, true)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate phase policy: %w", err)
		}
	}
	result.Envelope = env
	result.Phase = decision.Next

	if s.config.AutoArchive && env.IsSOP() {
		record, err := s.archive(ctx, turnID, *env.Blueprint)
		if err != nil {
			s.logger.Warn("auto archive failed", zap.String("turn_id", turnID), zap.Error(err))
		} else {
			result.ArchiveID = record.RecordID
		}
	}

	s.logger.Info("turn handled",
		zap.String("turn_id", turnID),
		zap.String("type", string(env.Type)),
		zap.String("phase", string(phase)),
		zap.String("next_phase", string(result.Phase)),
		zap.Bool("degraded", result.Degraded))

	return result, nil
}

// complete makes the single completion call of a turn and returns the raw text.
func (s *Service) complete(ctx context.Context, turnID string, window []domain.Turn, message string) (string, error) {
	messages := make([]llm.ChatMessage, 0, len(window)+2)
	messages = append(messages, llm.ChatMessage{Role: string(domain.RoleSystem), Content: s.prompts.Current()})
	for _, turn := range window {
		messages = append(messages, llm.ChatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: string(domain.RoleUser), Content: message})

	temperature := s.config.LLMTemperature
	req := &llm.ChatCompletionRequest{
		Model:          s.config.LLMModel,
		Messages:       messages,
		Temperature:    &temperature,
		ResponseFormat: llm.JSONObjectFormat(),
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.LLMTimeout)
	defer cancel()

	startTime := time.Now()
	resp, err := s.llmClient.CreateChatCompletion(callCtx, req)
	latencyMs := time.Since(startTime).Milliseconds()
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("completion timed out after %s: %w", s.config.LLMTimeout, err)
		}
		s.traceEvent(ctx, turnID, domain.EventTypeLLMCallDone, domain.LLMCallDonePayload{
			Model:     req.Model,
			LatencyMs: latencyMs,
			Error:     err.Error(),
		})
		return "", err
	}

	payload := domain.LLMCallDonePayload{
		Model:     resp.Model,
		LatencyMs: latencyMs,
	}
	if resp.Usage != nil {
		payload.PromptTokens = resp.Usage.PromptTokens
		payload.CompletionTokens = resp.Usage.CompletionTokens
		payload.TotalTokens = resp.Usage.TotalTokens
	}
	s.traceEvent(ctx, turnID, domain.EventTypeLLMCallDone, payload)

	return resp.Content(), nil
}
