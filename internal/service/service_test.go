package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/sopdesk/internal/adapter/bitable"
	"github.com/xiaot623/gogo/sopdesk/internal/adapter/llm"
	"github.com/xiaot623/gogo/sopdesk/internal/config"
	"github.com/xiaot623/gogo/sopdesk/internal/domain"
	"github.com/xiaot623/gogo/sopdesk/internal/policy"
	"github.com/xiaot623/gogo/sopdesk/internal/prompt"
	"github.com/xiaot623/gogo/sopdesk/tests/helpers"
)

// fakeLLM records requests and answers with reply.
type fakeLLM struct {
	mu       sync.Mutex
	requests []*llm.ChatCompletionRequest
	reply    func(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error)
}

func (f *fakeLLM) CreateChatCompletion(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.reply(ctx, req)
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func replyText(text string) *fakeLLM {
	return &fakeLLM{reply: func(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
		return &llm.ChatCompletionResponse{
			Model:   req.Model,
			Choices: []llm.Choice{{Message: &llm.ChatMessage{Role: "assistant", Content: text}}},
		}, nil
	}}
}

func testConfig() *config.Config {
	return &config.Config{
		LLMProvider:    "mock",
		LLMModel:       "deepseek-chat",
		LLMTimeout:     time.Second,
		LLMTemperature: 0.6,
		HistoryWindow:  10,
	}
}

func newTestService(t *testing.T, client llm.LLMClient, cfg *config.Config, bt *bitable.Client) *Service {
	t.Helper()
	store := helpers.NewTestSQLiteStore(t)
	prompts, err := prompt.NewStore("", zap.NewNop())
	require.NoError(t, err)
	engine, err := policy.NewEngine(context.Background(), "")
	require.NoError(t, err)
	return New(store, client, prompts, engine, bt, cfg, zap.NewNop())
}

func sopReply(message string) string {
	bp := domain.Blueprint{
		Title:   "Invoice intake",
		Summary: "Collect and summarize invoices.",
		Diagram: "graph TD\n  Start[\"收到邮件\"] --> Extract[\"提取\"]\n  Extract --> Send[\"发送\"]",
		Steps: []domain.Step{
			{Role: "Bot", Action: "Extract fields", Standard: "All fields present"},
		},
		Diagnosis: []domain.Finding{
			{Category: "efficiency", Description: "Manual entry is slow"},
		},
	}
	data, _ := json.Marshal(domain.SOP(message, bp))
	return string(data)
}

func eventTypes(t *testing.T, s *Service, turnID string) []domain.EventType {
	t.Helper()
	events, err := s.TurnEvents(context.Background(), turnID, nil)
	require.NoError(t, err)
	types := make([]domain.EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}
