package service

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/sopdesk/internal/adapter/llm"
	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

func TestHandleTurnRejectsInvalidRequests(t *testing.T) {
	client := replyText(`{"type":"chat","message":"hi"}`)
	svc := newTestService(t, client, testConfig(), nil)

	cases := map[string]domain.TurnRequest{
		"empty message":      {Message: ""},
		"whitespace message": {Message: "  \n\t "},
		"unknown phase":      {Message: "hi", Phase: "done"},
		"unknown role":       {Message: "hi", History: []domain.Turn{{Role: "bot", Content: "x"}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.HandleTurn(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
	assert.Zero(t, client.calls(), "invalid requests must not reach the provider")
}

func TestHandleTurnRequestShape(t *testing.T) {
	client := replyText(`{"type":"chat","message":"请问文件从哪里来？"}`)
	svc := newTestService(t, client, testConfig(), nil)

	history := make([]domain.Turn, 25)
	for i := range history {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		history[i] = domain.Turn{Role: role, Content: fmt.Sprintf("turn-%d", i)}
	}

	res, err := svc.HandleTurn(context.Background(), domain.TurnRequest{Message: " 我要处理发票 ", History: history})
	require.NoError(t, err)
	assert.Equal(t, domain.Chat("请问文件从哪里来？"), res.Envelope)
	assert.Equal(t, domain.PhaseInquiry, res.Phase)
	assert.False(t, res.Degraded)
	assert.Regexp(t, `^turn_[0-9a-f-]{8}$`, res.TurnID)

	require.Equal(t, 1, client.calls())
	req := client.requests[0]
	require.Len(t, req.Messages, 12)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "sop_data")
	assert.Equal(t, "turn-15", req.Messages[1].Content)
	assert.Equal(t, "turn-24", req.Messages[10].Content)
	assert.Equal(t, llm.ChatMessage{Role: "user", Content: "我要处理发票"}, req.Messages[11])
	assert.Equal(t, "deepseek-chat", req.Model)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.6, *req.Temperature, 1e-9)
	assert.Equal(t, "json_object", req.ResponseFormat["type"])

	assert.Equal(t, []domain.EventType{domain.EventTypeTurnReceived, domain.EventTypeLLMCallDone}, eventTypes(t, svc, res.TurnID))
}

func TestHandleTurnUpstreamError(t *testing.T) {
	client := &fakeLLM{reply: func(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
		return nil, &llm.UpstreamError{StatusCode: 502, Message: "bad gateway"}
	}}
	svc := newTestService(t, client, testConfig(), nil)

	_, err := svc.HandleTurn(context.Background(), domain.TurnRequest{Message: "hello"})
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Equal(t, 1, client.calls())
}

func TestHandleTurnTimeout(t *testing.T) {
	client := &fakeLLM{reply: func(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	cfg := testConfig()
	cfg.LLMTimeout = 20 * time.Millisecond
	svc := newTestService(t, client, cfg, nil)

	start := time.Now()
	_, err := svc.HandleTurn(context.Background(), domain.TurnRequest{Message: "hello"})
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHandleTurnDegradesMalformedCompletion(t *testing.T) {
	svc := newTestService(t, replyText("not json at all"), testConfig(), nil)

	res, err := svc.HandleTurn(context.Background(), domain.TurnRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.Chat("not json at all"), res.Envelope)
	assert.True(t, res.Degraded)
	assert.NotEmpty(t, res.DegradeReason)
	assert.Equal(t, domain.PhaseInquiry, res.Phase)
	assert.Contains(t, eventTypes(t, svc, res.TurnID), domain.EventTypeEnvelopeDegraded)
}

func TestHandleTurnEmptyCompletion(t *testing.T) {
	svc := newTestService(t, replyText(""), testConfig(), nil)

	res, err := svc.HandleTurn(context.Background(), domain.TurnRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.FallbackMessage, res.Envelope.Message)
}

func TestHandleTurnPhaseTransitions(t *testing.T) {
	tests := []struct {
		name      string
		phase     string
		reply     string
		wantType  domain.EnvelopeType
		wantPhase domain.Phase
		degraded  bool
	}{
		{"inquiry stays", "", `{"type":"chat","message":"more?"}`, domain.EnvelopeTypeChat, domain.PhaseInquiry, false},
		{"inquiry to blueprint", "inquiry", sopReply("done"), domain.EnvelopeTypeSOP, domain.PhaseBlueprint, false},
		{"blueprint to closing", "blueprint", `{"type":"chat","message":"name?"}`, domain.EnvelopeTypeChat, domain.PhaseClosing, false},
		{"repeat blueprint rejected", "blueprint", sopReply("again"), domain.EnvelopeTypeChat, domain.PhaseBlueprint, true},
		{"closing rejects blueprint", "closing", sopReply("again"), domain.EnvelopeTypeChat, domain.PhaseClosing, true},
		{"malformed reply keeps blueprint", "blueprint", "not json at all", domain.EnvelopeTypeChat, domain.PhaseBlueprint, true},
		{"malformed reply keeps closing", "closing", "not json at all", domain.EnvelopeTypeChat, domain.PhaseClosing, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, replyText(tt.reply), testConfig(), nil)
			res, err := svc.HandleTurn(context.Background(), domain.TurnRequest{Message: "ok", Phase: tt.phase})
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, res.Envelope.Type)
			assert.Equal(t, tt.wantPhase, res.Phase)
			assert.Equal(t, tt.degraded, res.Degraded)
			if tt.degraded && tt.reply != "not json at all" {
				assert.Nil(t, res.Envelope.Blueprint)
				assert.Equal(t, "again", res.Envelope.Message)
				assert.Contains(t, eventTypes(t, svc, res.TurnID), domain.EventTypePhaseViolation)
			}
		})
	}
}

func TestHandleTurnScenarioAsksForFacts(t *testing.T) {
	svc := newTestService(t, llm.NewMockClient(), testConfig(), nil)

	res, err := svc.HandleTurn(context.Background(), domain.TurnRequest{Message: "我每月要处理很多报销发票"})
	require.NoError(t, err)
	assert.Equal(t, domain.EnvelopeTypeChat, res.Envelope.Type)
	assert.Nil(t, res.Envelope.Blueprint)
	assert.Equal(t, domain.PhaseInquiry, res.Phase)
}

var nodeIDPattern = regexp.MustCompile(`(?m)^\s*([^\s\[\(\{-]+)`)

func TestHandleTurnScenarioDraftsBlueprint(t *testing.T) {
	cfg := testConfig()
	cfg.AutoArchive = true
	svc := newTestService(t, llm.NewMockClient(), cfg, nil)

	history := []domain.Turn{
		{Role: domain.RoleUser, Content: "我每月要处理很多报销发票"},
		{Role: domain.RoleAssistant, Content: `{"type":"chat","message":"发票从哪里来？"}`},
		{Role: domain.RoleUser, Content: "都是通过邮件收到的PDF"},
		{Role: domain.RoleAssistant, Content: `{"type":"chat","message":"需要做什么处理？"}`},
		{Role: domain.RoleUser, Content: "提取发票代码、金额和日期，追加到Excel，然后发给总监"},
		{Role: domain.RoleAssistant, Content: `{"type":"chat","message":"确认一下流程是否正确？"}`},
	}
	res, err := svc.HandleTurn(context.Background(), domain.TurnRequest{Message: "没错就是这样", History: history})
	require.NoError(t, err)
	require.True(t, res.Envelope.IsSOP())
	assert.Equal(t, domain.PhaseBlueprint, res.Phase)
	assert.NotEmpty(t, res.Envelope.Blueprint.Steps)

	lines := nodeIDPattern.FindAllStringSubmatch(res.Envelope.Blueprint.Diagram, -1)
	require.NotEmpty(t, lines)
	for _, m := range lines[1:] {
		assert.Regexp(t, `^[A-Za-z0-9_]+$`, m[1])
	}

	require.NotEmpty(t, res.ArchiveID)
	record, err := svc.GetBlueprint(context.Background(), res.ArchiveID)
	require.NoError(t, err)
	assert.Equal(t, res.Envelope.Blueprint.Title, record.Title)
	assert.Contains(t, eventTypes(t, svc, res.TurnID), domain.EventTypeBlueprintArchived)
}
