package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiClient adapts the Gemini API to the chat completion interface.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// CreateChatCompletion sends the conversation to Gemini and maps the reply back.
func (g *GeminiClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	model := req.Model
	if model == "" || strings.HasPrefix(model, "deepseek") {
		model = g.model
	}

	system, contents := toGeminiContents(req.Messages)
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, geminiConfig(req, system))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	out := &ChatCompletionResponse{
		ID:      resp.ResponseID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{
			{
				Message:      &ChatMessage{Role: "assistant", Content: resp.Text()},
				FinishReason: "stop",
			},
		},
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// toGeminiContents splits system messages out as the instruction and maps the
// remaining turns onto Gemini's user/model roles.
func toGeminiContents(msgs []ChatMessage) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, msg := range msgs {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func geminiConfig(req *ChatCompletionRequest, system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*req.MaxTokens)
	}
	if req.ResponseFormat["type"] == "json_object" {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}
