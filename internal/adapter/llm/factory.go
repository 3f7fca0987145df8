package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Provider names accepted by NewLLMClient.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// Options selects and configures a completion provider.
type Options struct {
	Provider     string
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	GeminiAPIKey string
	GeminiModel  string
}

// NewLLMClient creates the client for opts.Provider.
func NewLLMClient(ctx context.Context, opts Options, logger *zap.Logger) (LLMClient, error) {
	switch opts.Provider {
	case ProviderMock:
		logger.Info("using mock LLM client")
		return NewMockClient(), nil
	case ProviderGemini:
		logger.Info("using gemini LLM client", zap.String("model", opts.GeminiModel))
		return NewGeminiClient(ctx, opts.GeminiAPIKey, opts.GeminiModel)
	case ProviderOpenAI, "":
		if opts.APIKey == "" {
			logger.Warn("LLM_API_KEY is empty; upstream calls will likely be rejected")
		}
		logger.Info("using openai-compatible LLM client", zap.String("base_url", opts.BaseURL))
		return NewClient(opts.BaseURL, opts.APIKey, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", opts.Provider)
	}
}
