package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLLMClient(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	client, err := NewLLMClient(ctx, Options{Provider: ProviderMock}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, client)

	client, err = NewLLMClient(ctx, Options{BaseURL: "https://api.deepseek.com", Timeout: time.Second}, logger)
	require.NoError(t, err)
	assert.IsType(t, &Client{}, client)

	_, err = NewLLMClient(ctx, Options{Provider: ProviderGemini}, logger)
	assert.Error(t, err)

	_, err = NewLLMClient(ctx, Options{Provider: "claude"}, logger)
	assert.Error(t, err)
}
