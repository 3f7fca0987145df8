// Package service implements the SOP consultant use cases.
package service

import (
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/sopdesk/internal/adapter/bitable"
	"github.com/xiaot623/gogo/sopdesk/internal/adapter/llm"
	"github.com/xiaot623/gogo/sopdesk/internal/config"
	"github.com/xiaot623/gogo/sopdesk/internal/policy"
	"github.com/xiaot623/gogo/sopdesk/internal/prompt"
	"github.com/xiaot623/gogo/sopdesk/internal/repository"
)

type Service struct {
	store         repository.Store
	llmClient     llm.LLMClient
	prompts       *prompt.Store
	policyEngine  *policy.Engine
	bitableClient *bitable.Client
	config        *config.Config
	logger        *zap.Logger
}

// New wires the service. bitableClient may be nil when Feishu sync is off.
func New(store repository.Store, llmClient llm.LLMClient, prompts *prompt.Store, policyEngine *policy.Engine, bitableClient *bitable.Client, cfg *config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:         store,
		llmClient:     llmClient,
		prompts:       prompts,
		policyEngine:  policyEngine,
		bitableClient: bitableClient,
		config:        cfg,
		logger:        logger,
	}
}
