package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/sopdesk/internal/adapter/bitable"
	"github.com/xiaot623/gogo/sopdesk/internal/adapter/llm"
	"github.com/xiaot623/gogo/sopdesk/internal/policy"
	"github.com/xiaot623/gogo/sopdesk/internal/prompt"
	"github.com/xiaot623/gogo/sopdesk/internal/repository"
	"github.com/xiaot623/gogo/sopdesk/internal/service"
	transporthttp "github.com/xiaot623/gogo/sopdesk/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

var servePolicyFile string

func GetServeCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		Long: `Starts the consultant API. The system prompt is reloaded whenever PROMPT_FILE
changes on disk.

Example:
  LLM_PROVIDER=mock sopdesk serve
  sopdesk serve --config sopdesk.yaml --policy my_phase.rego`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	serveCmd.Flags().StringVar(&servePolicyFile, "policy", "", "Rego file overriding the built-in phase policy")
	return serveCmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting sopdesk",
		zap.Int("port", cfg.HTTPPort),
		zap.String("database", cfg.DatabaseURL),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("llm_model", cfg.LLMModel),
	)

	// Initialize store
	store, err := repository.NewSQLiteStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	// Initialize prompt store
	prompts, err := prompt.NewStore(cfg.PromptFile, logger)
	if err != nil {
		return fmt.Errorf("failed to load system prompt: %w", err)
	}

	// Initialize policy engine
	policyContent := ""
	if servePolicyFile != "" {
		data, err := os.ReadFile(servePolicyFile)
		if err != nil {
			return fmt.Errorf("failed to read policy: %w", err)
		}
		policyContent = string(data)
	}
	policyEngine, err := policy.NewEngine(ctx, policyContent)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	// Initialize LLM client
	llmClient, err := llm.NewLLMClient(ctx, llmOptions(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	// Initialize Bitable client
	var bitableClient *bitable.Client
	if cfg.FeishuEnabled() {
		bitableClient = bitable.NewClient(cfg.FeishuBaseURL, cfg.FeishuAppID, cfg.FeishuAppSecret, cfg.FeishuAppToken, cfg.FeishuTimeout)
		logger.Info("bitable sync enabled")
	}

	svc := service.New(store, llmClient, prompts, policyEngine, bitableClient, cfg, logger)
	server := transporthttp.NewServer(svc, cfg, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		logger.Info("API started", zap.String("addr", addr))
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return prompts.Watch(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down sopdesk")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("sopdesk stopped")
	return nil
}

func llmOptions() llm.Options {
	return llm.Options{
		Provider:     cfg.LLMProvider,
		BaseURL:      cfg.LLMBaseURL,
		APIKey:       cfg.LLMAPIKey,
		Timeout:      cfg.LLMTimeout,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
	}
}
