// Package config provides configuration for sopdesk.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xiaot623/gogo/sopdesk/internal/conversation"
)

// Config holds the sopdesk configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Completion provider
	LLMProvider    string
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	LLMTimeout     time.Duration
	LLMTemperature float64
	GeminiAPIKey   string
	GeminiModel    string

	// Dialogue
	HistoryWindow int
	PromptFile    string
	AutoArchive   bool

	// Feishu Bitable
	FeishuBaseURL          string
	FeishuAppID            string
	FeishuAppSecret        string
	FeishuAppToken         string
	FeishuBlueprintTableID string
	FeishuLeadTableID      string
	FeishuTimeout          time.Duration

	// WebSocket
	WSReadLimit    int64
	WSWriteTimeout time.Duration

	// Clients (chat, simulate)
	ServerURL             string
	SimulationConcurrency int

	// Logging
	LogLevel string
}

var defaults = map[string]interface{}{
	"http_port":                      8080,
	"database_url":                   "file:sopdesk.db?cache=shared&mode=rwc&_busy_timeout=5000",
	"llm_provider":                   "openai",
	"llm_base_url":                   "https://api.deepseek.com",
	"llm_model":                      "deepseek-chat",
	"llm_timeout_ms":                 45000,
	"llm_temperature":                0.6,
	"gemini_model":                   "gemini-2.0-flash",
	"history_window":                 10,
	"auto_archive":                   false,
	"feishu_base_url":                "https://open.feishu.cn",
	"feishu_timeout_ms":              10000,
	"ws_read_limit":                  1 << 20,
	"ws_write_timeout_ms":            10000,
	"server_url":                     "http://localhost:8080",
	"simulation_concurrency":         4,
	"log_level":                      "info",
	"llm_api_key":                    "",
	"gemini_api_key":                 "",
	"prompt_file":                    "",
	"feishu_app_id":                  "",
	"feishu_app_secret":              "",
	"feishu_bitable_app_token":       "",
	"feishu_table_id_sop_blueprints": "",
	"feishu_table_id_leads":          "",
}

// Load reads configuration from environment variables and, when path is set,
// from a YAML file. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()
	if err := v.BindEnv("llm_api_key", "LLM_API_KEY", "DEEPSEEK_API_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("gemini_api_key", "GEMINI_API_KEY", "GOOGLE_API_KEY"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		HTTPPort:               v.GetInt("http_port"),
		DatabaseURL:            v.GetString("database_url"),
		LLMProvider:            strings.ToLower(v.GetString("llm_provider")),
		LLMBaseURL:             v.GetString("llm_base_url"),
		LLMAPIKey:              v.GetString("llm_api_key"),
		LLMModel:               v.GetString("llm_model"),
		LLMTimeout:             time.Duration(v.GetInt("llm_timeout_ms")) * time.Millisecond,
		LLMTemperature:         v.GetFloat64("llm_temperature"),
		GeminiAPIKey:           v.GetString("gemini_api_key"),
		GeminiModel:            v.GetString("gemini_model"),
		HistoryWindow:          v.GetInt("history_window"),
		PromptFile:             v.GetString("prompt_file"),
		AutoArchive:            v.GetBool("auto_archive"),
		FeishuBaseURL:          v.GetString("feishu_base_url"),
		FeishuAppID:            v.GetString("feishu_app_id"),
		FeishuAppSecret:        v.GetString("feishu_app_secret"),
		FeishuAppToken:         v.GetString("feishu_bitable_app_token"),
		FeishuBlueprintTableID: v.GetString("feishu_table_id_sop_blueprints"),
		FeishuLeadTableID:      v.GetString("feishu_table_id_leads"),
		FeishuTimeout:          time.Duration(v.GetInt("feishu_timeout_ms")) * time.Millisecond,
		WSReadLimit:            v.GetInt64("ws_read_limit"),
		WSWriteTimeout:         time.Duration(v.GetInt("ws_write_timeout_ms")) * time.Millisecond,
		ServerURL:              strings.TrimSuffix(v.GetString("server_url"), "/"),
		SimulationConcurrency:  v.GetInt("simulation_concurrency"),
		LogLevel:               strings.ToLower(v.GetString("log_level")),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the values are usable.
func (c *Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case "openai", "gemini", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d", c.HTTPPort))
	}
	if c.HistoryWindow <= 0 || c.HistoryWindow > conversation.MaxWindowTurns {
		errs = append(errs, fmt.Errorf("HISTORY_WINDOW %d out of range [1, %d]", c.HistoryWindow, conversation.MaxWindowTurns))
	}
	if c.LLMTimeout <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT_MS must be positive"))
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		errs = append(errs, fmt.Errorf("LLM_TEMPERATURE %.2f out of range [0, 2]", c.LLMTemperature))
	}
	if c.SimulationConcurrency <= 0 {
		errs = append(errs, errors.New("SIMULATION_CONCURRENCY must be positive"))
	}
	return errors.Join(errs...)
}

// FeishuEnabled reports whether Bitable sync is configured.
func (c *Config) FeishuEnabled() bool {
	return c.FeishuAppID != "" && c.FeishuAppSecret != "" && c.FeishuAppToken != ""
}
