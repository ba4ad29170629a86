package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/MaTriXy/stagehand/api/schemas"
	"github.com/MaTriXy/stagehand/internal/config"
)

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultOllamaEndpoint = "http://127.0.0.1:11434/v1/chat/completions"
)

// NewClient builds the LLM client for the configured provider. Endpoint
// defaults and API-key requirements are provider questions, so they are
// resolved here rather than in config validation.
func NewClient(ctx context.Context, cfg config.OracleConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)

	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key (set STAGEHAND_ORACLE_API_KEY)")
		}
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOpenAIEndpoint
		}
		return NewChatClient(cfg, endpoint, logger), nil

	case config.ProviderOllama:
		// Local runtimes authenticate by reachability; no key needed.
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOllamaEndpoint
		}
		return NewChatClient(cfg, endpoint, logger), nil
	}

	return nil, fmt.Errorf("unknown oracle provider %q", string(cfg.Provider))
}
