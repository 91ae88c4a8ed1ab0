package llm

import (
	"fmt"

	"go.uber.org/zap"

	"insight/internal/config"
	"insight/internal/types"
)

// NewFromConfig builds the completion client the configuration selects.
func NewFromConfig(cfg config.LLMConfig, logger *zap.Logger) (types.CompletionClient, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiClient(cfg.APIKey, cfg.Model, logger)
	case "openai", "":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
