package llm

import (
	"fmt"
	"log/slog"

	"schema-harvester/internal/config"
)

// NewClient creates a new LLM client based on the provider
func NewClient(cfg config.LLMConfig, logger *slog.Logger) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
