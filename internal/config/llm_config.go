package config

import (
	"fmt"
)

// LLMConfig holds configuration for the llm generator backend
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // e.g., "openai"
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`    // e.g., "gpt-4o-mini"
	BaseURL     string  `yaml:"base_url"` // Optional, for compatible endpoints
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

func (c *LLMConfig) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4000
	}
}

// Validate checks the required fields
func (c *LLMConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("LLM provider is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("API key is required (set generator.llm.api_key or OPENAI_API_KEY)")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}
