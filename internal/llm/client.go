package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"schema-harvester/internal/config"
)

// BaseClient provides interaction logging around a provider call
type BaseClient struct {
	config config.LLMConfig
	logger *slog.Logger
	call   completer
}

// NewBaseClient creates a new base LLM client
func NewBaseClient(cfg config.LLMConfig, logger *slog.Logger, call completer) *BaseClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &BaseClient{
		config: cfg,
		logger: logger,
		call:   call,
	}
}

// Complete implements the Client interface
func (c *BaseClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.call == nil {
		return "", fmt.Errorf("callLLM not implemented")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("empty prompt")
	}

	start := time.Now()
	response, err := c.call(ctx, req)
	attrs := []any{
		"task", req.Task,
		"model", c.config.Model,
		"prompt_chars", len(req.Prompt),
		"duration", time.Since(start),
	}
	if err != nil {
		c.logger.Warn("LLM interaction failed", append(attrs, "error", err)...)
		return "", err
	}
	if strings.TrimSpace(response) == "" {
		c.logger.Warn("LLM interaction returned empty response", attrs...)
		return "", fmt.Errorf("empty response from %s", c.config.Provider)
	}

	c.logger.Debug("LLM interaction", append(attrs, "response_chars", len(response))...)
	return response, nil
}

// StripCodeFence returns the body of the first fenced code block in s, or
// s itself when it has no fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		return s
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
