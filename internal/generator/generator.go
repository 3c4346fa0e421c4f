// Package generator derives Zod schemas, TypeScript types and JSON Schema
// documents from sample JSON.
package generator

import (
	"context"
	"fmt"
	"log/slog"

	"schema-harvester/internal/config"
	"schema-harvester/internal/llm"
)

// Backend names accepted by New.
const (
	BackendInfer = "infer"
	BackendLLM   = "llm"
)

// Generator turns a named JSON sample into source text. Failures are
// returned as *types.GenerationError.
type Generator interface {
	Backend() string
	// GenerateSchema returns Zod schema source.
	GenerateSchema(ctx context.Context, name string, sample []byte) (string, error)
	// GenerateType returns TypeScript type source.
	GenerateType(ctx context.Context, name string, sample []byte) (string, error)
}

// SchemaDocumenter produces a JSON Schema document for a sample.
type SchemaDocumenter interface {
	GenerateJSONSchema(ctx context.Context, name string, sample []byte) ([]byte, error)
}

// New creates the generator selected by cfg.Backend.
func New(cfg config.GeneratorConfig, logger *slog.Logger) (Generator, error) {
	switch cfg.Backend {
	case "", BackendInfer:
		return NewInferGenerator(), nil
	case BackendLLM:
		client, err := llm.NewClient(cfg.LLM, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
		return NewLLMGenerator(client, logger), nil
	default:
		return nil, fmt.Errorf("unknown generator backend: %s", cfg.Backend)
	}
}
