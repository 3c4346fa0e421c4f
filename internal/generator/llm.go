package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"schema-harvester/internal/llm"
	"schema-harvester/internal/types"
)

const llmSystemPrompt = "You write TypeScript source files from JSON samples. " +
	"Reply with exactly one TypeScript code block and nothing else."

// maxSampleChars bounds the sample embedded in a prompt.
const maxSampleChars = 12000

// LLMGenerator asks a language model to write the sources.
type LLMGenerator struct {
	client llm.Client
	logger *slog.Logger
}

func NewLLMGenerator(client llm.Client, logger *slog.Logger) *LLMGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMGenerator{client: client, logger: logger}
}

func (g *LLMGenerator) Backend() string { return BackendLLM }

func (g *LLMGenerator) GenerateSchema(ctx context.Context, name string, sample []byte) (string, error) {
	typeName := TypeName(name)
	prompt := fmt.Sprintf(`Write a Zod schema for the JSON sample below.
- Start with: import * as z from "zod";
- Export one const "<Type>Schema" per object type, dependencies first.
- The top-level schema must be exported as %sSchema.
- Export "export type <Type> = z.infer<typeof <Type>Schema>;" after each schema.
- Use .optional() for keys missing from some records and .nullable() for null values.

Sample:
%s`, typeName, truncateSample(sample))

	return g.complete(ctx, "GenerateSchema", name, sample, prompt)
}

func (g *LLMGenerator) GenerateType(ctx context.Context, name string, sample []byte) (string, error) {
	typeName := TypeName(name)
	prompt := fmt.Sprintf(`Write TypeScript interfaces for the JSON sample below.
- Export one interface per object type.
- The top-level type must be exported as %s.
- Use "?" for keys missing from some records and "| null" for null values.

Sample:
%s`, typeName, truncateSample(sample))

	return g.complete(ctx, "GenerateType", name, sample, prompt)
}

func (g *LLMGenerator) complete(ctx context.Context, task, name string, sample []byte, prompt string) (string, error) {
	if !json.Valid(sample) {
		return "", g.fail(name, fmt.Errorf("invalid JSON sample"))
	}
	reply, err := g.client.Complete(ctx, llm.Request{Task: task, System: llmSystemPrompt, Prompt: prompt})
	if err != nil {
		return "", g.fail(name, err)
	}
	source := llm.StripCodeFence(reply)
	if source == "" {
		return "", g.fail(name, fmt.Errorf("model returned no code"))
	}
	g.logger.Debug("generated source", "task", task, "name", name, "chars", len(source))
	return generatedHeader + source + "\n", nil
}

func (g *LLMGenerator) fail(name string, err error) error {
	return &types.GenerationError{Name: name, Backend: BackendLLM, Err: err}
}

func truncateSample(sample []byte) string {
	s := strings.TrimSpace(string(sample))
	if len(s) <= maxSampleChars {
		return s
	}
	cut := maxSampleChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}
