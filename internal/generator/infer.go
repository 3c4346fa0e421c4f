package generator

import (
	"context"
	"encoding/json"

	"schema-harvester/internal/types"
)

// InferGenerator derives sources from the structure of the sample itself.
// It is deterministic: the same name and sample give the same output.
type InferGenerator struct{}

func NewInferGenerator() *InferGenerator {
	return &InferGenerator{}
}

func (g *InferGenerator) Backend() string { return BackendInfer }

func (g *InferGenerator) GenerateSchema(ctx context.Context, name string, sample []byte) (string, error) {
	shape, err := g.infer(ctx, name, sample)
	if err != nil {
		return "", err
	}
	return EmitZod(shape, TypeName(name)), nil
}

func (g *InferGenerator) GenerateType(ctx context.Context, name string, sample []byte) (string, error) {
	shape, err := g.infer(ctx, name, sample)
	if err != nil {
		return "", err
	}
	return EmitTypeScript(shape, TypeName(name)), nil
}

// GenerateJSONSchema returns the indented JSON Schema of the sample after
// checking that the sample validates against it.
func (g *InferGenerator) GenerateJSONSchema(ctx context.Context, name string, sample []byte) ([]byte, error) {
	shape, err := g.infer(ctx, name, sample)
	if err != nil {
		return nil, err
	}
	schema := BuildJSONSchema(shape, TypeName(name))
	if err := VerifySample(schema, sample); err != nil {
		return nil, g.fail(name, err)
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, g.fail(name, err)
	}
	return append(data, '\n'), nil
}

func (g *InferGenerator) infer(ctx context.Context, name string, sample []byte) (*Shape, error) {
	if err := ctx.Err(); err != nil {
		return nil, g.fail(name, err)
	}
	shape, err := Infer(sample)
	if err != nil {
		return nil, g.fail(name, err)
	}
	return shape, nil
}

func (g *InferGenerator) fail(name string, err error) error {
	return &types.GenerationError{Name: name, Backend: BackendInfer, Err: err}
}
