package generator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schema-harvester/internal/config"
	"schema-harvester/internal/llm"
	"schema-harvester/internal/types"
)

const holidaySample = `[
  {"id": 1, "name": "a", "manager": {"id": 2, "name": "m"}, "tags": ["x"], "note": null},
  {"id": 2, "name": "b", "score": 1.5, "manager": null, "tags": [], "note": "hi"}
]`

func TestInfer(t *testing.T) {
	shape, err := Infer([]byte(holidaySample))
	require.NoError(t, err)
	require.NotNil(t, shape.Array)
	obj := shape.Array.Object
	require.NotNil(t, obj)
	assert.Equal(t, 2, obj.Count)

	keys := make([]string, 0, len(obj.Fields))
	for _, f := range obj.Fields {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"id", "name", "manager", "tags", "note", "score"}, keys)

	byKey := map[string]*Field{}
	for _, f := range obj.Fields {
		byKey[f.Key] = f
	}
	assert.True(t, byKey["id"].Shape.Integer)
	assert.False(t, byKey["id"].Optional(obj))
	assert.True(t, byKey["score"].Optional(obj))
	assert.True(t, byKey["score"].Shape.Number)
	assert.True(t, byKey["manager"].Shape.Null)
	assert.NotNil(t, byKey["manager"].Shape.Object)
	assert.True(t, byKey["note"].Shape.Null)
	assert.True(t, byKey["note"].Shape.String)
	assert.True(t, byKey["tags"].Shape.Array.String)
}

func TestInferRejectsInvalidJSON(t *testing.T) {
	for _, sample := range []string{``, `{`, `{"a" 1}`, `[1] [2]`} {
		_, err := Infer([]byte(sample))
		assert.Error(t, err, sample)
	}
}

func TestEmitTypeScript(t *testing.T) {
	shape, err := Infer([]byte(holidaySample))
	require.NoError(t, err)

	want := `// Code generated by schema-harvester. DO NOT EDIT.

export type Holiday = HolidayElement[];

export interface HolidayElement {
  id: number;
  name: string;
  manager: Manager | null;
  tags: string[];
  note: string | null;
  score?: number;
}

export interface Manager {
  id: number;
  name: string;
}
`
	assert.Equal(t, want, EmitTypeScript(shape, "Holiday"))
}

func TestEmitZod(t *testing.T) {
	shape, err := Infer([]byte(holidaySample))
	require.NoError(t, err)

	want := `// Code generated by schema-harvester. DO NOT EDIT.
import * as z from "zod";

export const ManagerSchema = z.object({
  id: z.number().int(),
  name: z.string(),
});
export type Manager = z.infer<typeof ManagerSchema>;

export const HolidayElementSchema = z.object({
  id: z.number().int(),
  name: z.string(),
  manager: ManagerSchema.nullable(),
  tags: z.array(z.string()),
  note: z.string().nullable(),
  score: z.number().optional(),
});
export type HolidayElement = z.infer<typeof HolidayElementSchema>;

export const HolidaySchema = z.array(HolidayElementSchema);
export type Holiday = z.infer<typeof HolidaySchema>;
`
	assert.Equal(t, want, EmitZod(shape, "Holiday"))
}

func TestEmitPlainObjectAndUnions(t *testing.T) {
	shape, err := Infer([]byte(`{"user-id": 1, "ids": [1, "two", 3.5], "empty": [], "any": null}`))
	require.NoError(t, err)

	ts := EmitTypeScript(shape, "Body")
	assert.Contains(t, ts, "export interface Body {\n")
	assert.NotContains(t, ts, "export type Body")
	assert.Contains(t, ts, `  "user-id": number;`)
	assert.Contains(t, ts, "  ids: (string | number)[];")
	assert.Contains(t, ts, "  empty: unknown[];")
	assert.Contains(t, ts, "  any: null;")

	zod := EmitZod(shape, "Body")
	assert.Contains(t, zod, "export const BodySchema = z.object({\n")
	assert.Contains(t, zod, "  ids: z.array(z.union([z.string(), z.number()])),")
	assert.Contains(t, zod, "  empty: z.array(z.unknown()),")
	assert.Contains(t, zod, "  any: z.null(),")
	assert.Equal(t, 1, strings.Count(zod, "export const BodySchema"))
}

func TestNestedNameCollision(t *testing.T) {
	shape, err := Infer([]byte(`[{"holiday": {"a": 1}, "b": {"holiday": {"c": true}}}]`))
	require.NoError(t, err)

	ts := EmitTypeScript(shape, "Holiday")
	assert.Contains(t, ts, "export type Holiday = HolidayElement[];")
	assert.Contains(t, ts, "export interface Holiday2 {")
	assert.Contains(t, ts, "export interface Holiday3 {")
	assert.Contains(t, ts, "export interface B {")
}

func TestTypeName(t *testing.T) {
	tests := map[string]string{
		"holiday":             "Holiday",
		"change-bank-account": "ChangeBankAccount",
		"manager_id":          "ManagerId",
		"2fa":                 "T2fa",
		"":                    "Root",
		"--":                  "Root",
	}
	for in, want := range tests {
		assert.Equal(t, want, TypeName(in), in)
	}
}

func TestInferGeneratorDeterministic(t *testing.T) {
	g := NewInferGenerator()
	ctx := context.Background()

	first, err := g.GenerateSchema(ctx, "holiday", []byte(holidaySample))
	require.NoError(t, err)
	second, err := g.GenerateSchema(ctx, "holiday", []byte(holidaySample))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	typ, err := g.GenerateType(ctx, "holiday", []byte(holidaySample))
	require.NoError(t, err)
	assert.Contains(t, typ, "export type Holiday = HolidayElement[];")
}

func TestInferGeneratorFailure(t *testing.T) {
	_, err := NewInferGenerator().GenerateType(context.Background(), "broken", []byte(`{`))
	require.Error(t, err)

	var genErr *types.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "broken", genErr.Name)
	assert.Equal(t, BackendInfer, genErr.Backend)
	assert.False(t, types.IsFatal(err))
}

func TestGenerateJSONSchema(t *testing.T) {
	data, err := NewInferGenerator().GenerateJSONSchema(context.Background(), "holiday", []byte(holidaySample))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "array", doc["type"])
	assert.Equal(t, "Holiday", doc["title"])

	items := doc["items"].(map[string]any)
	assert.Equal(t, "HolidayElement", items["title"])
	assert.ElementsMatch(t, []any{"id", "name", "manager", "tags", "note"}, items["required"])

	props := items["properties"].(map[string]any)
	assert.Equal(t, "integer", props["id"].(map[string]any)["type"])
	assert.Equal(t, true, props["manager"].(map[string]any)["nullable"])
}

func TestVerifySampleRejectsMismatch(t *testing.T) {
	shape, err := Infer([]byte(`{"id": 1}`))
	require.NoError(t, err)
	schema := BuildJSONSchema(shape, "Thing")

	assert.NoError(t, VerifySample(schema, []byte(`{"id": 5, "extra": "ok"}`)))
	assert.Error(t, VerifySample(schema, []byte(`{"id": "5"}`)))
	assert.Error(t, VerifySample(schema, []byte(`{}`)))
	assert.Error(t, VerifySample(schema, []byte(`{"id": 1.5}`)))
}

type fakeLLM struct {
	reply    string
	err      error
	requests []llm.Request
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func TestLLMGenerator(t *testing.T) {
	client := &fakeLLM{reply: "```ts\nexport interface Holiday { id: number }\n```"}
	g := NewLLMGenerator(client, nil)

	out, err := g.GenerateType(context.Background(), "holiday", []byte(`[{"id":1}]`))
	require.NoError(t, err)
	assert.Equal(t, generatedHeader+"export interface Holiday { id: number }\n", out)
	require.Len(t, client.requests, 1)
	assert.Equal(t, "GenerateType", client.requests[0].Task)
	assert.Contains(t, client.requests[0].Prompt, "exported as Holiday.")
	assert.Contains(t, client.requests[0].Prompt, `[{"id":1}]`)

	_, err = g.GenerateSchema(context.Background(), "holiday", []byte(`[{"id":1}]`))
	require.NoError(t, err)
	assert.Contains(t, client.requests[1].Prompt, "HolidaySchema")
}

func TestLLMGeneratorErrors(t *testing.T) {
	g := NewLLMGenerator(&fakeLLM{err: errors.New("quota")}, nil)
	_, err := g.GenerateSchema(context.Background(), "holiday", []byte(`[]`))
	var genErr *types.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, BackendLLM, genErr.Backend)

	g = NewLLMGenerator(&fakeLLM{reply: "```\n```"}, nil)
	_, err = g.GenerateSchema(context.Background(), "holiday", []byte(`[]`))
	assert.Error(t, err)

	g = NewLLMGenerator(&fakeLLM{reply: "x"}, nil)
	_, err = g.GenerateSchema(context.Background(), "holiday", []byte(`not json`))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	g, err := New(config.GeneratorConfig{Backend: BackendInfer}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendInfer, g.Backend())

	g, err = New(config.GeneratorConfig{Backend: BackendLLM, LLM: config.LLMConfig{Provider: "openai", APIKey: "k", Model: "m"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendLLM, g.Backend())

	_, err = New(config.GeneratorConfig{Backend: "quicktype"}, nil)
	assert.Error(t, err)
}

func TestTruncateSampleKeepsRunes(t *testing.T) {
	short := `[{"name":"Café"}]`
	assert.Equal(t, short, truncateSample([]byte(short)))

	long := strings.Repeat("a", maxSampleChars-1) + "é" + strings.Repeat("b", 10)
	got := truncateSample([]byte(long))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxSampleChars-1)+"\n... (truncated)", got)
}
