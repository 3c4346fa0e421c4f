package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schema-harvester/internal/config"
)

func testConfig() config.LLMConfig {
	return config.LLMConfig{
		Provider:  "openai",
		APIKey:    "test-key",
		Model:     "gpt-4o-mini",
		MaxTokens: 100,
	}
}

func TestBaseClient(t *testing.T) {
	tests := []struct {
		name    string
		call    completer
		prompt  string
		want    string
		wantErr bool
	}{
		{
			name:   "ReturnsResponse",
			call:   func(ctx context.Context, req Request) (string, error) { return "ok:" + req.Prompt, nil },
			prompt: "hello",
			want:   "ok:hello",
		},
		{
			name:    "NotImplemented",
			prompt:  "hello",
			wantErr: true,
		},
		{
			name:    "EmptyPrompt",
			call:    func(ctx context.Context, req Request) (string, error) { return "x", nil },
			prompt:  "  ",
			wantErr: true,
		},
		{
			name:    "ProviderError",
			call:    func(ctx context.Context, req Request) (string, error) { return "", errors.New("boom") },
			prompt:  "hello",
			wantErr: true,
		},
		{
			name:    "EmptyResponse",
			call:    func(ctx context.Context, req Request) (string, error) { return " \n", nil },
			prompt:  "hello",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewBaseClient(testConfig(), nil, tt.call)
			got, err := client.Complete(context.Background(), Request{Task: tt.name, Prompt: tt.prompt})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "  export type A = string;\n", want: "export type A = string;"},
		{name: "fenced", in: "Here:\n```ts\nexport type A = string;\n```\nthanks", want: "export type A = string;"},
		{name: "unterminated", in: "```typescript\nconst a = 1;", want: "const a = 1;"},
		{name: "inline fence only", in: "```x```", want: "```x```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.in))
		})
	}
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(testConfig(), nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, client)

	cfg := testConfig()
	cfg.Provider = "anthropic"
	_, err = NewClient(cfg, nil)
	assert.Error(t, err)
}

func TestOpenAIClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "describe", body.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"done"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseURL = srv.URL + "/v1"
	client := NewOpenAIClient(cfg, nil)

	got, err := client.Complete(context.Background(), Request{Task: "test", System: "be brief", Prompt: "describe"})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}
