package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/studyrag/pkg/llm"
)

const testAPIKey = "test-key"

// embedData mirrors the anonymous element type of embeddingResponse.Data.
type embedData = struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type chatChoice = struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

func newServerProvider(handler http.HandlerFunc) (*httptest.Server, *Provider) {
	server := httptest.NewServer(handler)
	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = testAPIKey
	return server, NewProviderWithConfig(cfg)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	assert.Equal(t, "text-embedding-ada-002", cfg.EmbedModel)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    map[string]any
		wantError bool
	}{
		{
			name:   "valid config",
			config: map[string]any{"api_key": testAPIKey},
		},
		{
			name: "custom config",
			config: map[string]any{
				"api_key":      testAPIKey,
				"base_url":     "https://api.openai.com/v1",
				"embed_model":  "text-embedding-3-large",
				"chat_model":   "gpt-4o",
				"organization": "org-123",
			},
		},
		{
			name:      "missing api_key",
			config:    map[string]any{},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)
			if tt.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ProviderName, provider.Name())
		})
	}
}

func TestNewProviderGenerationParams(t *testing.T) {
	provider, err := NewProvider(map[string]any{
		"api_key":           testAPIKey,
		"temperature":       0.7,
		"top_p":             0.9,
		"max_tokens":        2000,
		"frequency_penalty": 0.5,
		"presence_penalty":  0.5,
		"stop":              []interface{}{"\n\n", "END"},
	})
	require.NoError(t, err)

	p, ok := provider.(*Provider)
	require.True(t, ok)
	assert.Equal(t, 0.7, p.config.Temperature)
	assert.Equal(t, 0.9, p.config.TopP)
	assert.Equal(t, 2000, p.config.MaxTokens)
	assert.Equal(t, 0.5, p.config.FrequencyPenalty)
	assert.Equal(t, 0.5, p.config.PresencePenalty)
	assert.Equal(t, []string{"\n\n", "END"}, p.config.Stop)
}

func TestEmbedBatch(t *testing.T) {
	server, provider := newServerProvider(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-ada-002", req.Model)
		assert.Len(t, req.Input, 2)

		// 乱序返回，验证调用方按 index 还原顺序
		_ = json.NewEncoder(w).Encode(embeddingResponse{
			Object: "list",
			Data: []embedData{
				{Object: "embedding", Embedding: []float32{0.4, 0.5, 0.6}, Index: 1},
				{Object: "embedding", Embedding: []float32{0.1, 0.2, 0.3}, Index: 0},
			},
			Model: req.Model,
		})
	})
	defer server.Close()

	embeddings, err := provider.Embed(context.Background(), []string{
		"What is the composition of bone?",
		"Functions of the skeletal system",
	})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embeddings[0])
	assert.Equal(t, []float32{0.4, 0.5, 0.6}, embeddings[1])
}

func TestEmbedSingle(t *testing.T) {
	server, provider := newServerProvider(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embeddingResponse{
			Object: "list",
			Data:   []embedData{{Object: "embedding", Embedding: []float32{0.1, 0.2, 0.3}, Index: 0}},
		})
	})
	defer server.Close()

	embedding, err := provider.EmbedSingle(context.Background(), "Bone marrow")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embedding)
}

func TestEmbedEmptyInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = testAPIKey
	provider := NewProviderWithConfig(cfg)

	embeddings, err := provider.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}

func TestChat(t *testing.T) {
	server, provider := newServerProvider(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(chatResponse{
			ID:     "test-id",
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []chatChoice{{
				Message:      chatMessage{Role: "assistant", Content: "Bone is composed of osseous tissue."},
				FinishReason: "stop",
			}},
		})
	})
	defer server.Close()

	content, err := provider.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "What is bone made of?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bone is composed of osseous tissue.", content)
}

func TestChatSendsGenerationParams(t *testing.T) {
	var received chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: "ok"}}},
		})
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = testAPIKey
	cfg.Temperature = 0.8
	cfg.TopP = 0.95
	cfg.MaxTokens = 1500
	cfg.FrequencyPenalty = 0.6
	cfg.PresencePenalty = 0.4
	cfg.Stop = []string{"\n", "END"}
	provider := NewProviderWithConfig(cfg)

	_, err := provider.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.NoError(t, err)

	assert.Equal(t, 0.8, received.Temperature)
	assert.Equal(t, 0.95, received.TopP)
	assert.Equal(t, 1500, received.MaxTokens)
	assert.Equal(t, 0.6, received.FrequencyPenalty)
	assert.Equal(t, 0.4, received.PresencePenalty)
	assert.Equal(t, []string{"\n", "END"}, received.Stop)
}

func TestGenerate(t *testing.T) {
	server, provider := newServerProvider(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		resp := chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: "generated answer"}}},
		}
		resp.Usage.PromptTokens = 42
		resp.Usage.CompletionTokens = 17
		resp.Usage.TotalTokens = 59
		_ = json.NewEncoder(w).Encode(resp)
	})
	defer server.Close()

	resp, err := provider.Generate(context.Background(), "user prompt", "system prompt")
	require.NoError(t, err)
	assert.Equal(t, "generated answer", resp.Content)
	require.NotNil(t, resp.TokenUsage)
	assert.Equal(t, 42, resp.TokenUsage.PromptTokens)
	assert.Equal(t, 17, resp.TokenUsage.CompletionTokens)
	assert.Equal(t, 59, resp.TokenUsage.TotalTokens)
}

func TestGenerateNoChoices(t *testing.T) {
	server, provider := newServerProvider(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{})
	})
	defer server.Close()

	_, err := provider.Generate(context.Background(), "prompt", "")
	require.Error(t, err)
}

func TestOrganizationHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "org-123", r.Header.Get("OpenAI-Organization"))
		_ = json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embedData{{Embedding: []float32{0.1}, Index: 0}},
		})
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = testAPIKey
	cfg.Organization = "org-123"
	provider := NewProviderWithConfig(cfg)

	_, err := provider.EmbedSingle(context.Background(), "test")
	require.NoError(t, err)
}

func TestListModels(t *testing.T) {
	server, provider := newServerProvider(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o-mini"},{"id":"text-embedding-ada-002"}]}`))
	})
	defer server.Close()

	models, err := provider.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o-mini", "text-embedding-ada-002"}, models)
}
