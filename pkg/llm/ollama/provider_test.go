package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/studyrag/pkg/llm"
)

func TestNewProviderDefaults(t *testing.T) {
	provider, err := NewProvider(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, provider.Name())

	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:11434", cfg.BaseURL)
	assert.Equal(t, "nomic-embed-text", cfg.EmbedModel)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func newTestProvider(baseURL string) *Provider {
	return NewProviderWithConfig(&Config{
		BaseURL:    baseURL,
		EmbedModel: "nomic-embed-text",
		ChatModel:  "test-model",
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	})
}

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, []string{"骨骼由什么组成？"}, req.Input)

		_ = json.NewEncoder(w).Encode(embedResponse{
			Model:      req.Model,
			Embeddings: [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	embeddings, err := newTestProvider(server.URL).Embed(context.Background(), []string{"骨骼由什么组成？"})
	require.NoError(t, err)
	require.Len(t, embeddings, 1)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embeddings[0])
}

func TestEmbedEmptyInput(t *testing.T) {
	embeddings, err := newTestProvider("http://localhost:0").Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		_ = json.NewEncoder(w).Encode(chatResponse{
			Model:   "test-model",
			Message: chatMessage{Role: "assistant", Content: "骨组织与软骨组织。"},
			Done:    true,
		})
	}))
	defer server.Close()

	content, err := newTestProvider(server.URL).Chat(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "骨骼由什么组成？"},
	})
	require.NoError(t, err)
	assert.Equal(t, "骨组织与软骨组织。", content)
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "system prompt", req.System)

		_ = json.NewEncoder(w).Encode(generateResponse{
			Model:    req.Model,
			Response: "generated answer",
			Done:     true,
		})
	}))
	defer server.Close()

	resp, err := newTestProvider(server.URL).Generate(context.Background(), "prompt", "system prompt")
	require.NoError(t, err)
	assert.Equal(t, "generated answer", resp.Content)
	assert.Nil(t, resp.TokenUsage)
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.5}}})
	}))
	defer server.Close()

	embeddings, err := newTestProvider(server.URL).Embed(context.Background(), []string{"text"})
	require.NoError(t, err)
	require.Len(t, embeddings, 1)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Embed(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	require.NoError(t, newTestProvider(server.URL).Ping(context.Background()))
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text"},{"name":"deepseek-r1:7b"}]}`))
	}))
	defer server.Close()

	models, err := newTestProvider(server.URL).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"nomic-embed-text", "deepseek-r1:7b"}, models)
}
