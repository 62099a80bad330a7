package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/studyrag/internal/assistant/biz"
	"github.com/kart-io/studyrag/internal/assistant/store"
	"github.com/kart-io/studyrag/internal/model"
	"github.com/kart-io/studyrag/pkg/llm"
	"github.com/kart-io/studyrag/pkg/utils/json"
)

type stubChat struct {
	content string
	err     error
}

func (s *stubChat) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return s.content, s.err
}

func (s *stubChat) Generate(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.GenerateResponse{Content: s.content}, nil
}

func (s *stubChat) Name() string { return "stub-chat" }

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2}, nil
}

func (s *stubEmbedder) Name() string { return "stub-embedder" }

type stubIndex struct {
	hits []model.SearchHit
	err  error
}

func (s *stubIndex) EnsureCollection(ctx context.Context) error { return nil }

func (s *stubIndex) UpsertBatch(ctx context.Context, entries []*store.IndexEntry) error { return nil }

func (s *stubIndex) Query(ctx context.Context, embedding []float32, filter store.SearchFilter, topK int) ([]model.SearchHit, error) {
	return s.hits, s.err
}

func (s *stubIndex) Stats(ctx context.Context) (int64, error) { return 7, nil }

func (s *stubIndex) Close(ctx context.Context) error { return nil }

func newTestEngine(t *testing.T, chat llm.ChatProvider, index store.VectorIndex) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	content, err := biz.NewContentStore("", "")
	require.NoError(t, err)
	hydrator, err := biz.NewHydrator(content, 0)
	require.NoError(t, err)
	t.Cleanup(hydrator.Release)

	vocab := &model.Vocabulary{Subjects: []string{"Anatomy"}, Topics: []string{"Osteology"}}
	service := biz.NewService(&biz.ServiceConfig{
		Parser:     biz.NewIntentParser(chat, biz.NewMatcher(vocab, 0.2)),
		Searcher:   biz.NewSearcher(&stubEmbedder{}, index),
		Hydrator:   hydrator,
		Generator:  biz.NewGenerator(chat, &biz.GeneratorConfig{SystemPrompt: "study assistant"}),
		Content:    content,
		Index:      index,
		Vocabulary: vocab,
	})

	engine := gin.New()
	h := NewQueryHandler(service)
	engine.GET("/healthz", h.Healthz)
	engine.POST("/v1/assistant/query", h.Query)
	engine.POST("/v1/assistant/query/stream", h.QueryStream)
	engine.GET("/v1/assistant/stats", h.Stats)
	engine.GET("/v1/assistant/vocabulary", h.Vocabulary)
	engine.DELETE("/v1/assistant/cache", h.ClearCache)
	return engine
}

func doJSON(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

const generalIntent = `{"total":0,"user_query":"what is anatomy","type":"general","pre-prompt":"","context":"anatomy","topics":[]}`

func TestQueryMissingBody(t *testing.T) {
	engine := newTestEngine(t, &stubChat{content: generalIntent}, &stubIndex{})

	w := doJSON(engine, http.MethodPost, "/v1/assistant/query", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryWhitespaceRejected(t *testing.T) {
	engine := newTestEngine(t, &stubChat{content: generalIntent}, &stubIndex{})

	w := doJSON(engine, http.MethodPost, "/v1/assistant/query", `{"query":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuerySuccess(t *testing.T) {
	engine := newTestEngine(t, &stubChat{content: generalIntent}, &stubIndex{})

	w := doJSON(engine, http.MethodPost, "/v1/assistant/query", `{"query":"what is anatomy"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "success", resp.Message)
	assert.NotNil(t, resp.Data)
}

func TestQueryIntentParseFailureIs422(t *testing.T) {
	engine := newTestEngine(t, &stubChat{content: "definitely not json"}, &stubIndex{})

	w := doJSON(engine, http.MethodPost, "/v1/assistant/query", `{"query":"give me questions"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestQueryTransientFailureIs502(t *testing.T) {
	engine := newTestEngine(t, &stubChat{err: errors.New("llm unavailable")}, &stubIndex{})

	w := doJSON(engine, http.MethodPost, "/v1/assistant/query", `{"query":"give me questions"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestQuerySearchFailureIs502(t *testing.T) {
	retrievalIntent := `{"total":3,"user_query":"q","type":"question","pre-prompt":"","context":"bones","topics":[]}`
	engine := newTestEngine(t, &stubChat{content: retrievalIntent}, &stubIndex{err: errors.New("milvus down")})

	w := doJSON(engine, http.MethodPost, "/v1/assistant/query", `{"query":"questions about bones"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestQueryStreamEmitsSSE(t *testing.T) {
	engine := newTestEngine(t, &stubChat{content: generalIntent}, &stubIndex{})

	w := doJSON(engine, http.MethodPost, "/v1/assistant/query/stream", `{"query":"what is anatomy"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	assert.Contains(t, body, "event:parsing")
	assert.Contains(t, body, "event:generating")
	assert.Contains(t, body, "event:complete")
}

func TestStatsEndpoint(t *testing.T) {
	engine := newTestEngine(t, &stubChat{content: generalIntent}, &stubIndex{})

	req := httptest.NewRequest(http.MethodGet, "/v1/assistant/stats", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "corpus")
	assert.Contains(t, w.Body.String(), "row_count")
}

func TestVocabularyEndpoint(t *testing.T) {
	engine := newTestEngine(t, &stubChat{content: generalIntent}, &stubIndex{})

	req := httptest.NewRequest(http.MethodGet, "/v1/assistant/vocabulary", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Anatomy")
	assert.Contains(t, w.Body.String(), "Osteology")
}

func TestClearCacheEndpoint(t *testing.T) {
	engine := newTestEngine(t, &stubChat{content: generalIntent}, &stubIndex{})

	req := httptest.NewRequest(http.MethodDelete, "/v1/assistant/cache", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cache cleared")
}

func TestHealthz(t *testing.T) {
	engine := newTestEngine(t, &stubChat{content: generalIntent}, &stubIndex{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
