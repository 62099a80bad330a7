package biz

import (
	"context"

	"github.com/kart-io/studyrag/internal/assistant/store"
	"github.com/kart-io/studyrag/internal/model"
	"github.com/kart-io/studyrag/pkg/llm"
)

// fakeChatProvider 返回预设内容或错误的 ChatProvider 测试替身。
type fakeChatProvider struct {
	content string
	err     error
	usage   *llm.TokenUsage

	calls       int
	lastPrompt  string
	lastSystem  string
}

func (f *fakeChatProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.content, nil
}

func (f *fakeChatProvider) Generate(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
	f.calls++
	f.lastPrompt = prompt
	f.lastSystem = systemPrompt
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResponse{Content: f.content, TokenUsage: f.usage}, nil
}

func (f *fakeChatProvider) Name() string { return "fake-chat" }

// fakeEmbedder 返回固定向量的 EmbeddingProvider 测试替身。
type fakeEmbedder struct {
	vector []float32
	err    error

	calls    int
	lastText string
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Name() string { return "fake-embedder" }

// fakeIndex 记录调用参数并返回预设命中的 VectorIndex 测试替身。
type fakeIndex struct {
	hits []model.SearchHit
	err  error
	rows int64

	queryCalls int
	lastFilter store.SearchFilter
	lastTopK   int
	upserted   [][]*store.IndexEntry
}

func (f *fakeIndex) EnsureCollection(ctx context.Context) error { return nil }

func (f *fakeIndex) UpsertBatch(ctx context.Context, entries []*store.IndexEntry) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, entries)
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, embedding []float32, filter store.SearchFilter, topK int) ([]model.SearchHit, error) {
	f.queryCalls++
	f.lastFilter = filter
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeIndex) Stats(ctx context.Context) (int64, error) { return f.rows, nil }

func (f *fakeIndex) Close(ctx context.Context) error { return nil }

var (
	_ llm.ChatProvider      = (*fakeChatProvider)(nil)
	_ llm.EmbeddingProvider = (*fakeEmbedder)(nil)
	_ store.VectorIndex     = (*fakeIndex)(nil)
)
