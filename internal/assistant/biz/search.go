package biz

import (
	"context"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/studyrag/internal/assistant/store"
	"github.com/kart-io/studyrag/internal/model"
	"github.com/kart-io/studyrag/pkg/llm"
)

// topK 裁剪边界。
const (
	MinTopK = 1
	MaxTopK = 10
)

// ClampTopK 将请求数量裁剪到 [MinTopK, MaxTopK]。
func ClampTopK(n int) int {
	if n < MinTopK {
		return MinTopK
	}
	if n > MaxTopK {
		return MaxTopK
	}
	return n
}

// Searcher 负责将解析后的意图转换为向量检索。
type Searcher struct {
	embedder llm.EmbeddingProvider
	index    store.VectorIndex
}

// NewSearcher 创建检索器。
func NewSearcher(embedder llm.EmbeddingProvider, index store.VectorIndex) *Searcher {
	return &Searcher{
		embedder: embedder,
		index:    index,
	}
}

// Search 嵌入检索文本并执行过滤的相似度检索。
// 检索文本为空时直接返回空结果，不访问下游。
func (s *Searcher) Search(ctx context.Context, intent *model.ParsedIntent) ([]model.SearchHit, error) {
	text := strings.TrimSpace(intent.Context)
	if text == "" {
		return nil, nil
	}

	embedding, err := s.embedder.EmbedSingle(ctx, text)
	if err != nil {
		return nil, &TransientError{Op: "embed query", Err: err}
	}

	filter := store.SearchFilter{Type: intent.Type}
	topK := ClampTopK(intent.Total)

	hits, err := s.index.Query(ctx, embedding, filter, topK)
	if err != nil {
		return nil, &TransientError{Op: "vector search", Err: err}
	}

	logger.Infow("semantic search done",
		"type", string(intent.Type),
		"top_k", topK,
		"hits", len(hits),
	)
	return hits, nil
}
