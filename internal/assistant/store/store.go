package store

import (
	"context"

	"github.com/kart-io/studyrag/internal/model"
)

// IndexEntry 表示写入向量索引的一条记录。
type IndexEntry struct {
	// ID 记录 ID，作为索引主键，重复写入同一 ID 会覆盖旧值。
	ID string
	// Embedding 嵌入向量。
	Embedding []float32
	// Subject 学科。
	Subject string
	// Topic 主题。
	Topic string
	// Type 记录类型（question/flashcard）。
	Type model.RecordType
}

// SearchFilter 检索过滤条件。
type SearchFilter struct {
	// Type 限定记录类型，RecordTypeGeneral 表示不过滤。
	Type model.RecordType
}

// VectorIndex 定义向量索引接口。
type VectorIndex interface {
	// EnsureCollection 确保集合存在并已加载。
	EnsureCollection(ctx context.Context) error

	// UpsertBatch 批量写入索引条目，按 ID 覆盖。
	UpsertBatch(ctx context.Context, entries []*IndexEntry) error

	// Query 向量相似度检索，按过滤条件限定类型。
	Query(ctx context.Context, embedding []float32, filter SearchFilter, topK int) ([]model.SearchHit, error)

	// Stats 返回索引中的条目数量。
	Stats(ctx context.Context) (int64, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}
