package store

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/studyrag/internal/model"
	"github.com/kart-io/studyrag/pkg/component/milvus"
)

// 确保 MilvusIndex 实现了 VectorIndex 接口。
var _ VectorIndex = (*MilvusIndex)(nil)

// MilvusIndex 实现基于 Milvus 的向量索引。
type MilvusIndex struct {
	client     *milvus.Client
	collection string
	dimension  int
}

// NewMilvusIndex 创建 Milvus 索引实例。
func NewMilvusIndex(client *milvus.Client, collection string, dimension int) *MilvusIndex {
	return &MilvusIndex{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}
}

// EnsureCollection 确保集合存在并已加载。
func (s *MilvusIndex) EnsureCollection(ctx context.Context) error {
	schema := &milvus.CollectionSchema{
		Name:        s.collection,
		Description: "Study question and flashcard embeddings",
		Dimension:   s.dimension,
		MetaFields: []milvus.MetaField{
			{Name: "subject", DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: "topic", DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: "type", DataType: entity.FieldTypeVarChar, MaxLen: 32},
		},
	}
	return s.client.EnsureCollection(ctx, schema)
}

// UpsertBatch 批量写入索引条目到 Milvus，按 ID 覆盖。
func (s *MilvusIndex) UpsertBatch(ctx context.Context, entries []*IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]string, len(entries))
	embeddings := make([][]float32, len(entries))
	metadata := map[string][]any{
		"subject": make([]any, len(entries)),
		"topic":   make([]any, len(entries)),
		"type":    make([]any, len(entries)),
	}

	for i, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("index entry %d has empty id", i)
		}
		if len(e.Embedding) != s.dimension {
			return fmt.Errorf("index entry %s has dimension %d, want %d", e.ID, len(e.Embedding), s.dimension)
		}
		ids[i] = e.ID
		embeddings[i] = e.Embedding
		metadata["subject"][i] = e.Subject
		metadata["topic"][i] = e.Topic
		metadata["type"][i] = string(e.Type)
	}

	data := &milvus.UpsertData{
		IDs:        ids,
		Embeddings: embeddings,
		Metadata:   metadata,
	}

	if err := s.client.Upsert(ctx, s.collection, data); err != nil {
		return fmt.Errorf("failed to upsert into milvus: %w", err)
	}
	return nil
}

// Query 执行向量相似度检索。general 类型不加过滤表达式，检索全量。
func (s *MilvusIndex) Query(ctx context.Context, embedding []float32, filter SearchFilter, topK int) ([]model.SearchHit, error) {
	expr := ""
	if filter.Type != "" && filter.Type != model.RecordTypeGeneral {
		expr = fmt.Sprintf("type == %q", string(filter.Type))
	}

	outputFields := []string{"subject", "topic", "type"}
	results, err := s.client.Search(ctx, s.collection, embedding, topK, expr, outputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	hits := make([]model.SearchHit, 0, len(results))
	for _, r := range results {
		hit := model.SearchHit{
			ID:    r.ID,
			Score: r.Score,
		}
		if v, ok := r.Metadata["subject"].(string); ok {
			hit.Subject = v
		}
		if v, ok := r.Metadata["topic"].(string); ok {
			hit.Topic = v
		}
		if v, ok := r.Metadata["type"].(string); ok {
			hit.Type = model.RecordType(v)
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// Drop 删除整个集合。重建索引时在写入前调用，EnsureCollection
// 随后会按当前 schema 重新建表。
func (s *MilvusIndex) Drop(ctx context.Context) error {
	if err := s.client.DropCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Stats 返回集合中的条目数量。
func (s *MilvusIndex) Stats(ctx context.Context) (int64, error) {
	return s.client.GetCollectionStats(ctx, s.collection)
}

// Close 关闭 Milvus 连接。
func (s *MilvusIndex) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
