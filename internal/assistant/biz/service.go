package biz

import (
	"context"

	"github.com/kart-io/logger"

	"github.com/kart-io/studyrag/internal/assistant/metrics"
	"github.com/kart-io/studyrag/internal/assistant/store"
	"github.com/kart-io/studyrag/internal/model"
)

// Service 组合意图解析、向量检索、内容水合与回答生成，
// 对外提供同步查询与流式查询两种入口。
type Service struct {
	parser    *IntentParser
	searcher  *Searcher
	hydrator  *Hydrator
	generator *Generator
	cache     *QueryCache
	content   *ContentStore
	index     store.VectorIndex
	vocab     *model.Vocabulary
}

// ServiceConfig 服务装配依赖。
type ServiceConfig struct {
	Parser     *IntentParser
	Searcher   *Searcher
	Hydrator   *Hydrator
	Generator  *Generator
	Cache      *QueryCache
	Content    *ContentStore
	Index      store.VectorIndex
	Vocabulary *model.Vocabulary
}

// NewService 创建查询服务实例。
func NewService(cfg *ServiceConfig) *Service {
	return &Service{
		parser:    cfg.Parser,
		searcher:  cfg.Searcher,
		hydrator:  cfg.Hydrator,
		generator: cfg.Generator,
		cache:     cfg.Cache,
		content:   cfg.Content,
		index:     cfg.Index,
		vocab:     cfg.Vocabulary,
	}
}

// Query 同步执行查询，阶段事件被丢弃，仅返回最终结果。
func (s *Service) Query(ctx context.Context, query string) (*model.QueryResponse, error) {
	return s.execute(ctx, query, func(Event) {})
}

// QueryStream 流式执行查询。返回的通道按阶段顺序发布事件，
// complete 或 error 事件之后关闭。
func (s *Service) QueryStream(ctx context.Context, query string) <-chan Event {
	events := make(chan Event, 8)
	go func() {
		defer close(events)
		emit := func(ev Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
		if _, err := s.execute(ctx, query, emit); err != nil {
			// 空查询在任何事件发出之前失败，这里补发 error 事件
			// 让流式客户端收到终止信号
			if err == ErrEmptyQuery {
				emit(Event{Name: EventError, Data: err.Error()})
			}
			logger.Warnw("streaming query failed", "error", err.Error())
		}
	}()
	return events
}

// Vocabulary 返回受控词表。
func (s *Service) Vocabulary() *model.Vocabulary {
	return s.vocab
}

// ClearCache 清除全部查询缓存。
func (s *Service) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

// Stats 汇总服务运行统计：业务指标、语料规模、索引行数与缓存状态。
func (s *Service) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := metrics.Get().Stats()

	questions, flashcards := s.content.Counts()
	stats["corpus"] = map[string]interface{}{
		"questions":  questions,
		"flashcards": flashcards,
	}

	if s.index != nil {
		if rows, err := s.index.Stats(ctx); err != nil {
			logger.Warnw("failed to fetch index stats", "error", err.Error())
		} else {
			stats["index"] = map[string]interface{}{
				"row_count": rows,
			}
		}
	}

	if s.cache != nil {
		cacheStats, err := s.cache.GetStats(ctx)
		if err != nil {
			logger.Warnw("failed to fetch cache stats", "error", err.Error())
		} else {
			stats["cache"] = cacheStats
		}
	}

	return stats, nil
}

// Close 释放服务持有的资源。
func (s *Service) Close() {
	if s.hydrator != nil {
		s.hydrator.Release()
	}
}
