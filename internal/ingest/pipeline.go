package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/studyrag/internal/assistant/metrics"
	"github.com/kart-io/studyrag/internal/assistant/store"
	"github.com/kart-io/studyrag/internal/model"
	"github.com/kart-io/studyrag/pkg/llm"
)

// Config 摄取流水线配置。
type Config struct {
	// BatchSize 每批记录数。
	BatchSize int
	// MaxAttempts 每批最大尝试次数（含首次）。
	MaxAttempts int
	// BackoffBase 重试退避基准，第 n 次失败后等待 BackoffBase × 2^n。
	BackoffBase time.Duration
}

// DefaultConfig 返回默认流水线配置。
func DefaultConfig() *Config {
	return &Config{
		BatchSize:   100,
		MaxAttempts: 3,
		BackoffBase: 1000 * time.Millisecond,
	}
}

// Source 描述一个待摄取的语料文件。
type Source struct {
	Path string
	Type model.RecordType
}

// TypeReport 单一类型的摄取计数。
type TypeReport struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Report 整体摄取结果，按类型分组计数。
type Report struct {
	Types map[model.RecordType]*TypeReport `json:"types"`
}

func newReport() *Report {
	return &Report{Types: make(map[model.RecordType]*TypeReport)}
}

func (r *Report) forType(typ model.RecordType) *TypeReport {
	tr, ok := r.Types[typ]
	if !ok {
		tr = &TypeReport{}
		r.Types[typ] = tr
	}
	return tr
}

// Pipeline 将语料批量嵌入并写入向量索引。
// 批次严格串行：上一批写入完成后才从 reader 拉取下一批。
type Pipeline struct {
	embedder llm.EmbeddingProvider
	index    store.VectorIndex
	config   *Config
}

// NewPipeline 创建摄取流水线。
func NewPipeline(embedder llm.EmbeddingProvider, index store.VectorIndex, config *Config) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	return &Pipeline{
		embedder: embedder,
		index:    index,
		config:   config,
	}
}

// Run 依次摄取所有语料源，返回按类型分组的计数。
// 单批重试耗尽只计失败，不终止流水线。
func (p *Pipeline) Run(ctx context.Context, sources []Source) (*Report, error) {
	if err := p.index.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	report := newReport()
	for _, src := range sources {
		if err := p.ingestSource(ctx, src, report); err != nil {
			return report, err
		}
	}

	for typ, tr := range report.Types {
		logger.Infow("ingestion finished",
			"type", string(typ),
			"processed", tr.Processed,
			"failed", tr.Failed,
		)
	}
	return report, nil
}

func (p *Pipeline) ingestSource(ctx context.Context, src Source, report *Report) error {
	reader, err := NewReader(src.Path)
	if err != nil {
		return err
	}
	defer reader.Close()

	tr := report.forType(src.Type)
	batch := make([]*model.Record, 0, p.config.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.embedAndUpsertBatch(ctx, src.Type, batch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			tr.Failed += len(batch)
			metrics.Get().RecordIngest(0, err)
			logger.Errorf("batch failed after %d attempts: %v", p.config.MaxAttempts, err)
		} else {
			tr.Processed += len(batch)
			metrics.Get().RecordIngest(len(batch), nil)
		}
		logger.Infow("batch done",
			"type", string(src.Type),
			"processed", tr.Processed,
			"failed", tr.Failed,
		)
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, ErrBadRecord) {
				// 单条解析失败只跳过该条
				tr.Failed++
				logger.Warnw("skipping malformed record", "type", string(src.Type), "error", err.Error())
				continue
			}
			return err
		}

		batch = append(batch, record)
		if len(batch) >= p.config.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}

// embedAndUpsertBatch 嵌入一批记录并写入索引，带指数退避重试。
func (p *Pipeline) embedAndUpsertBatch(ctx context.Context, typ model.RecordType, batch []*model.Record) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.Get().RecordBatchRetry()
			backoff := p.config.BackoffBase * (1 << (attempt - 1))
			logger.Warnw("retrying batch",
				"attempt", attempt+1,
				"backoff", backoff.String(),
				"error", lastErr.Error(),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if lastErr = p.tryBatch(ctx, typ, batch); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

func (p *Pipeline) tryBatch(ctx context.Context, typ model.RecordType, batch []*model.Record) error {
	texts := make([]string, len(batch))
	for i, r := range batch {
		texts[i] = r.EmbeddingText(typ)
	}

	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embed batch: got %d embeddings for %d records", len(embeddings), len(batch))
	}

	entries := make([]*store.IndexEntry, len(batch))
	for i, r := range batch {
		entries[i] = &store.IndexEntry{
			ID:        r.ID,
			Embedding: embeddings[i],
			Subject:   r.Subject,
			Topic:     r.Topic,
			Type:      typ,
		}
	}

	if err := p.index.UpsertBatch(ctx, entries); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}
	return nil
}
