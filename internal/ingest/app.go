package ingest

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/studyrag/internal/assistant/store"
	"github.com/kart-io/studyrag/internal/model"
	"github.com/kart-io/studyrag/pkg/app"
	"github.com/kart-io/studyrag/pkg/component/milvus"
	"github.com/kart-io/studyrag/pkg/llm"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/studyrag/pkg/llm/ollama"
	_ "github.com/kart-io/studyrag/pkg/llm/openai"
)

const (
	appName        = "studyrag-ingest"
	appDescription = `StudyRAG Ingestion Job

Embeds the question and flashcard corpora and writes them into the
vector index in batches with retry, then derives the subject/topic
vocabulary metadata artifact.`
)

// NewApp creates a new ingestion job instance.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return Run(opts)
		}),
	)
}

// Run runs the ingestion job with the given options.
func Run(opts *Options) error {
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	sources := []Source{
		{Path: opts.Assistant.QuestionsPath, Type: model.RecordTypeQuestion},
		{Path: opts.Assistant.FlashcardsPath, Type: model.RecordTypeFlashcard},
	}

	ctx := context.Background()

	if !opts.MetadataOnly {
		logger.Infow("starting ingestion",
			"batch_size", opts.BatchSize,
			"max_attempts", opts.MaxAttempts,
			"collection", opts.Assistant.Collection,
		)

		milvusClient, err := milvus.New(opts.Milvus)
		if err != nil {
			return fmt.Errorf("failed to initialize milvus: %w", err)
		}
		defer func() { _ = milvusClient.Close(ctx) }()

		embedder, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
		if err != nil {
			return fmt.Errorf("failed to initialize embedding provider: %w", err)
		}

		index := store.NewMilvusIndex(milvusClient, opts.Assistant.Collection, opts.Assistant.EmbeddingDim)

		if opts.Rebuild {
			logger.Infow("rebuilding index, dropping collection", "collection", opts.Assistant.Collection)
			if err := index.Drop(ctx); err != nil {
				return fmt.Errorf("failed to drop collection: %w", err)
			}
		}

		pipeline := NewPipeline(embedder, index, &Config{
			BatchSize:   opts.BatchSize,
			MaxAttempts: opts.MaxAttempts,
			BackoffBase: opts.BackoffBase,
		})

		report, err := pipeline.Run(ctx, sources)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}

		for typ, tr := range report.Types {
			if tr.Failed > 0 {
				logger.Warnw("some records were not indexed",
					"type", string(typ),
					"failed", tr.Failed,
				)
			}
		}
	} else {
		logger.Info("metadata-only mode, skipping indexing")
	}

	// 从语料导出词表 metadata，查询服务启动时加载
	vocab, err := BuildVocabulary(sources)
	if err != nil {
		return fmt.Errorf("failed to build vocabulary: %w", err)
	}
	if err := WriteVocabulary(opts.Assistant.VocabularyPath, vocab); err != nil {
		return err
	}

	logger.Info("ingestion job finished")
	return nil
}
