package assistant

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/studyrag/internal/assistant/biz"
	"github.com/kart-io/studyrag/internal/assistant/handler"
	"github.com/kart-io/studyrag/internal/assistant/router"
	"github.com/kart-io/studyrag/internal/assistant/store"
	"github.com/kart-io/studyrag/pkg/app"
	"github.com/kart-io/studyrag/pkg/component/milvus"
	"github.com/kart-io/studyrag/pkg/llm"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/studyrag/pkg/llm/ollama"
	_ "github.com/kart-io/studyrag/pkg/llm/openai"

	goredis "github.com/redis/go-redis/v9"
)

const (
	appName        = "studyrag"
	appDescription = `StudyRAG Assistant Service

A retrieval-augmented study assistant over question and flashcard corpora.

This server provides:
  - LLM-based query intent parsing with vocabulary alignment
  - Filtered semantic search over embedded study records
  - Staged SSE streaming of query progress`
)

// 水合协程池大小。
const hydrationPoolSize = 8

// NewApp creates a new application instance.
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

// Run runs the study-assistant service with the given options.
func Run(opts *Options) error {
	// 1. 初始化日志
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting assistant service...")

	// 2. 初始化 Milvus 客户端与向量索引。连接按需建立，
	// 启动时不要求 Milvus 可用。
	milvusClient, err := milvus.New(opts.Milvus)
	if err != nil {
		return fmt.Errorf("failed to initialize milvus: %w", err)
	}
	vectorIndex := store.NewMilvusIndex(milvusClient, opts.Assistant.Collection, opts.Assistant.EmbeddingDim)
	logger.Info("Vector index initialized")

	// 3. 加载词表与语料
	vocab, err := biz.LoadVocabulary(opts.Assistant.VocabularyPath)
	if err != nil {
		return fmt.Errorf("failed to load vocabulary: %w", err)
	}
	matcher := biz.NewMatcher(vocab, opts.Assistant.MatchThreshold)

	content, err := biz.NewContentStore(opts.Assistant.QuestionsPath, opts.Assistant.FlashcardsPath)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	hydrator, err := biz.NewHydrator(content, hydrationPoolSize)
	if err != nil {
		return fmt.Errorf("failed to create hydrator: %w", err)
	}

	// 4. 初始化 Redis 查询缓存
	var queryCache *biz.QueryCache
	var redisClose func()
	if opts.Cache.Enabled && opts.Cache.Redis != nil {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:         opts.Cache.Redis.Addr(),
			Password:     opts.Cache.Redis.Password,
			DB:           opts.Cache.Redis.Database,
			MaxRetries:   opts.Cache.Redis.MaxRetries,
			PoolSize:     opts.Cache.Redis.PoolSize,
			MinIdleConns: opts.Cache.Redis.MinIdleConns,
		})

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
			_ = redisClient.Close()
		} else {
			queryCache = biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
				Enabled:   true,
				TTL:       opts.Cache.TTL,
				KeyPrefix: opts.Cache.KeyPrefix,
			})
			redisClose = func() { _ = redisClient.Close() }
			logger.Infow("Redis cache initialized",
				"addr", opts.Cache.Redis.Addr(),
				"ttl", opts.Cache.TTL,
			)
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 5. 初始化 LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", opts.Embedding.Provider,
		"model", opts.Embedding.Model,
	)

	chatProvider, err := llm.NewChatProvider(opts.Chat.Provider, opts.Chat.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", opts.Chat.Provider,
		"model", opts.Chat.Model,
	)

	// 6. 初始化 Biz 层
	service := biz.NewService(&biz.ServiceConfig{
		Parser:     biz.NewIntentParser(chatProvider, matcher),
		Searcher:   biz.NewSearcher(embedProvider, vectorIndex),
		Hydrator:   hydrator,
		Generator:  biz.NewGenerator(chatProvider, &biz.GeneratorConfig{SystemPrompt: opts.Assistant.AnswerPrompt}),
		Cache:      queryCache,
		Content:    content,
		Index:      vectorIndex,
		Vocabulary: vocab,
	})
	logger.Infow("Assistant service initialized",
		"collection", opts.Assistant.Collection,
		"cache.enabled", queryCache != nil,
	)

	// 7. 初始化 Handler 层与路由
	gin.SetMode(gin.ReleaseMode)
	queryHandler := handler.NewQueryHandler(service)
	engine := router.New(queryHandler)

	// 8. 启动服务器
	server := NewServer(engine, opts.HTTP)
	server.OnShutdown(func() { service.Close() })
	server.OnShutdown(func() { _ = milvusClient.Close(context.Background()) })
	if redisClose != nil {
		server.OnShutdown(redisClose)
	}

	logger.Info("Assistant service is ready")
	return server.Run()
}
