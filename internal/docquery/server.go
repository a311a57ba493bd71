// Package docquery provides the document Q&A service server implementation.
package docquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docquery/internal/docquery/biz"
	"github.com/kart-io/docquery/internal/docquery/handler"
	"github.com/kart-io/docquery/internal/docquery/router"
	"github.com/kart-io/docquery/internal/docquery/store"
	"github.com/kart-io/docquery/internal/model"
	milvuscomp "github.com/kart-io/docquery/pkg/component/milvus"
	"github.com/kart-io/docquery/pkg/infra/pool"
	"github.com/kart-io/docquery/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/docquery/pkg/llm/ollama"
	_ "github.com/kart-io/docquery/pkg/llm/openai"
	"github.com/kart-io/docquery/pkg/llm/resilience"
	llmopts "github.com/kart-io/docquery/pkg/options/llm"
	logopts "github.com/kart-io/docquery/pkg/options/logger"
	milvusopts "github.com/kart-io/docquery/pkg/options/milvus"
	mysqlopts "github.com/kart-io/docquery/pkg/options/mysql"
	pipelineopts "github.com/kart-io/docquery/pkg/options/pipeline"
	redisopts "github.com/kart-io/docquery/pkg/options/redis"
	serveropts "github.com/kart-io/docquery/pkg/options/server"
)

// Name is the name of the application.
const Name = "docquery"

// Config contains application-related configurations.
type Config struct {
	ServerOptions    *serveropts.Options
	LogOptions       *logopts.Options
	MySQLOptions     *mysqlopts.Options
	RedisOptions     *redisopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	PipelineOptions  *pipelineopts.Options
}

// Server represents the docquery server.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	closers         []func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. 初始化日志
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting docquery service...",
		"embedding", cfg.EmbeddingOptions.Provider,
		"chat", cfg.ChatOptions.Provider,
	)

	var closers []func()

	// 2. 初始化关系数据库
	db, err := store.NewDB(cfg.MySQLOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.AutoMigrate(&model.Document{}, &model.Chunk{}, &model.TableHistoryEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	docs := store.NewDocumentStore(db)
	historyStore := store.NewHistoryStore(db)
	logger.Info("Relational store initialized")

	// 3. 初始化向量存储
	var vectors store.VectorStore
	if cfg.MilvusOptions.Enabled {
		milvusClient, err := milvuscomp.New(cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		closers = append(closers, func() { _ = milvusClient.Close(context.Background()) })
		vectors = store.NewMilvusStore(milvusClient, store.CollectionConfig{
			Collection: cfg.PipelineOptions.Collection,
			Dimension:  cfg.PipelineOptions.EmbeddingDim,
		})
		logger.Infow("Milvus vector store initialized",
			"address", cfg.MilvusOptions.Address,
			"collection", cfg.PipelineOptions.Collection,
		)
	} else {
		vectors = store.NewMemoryStore()
		logger.Warn("Milvus is disabled, using in-memory vector store")
	}
	if err := vectors.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure vector collection: %w", err)
	}

	// 4. 初始化 Redis 答案缓存
	var answerCache *biz.AnswerCache
	if cfg.RedisOptions.Enabled {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:         cfg.RedisOptions.Addr(),
			Password:     cfg.RedisOptions.Password,
			DB:           cfg.RedisOptions.Database,
			MaxRetries:   cfg.RedisOptions.MaxRetries,
			PoolSize:     cfg.RedisOptions.PoolSize,
			MinIdleConns: cfg.RedisOptions.MinIdleConns,
			DialTimeout:  cfg.RedisOptions.DialTimeout,
			ReadTimeout:  cfg.RedisOptions.ReadTimeout,
			WriteTimeout: cfg.RedisOptions.WriteTimeout,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnw("failed to connect to redis, answer cache disabled", "error", err.Error())
			_ = redisClient.Close()
			answerCache = biz.NewAnswerCache(nil, 0)
		} else {
			answerCache = biz.NewAnswerCache(redisClient, cfg.RedisOptions.AnswerTTL)
			closers = append(closers, func() { _ = redisClient.Close() })
			logger.Infow("Redis answer cache initialized",
				"addr", cfg.RedisOptions.Addr(),
				"ttl", cfg.RedisOptions.AnswerTTL,
			)
		}
	} else {
		answerCache = biz.NewAnswerCache(nil, 0)
		logger.Info("Answer cache is disabled")
	}

	// 5. 初始化 LLM 供应商 (带重试与熔断)
	rawEmbed, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	embedProvider := resilience.NewResilientEmbeddingProvider(rawEmbed, nil, nil)
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	rawChat, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	chatProvider := resilience.NewResilientChatProvider(rawChat, nil, nil)
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 6. 初始化协程池
	ingestPool, err := pool.NewPool("ingest", pool.IngestPool, pool.IngestPoolConfig(cfg.PipelineOptions.IngestWorkers))
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest pool: %w", err)
	}
	tablePool, err := pool.NewPool("table", pool.TablePool, pool.TablePoolConfig(cfg.PipelineOptions.TableWorkers))
	if err != nil {
		return nil, fmt.Errorf("failed to create table pool: %w", err)
	}
	evalPool, err := pool.NewPool("eval", pool.EvalPool, &pool.Config{Capacity: cfg.PipelineOptions.TableWorkers})
	if err != nil {
		return nil, fmt.Errorf("failed to create eval pool: %w", err)
	}
	closers = append(closers, ingestPool.Release, tablePool.Release, evalPool.Release)

	// 7. 初始化 Biz 层
	modelTag := fmt.Sprintf("%s/%s", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	retriever := biz.NewRetriever(vectors, docs, embedProvider, &biz.RetrieverConfig{
		TopK:     cfg.PipelineOptions.TopK,
		MinScore: cfg.PipelineOptions.MinScore,
		ModelTag: modelTag,
	})
	history := biz.NewTableHistory(historyStore)
	synthesizer := biz.NewSynthesizer(retriever, chatProvider, history, docs, tablePool, &biz.SynthesizerConfig{
		ChatSystemPrompt: cfg.PipelineOptions.ChatSystemPrompt,
		CellSystemPrompt: cfg.PipelineOptions.CellSystemPrompt,
		CellTopK:         cfg.PipelineOptions.TopK,
	})
	ingestor := biz.NewIngestor(
		biz.NewExtractor(),
		biz.NewChunker(biz.ChunkerConfig{
			Size:    cfg.PipelineOptions.ChunkSize,
			Overlap: cfg.PipelineOptions.ChunkOverlap,
		}),
		embedProvider, vectors, docs, ingestPool, modelTag,
	)

	service := biz.NewService(&biz.ServiceConfig{
		Ingestor:          ingestor,
		Retriever:         retriever,
		Synthesizer:       synthesizer,
		History:           history,
		Cache:             answerCache,
		Vectors:           vectors,
		Docs:              docs,
		EvalPool:          evalPool,
		EmbedProviderName: embedProvider.Name(),
		ChatProviderName:  chatProvider.Name(),
	})
	logger.Info("Business layer initialized")

	// 8. 初始化 HTTP 层
	gin.SetMode(cfg.ServerOptions.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	router.Register(engine, handler.NewHandler(service, chatProvider))

	httpServer := &http.Server{
		Addr:         cfg.ServerOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.ServerOptions.ReadTimeout,
		WriteTimeout: cfg.ServerOptions.WriteTimeout,
	}

	logger.Info("docquery service is ready")
	return &Server{
		httpServer:      httpServer,
		shutdownTimeout: cfg.ServerOptions.ShutdownTimeout,
		closers:         closers,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down docquery service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.close()
	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("docquery service stopped")
	return nil
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
