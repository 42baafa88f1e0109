// Package docqa provides the document QA server implementation.
package docqa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/docqa/handler"
	"github.com/kart-io/docqa/internal/docqa/router"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/pkg/component/milvus"
	"github.com/kart-io/docqa/pkg/infra/app"
	"github.com/kart-io/docqa/pkg/llm"
	// Register LLM providers.
	_ "github.com/kart-io/docqa/pkg/llm/ollama"
	cacheopts "github.com/kart-io/docqa/pkg/options/cache"
	httpopts "github.com/kart-io/docqa/pkg/options/http"
	logopts "github.com/kart-io/docqa/pkg/options/logger"
	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
	ollamaopts "github.com/kart-io/docqa/pkg/options/ollama"
	qaopts "github.com/kart-io/docqa/pkg/options/qa"
)

// Name is the name of the application.
const Name = "docqa"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions     *httpopts.Options
	LogOptions      *logopts.Options
	MilvusOptions   *milvusopts.Options
	OllamaOptions   *ollamaopts.Options
	QAOptions       *qaopts.Options
	CacheOptions    *cacheopts.Options
	ShutdownTimeout time.Duration
}

// Server represents the document QA server.
type Server struct {
	srv             *http.Server
	service         *biz.Service
	shutdownTimeout time.Duration
	milvusClose     func()
	redisClose      func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting document QA service")

	provider, err := llm.NewProvider("ollama", cfg.OllamaOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm provider: %w", err)
	}
	pingProvider(ctx, provider)
	logger.Infow("LLM provider initialized",
		"provider", provider.Name(),
		"embed_model", cfg.OllamaOptions.EmbedModel,
		"chat_model", cfg.OllamaOptions.ChatModel,
	)

	milvusClient, err := milvus.New(cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	logger.Infow("Milvus client initialized", "address", cfg.MilvusOptions.Address)

	index := store.NewMilvusIndex(milvusClient, provider, cfg.QAOptions.Collection, cfg.QAOptions.EmbeddingDim)
	if err := index.Ensure(ctx); err != nil {
		_ = milvusClient.Close(context.Background())
		return nil, fmt.Errorf("failed to prepare collection %q: %w", cfg.QAOptions.Collection, err)
	}
	logger.Infow("Vector index ready",
		"collection", cfg.QAOptions.Collection,
		"dimension", cfg.QAOptions.EmbeddingDim,
	)

	queryCache, redisClose := setupCache(ctx, cfg.CacheOptions)

	service, err := biz.NewService(index, provider, provider, queryCache, cfg.QAOptions)
	if err != nil {
		_ = milvusClient.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize QA service: %w", err)
	}

	engine := router.New(cfg.HTTPOptions.Mode, handler.New(service))
	engine.MaxMultipartMemory = cfg.HTTPOptions.MaxUploadSize

	// WriteTimeout stays at the configured value; zero keeps streaming
	// responses open indefinitely.
	srv := &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	logger.Infow("Document QA service is ready", "addr", cfg.HTTPOptions.Addr)
	return &Server{
		srv:             srv,
		service:         service,
		shutdownTimeout: cfg.ShutdownTimeout,
		milvusClose:     func() { _ = milvusClient.Close(context.Background()) },
		redisClose:      redisClose,
	}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled
// or the server fails. In-flight requests get ShutdownTimeout to finish.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		s.service.Close()
		if s.milvusClose != nil {
			s.milvusClose()
		}
		if s.redisClose != nil {
			s.redisClose()
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Infow("Shutting down", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down gracefully: %w", err)
	}
	return nil
}

// pingProvider checks provider availability at startup. A failed ping is
// logged but not fatal: the model server may come up later.
func pingProvider(ctx context.Context, provider llm.Provider) {
	pinger, ok := provider.(interface{ Ping(context.Context) error })
	if !ok {
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pinger.Ping(pingCtx); err != nil {
		logger.Warnw("LLM provider is unreachable, queries will fail until it recovers", "error", err)
	}
}

// setupCache builds the Redis-backed query cache. A missing or broken
// Redis disables caching instead of failing startup.
func setupCache(ctx context.Context, opts *cacheopts.Options) (*biz.QueryCache, func()) {
	if opts == nil || !opts.Enabled {
		logger.Infow("Query cache is disabled")
		return biz.NewQueryCache(nil, nil), nil
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr(),
		Password: opts.Password,
		DB:       opts.Database,
		PoolSize: opts.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warnw("Failed to connect to redis, query cache disabled", "addr", opts.Addr(), "error", err)
		_ = redisClient.Close()
		return biz.NewQueryCache(nil, nil), nil
	}

	cache := biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
		Enabled:   true,
		TTL:       opts.TTL,
		KeyPrefix: opts.KeyPrefix,
	})
	logger.Infow("Query cache initialized", "addr", opts.Addr(), "ttl", opts.TTL)
	return cache, func() { _ = redisClient.Close() }
}
