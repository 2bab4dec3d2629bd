package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/huangkk10/ai-platform-rag/db"
	"github.com/huangkk10/ai-platform-rag/internal/classify"
	"github.com/huangkk10/ai-platform-rag/internal/config"
	"github.com/huangkk10/ai-platform-rag/internal/database"
	"github.com/huangkk10/ai-platform-rag/internal/engine"
	"github.com/huangkk10/ai-platform-rag/internal/knowledge"
	"github.com/huangkk10/ai-platform-rag/internal/log"
	"github.com/huangkk10/ai-platform-rag/internal/rag"
	"github.com/huangkk10/ai-platform-rag/internal/router"
)

// Setup creates and initializes the application. On any failure it tears
// down everything already initialized before returning.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	logger := provideLogger(cfg)
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	// The schema's vector column width is fixed; a mismatched embedder
	// would fail on every upsert.
	if cfg.Embedder.Dimension != rag.VectorDimension {
		return nil, fmt.Errorf("embedder dimension %d does not match schema dimension %d",
			cfg.Embedder.Dimension, rag.VectorDimension)
	}

	embedder, err := knowledge.NewHTTPEmbedder(knowledge.EmbedderConfig{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    cfg.Embedder.APIKey,
		Model:     cfg.Embedder.Model,
		Dimension: cfg.Embedder.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	a.Knowledge = knowledge.New(knowledge.NewQueries(pool), embedder, logger)
	a.Vectorizer = rag.NewVectorizer(a.Knowledge, logger)
	a.Retriever = rag.NewRetriever(a.Knowledge, logger)

	bindings, routers, err := provideRouters(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Bindings = bindings
	a.Routers = routers

	return a, nil
}

// provideLogger builds the application logger from config.
func provideLogger(cfg *config.Config) log.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return log.New(log.Config{Level: level, JSON: cfg.LogJSON})
}

// provideRouters builds one engine client and query router per configured
// category. Shared router knobs come from cfg.Router.
func provideRouters(cfg *config.Config, logger log.Logger) (*engine.Bindings, map[string]*router.Router, error) {
	bindings := engine.NewBindings()
	routers := make(map[string]*router.Router, len(cfg.Engines))

	classifier := classify.New(
		classify.WithMinAnswerLength(cfg.Router.MinAnswerLength),
	)

	routerOpts := []router.Option{router.WithClassifier(classifier)}
	if cfg.Router.FallbackSuffix != "" {
		routerOpts = append(routerOpts, router.WithFallbackSuffix(cfg.Router.FallbackSuffix))
	}

	for category, binding := range cfg.Engines {
		client, err := engine.NewClient(engine.Config{
			BaseURL: binding.BaseURL,
			APIKey:  binding.APIKey,
			Timeout: cfg.Router.EngineTimeout,
			Retry: engine.RetryConfig{
				MaxRetries: cfg.Router.MaxRetries,
				BaseDelay:  cfg.Router.RetryBaseDelay,
				Multiplier: cfg.Router.RetryMultiplier,
			},
			Logger: logger.With("category", category),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("engine client for category %q: %w", category, err)
		}

		bindings.Register(category, client)
		routers[category] = router.New(client, logger.With("category", category), routerOpts...)
	}

	return bindings, routers, nil
}
