// Command docsearch runs the document store: the HTTP API, the indexing
// workers consuming the task topics, and the reconciliation sweep, all in a
// single process sharing the embedded index.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docsearch-io/docsearch/internal/api"
	"github.com/docsearch-io/docsearch/internal/cache"
	"github.com/docsearch-io/docsearch/internal/consumer"
	"github.com/docsearch-io/docsearch/internal/document"
	"github.com/docsearch-io/docsearch/internal/index"
	"github.com/docsearch-io/docsearch/internal/ratelimit"
	"github.com/docsearch-io/docsearch/internal/search"
	"github.com/docsearch-io/docsearch/pkg/config"
	"github.com/docsearch-io/docsearch/pkg/health"
	"github.com/docsearch-io/docsearch/pkg/kafka"
	"github.com/docsearch-io/docsearch/pkg/logger"
	"github.com/docsearch-io/docsearch/pkg/metrics"
	"github.com/docsearch-io/docsearch/pkg/middleware"
	"github.com/docsearch-io/docsearch/pkg/postgres"
	"github.com/docsearch-io/docsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	store := document.NewPostgresStore(pg)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	engine, err := index.NewBleveEngine(cfg.Index.DataDir)
	if err != nil {
		slog.Error("failed to open index", "data_dir", cfg.Index.DataDir, "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Redis is optional: without it the cache is disabled and the rate
	// limiter fails open, but documents and search keep working.
	var redisClient *redis.Client
	var responseCache *cache.Cache
	if rc, err := redis.NewClient(cfg.Redis); err != nil {
		slog.Warn("redis unavailable, caching and rate limiting disabled", "error", err)
	} else {
		redisClient = rc
		defer redisClient.Close()
		responseCache = cache.New(cache.NewRedisStore(redisClient), m)
	}

	indexPub := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIndex)
	defer indexPub.Close()
	deletePub := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentDelete)
	defer deletePub.Close()

	docSvc := document.NewService(store, indexPub, deletePub, engine, responseCache, cfg.Cache.DocumentTTL, m)
	searchSvc := search.NewService(engine, responseCache, cfg.Cache.SearchTTL, m)

	workers := consumer.New(cfg.Kafka, docSvc, m)
	go func() {
		if err := workers.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("consumer workers stopped", "error", err)
			stop()
		}
	}()

	if cfg.Reconciler.Enabled {
		go document.NewReconciler(store, indexPub, cfg.Reconciler, m).Run(ctx)
	}

	checker := health.NewChecker()
	checker.Register("postgresql", func(ctx context.Context) health.ComponentHealth {
		if err := pg.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if err := engine.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		if err := indexPub.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if redisClient != nil {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Set(ctx, "health-check", "ok", time.Second); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			if _, err := redisClient.Get(ctx, "health-check"); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	h := api.New(docSvc, searchSvc)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/health", checker.Handler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.RateLimit.Enabled && redisClient != nil {
		limiter := ratelimit.New(redisClient, cfg.RateLimit, m)
		chain = middleware.RateLimit(limiter, cfg.RateLimit.Window)(chain)
	}
	chain = middleware.Tenant(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("document search listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("document search stopped")
}
