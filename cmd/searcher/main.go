package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/reloader"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/watcher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup("searcher", cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	opts, err := indexer.OptionsFromConfig(cfg.Indexer)
	if err != nil {
		return err
	}
	engine := indexer.NewEngine(opts, indexer.WithMetrics(m))
	checker := health.NewChecker()

	var db *postgres.Client
	if cfg.Postgres.Enabled {
		err = resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{MaxAttempts: cfg.Indexer.FetchAttempts}, func() error {
			db, err = postgres.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		checker.Register("postgres", health.PingCheck(db.Ping, false))
	}

	// A searcher normally serves snapshots written by the indexer. Without
	// one it builds from the source itself.
	if snap, err := consumer.LoadLatest(engine, cfg.Indexer.DataDir); err == nil {
		slog.Info("snapshot loaded", "generation", snap.Generation, "fingerprint", snap.Index.Fingerprint())
	} else {
		if !errors.Is(err, apperrors.ErrNotFound) {
			slog.Warn("snapshot unreadable, building from source", "error", err)
		}
		src, err := source.New(cfg.Source, db)
		if err != nil {
			return err
		}
		r := reloader.New(engine, src, reloader.WithRetry(
			resilience.RetryConfig{MaxAttempts: cfg.Indexer.FetchAttempts},
			cfg.Indexer.FetchTimeout,
		))
		if _, err := r.Reload(ctx); err != nil {
			slog.Error("initial build failed, serving empty index", "error", err)
		}
		if cfg.Indexer.Watch && cfg.Source.Kind == "file" {
			go func() {
				err := watcher.Watch(ctx, cfg.Source.Path, cfg.Indexer.Debounce, func(ctx context.Context) {
					if _, err := r.Reload(ctx); err != nil {
						slog.Error("rebuild after file change failed", "error", err)
					}
				})
				if err != nil {
					slog.Error("corpus watcher stopped", "error", err)
				}
			}()
		}
	}
	checker.Register("index", engine.HealthCheck())

	var resultCache cache.ResultCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, using in-process cache", "error", err)
			checker.Register("redis", health.PingCheck(func(context.Context) error { return err }, true))
		} else {
			defer redisClient.Close()
			resultCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	} else {
		checker.Register("redis", health.Disabled)
	}
	if resultCache == nil {
		resultCache = cache.NewLocal(cfg.Search.LocalCacheSize, m)
	}

	aggregator := analytics.NewAggregator()
	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		events := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer events.Close()
		collector = analytics.NewCollector(events, nil, 0, 0)

		// Every replica must see every snapshot and analytics event, so each
		// consumes in a group of its own.
		perInstance := cfg.Kafka
		perInstance.ConsumerGroup = fmt.Sprintf("%s-searcher-%s", cfg.Kafka.ConsumerGroup, instanceID())

		analyticsConsumer := kafka.NewConsumer(perInstance, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
		go func() {
			if err := analyticsConsumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()

		snapshots := consumer.New(kafka.NewConsumer(perInstance, cfg.Kafka.Topics.IndexComplete,
			consumer.HandleIndexComplete(engine, cfg.Indexer.DataDir, func(ctx context.Context, snap *indexer.Snapshot) {
				if err := resultCache.Invalidate(ctx, snap.Index.Fingerprint()); err != nil {
					slog.Warn("stale cache cleanup failed", "error", err)
				}
			}),
			kafka.WithHandlerRetry(resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Second}),
		))
		go func() {
			if err := snapshots.Start(ctx); err != nil {
				slog.Error("index-complete consumer error", "error", err)
			}
		}()
	} else {
		collector = analytics.NewCollector(nil, aggregator, 0, 0)
	}
	collector.Start(ctx)
	defer collector.Close()

	exec := executor.New(engine, cfg.Search.SnippetWidth, m)
	h := handler.New(exec, resultCache, collector, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", m.Handler())
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, time.Minute)
		go limiter.Run(ctx, 5*time.Minute)
		chain = middleware.RateLimit(limiter, m)(chain)
	}
	chain = middleware.CORS(middleware.SearchCORSConfig(cfg.Server.CORSOrigins))(chain)
	routes := append([]string{"/api/v1/analytics", "/health/live", "/health/ready", "/metrics"}, handler.Paths...)
	chain = middleware.Metrics(m, routes...)(chain)
	chain = middleware.RequestID(chain)

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

	slog.Info("search service listening",
		"addr", server.Addr,
		"generation", engine.Generation(),
		"documents", engine.Current().TotalDocs(),
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func instanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fmt.Sprintf("pid%d", os.Getpid())
}
