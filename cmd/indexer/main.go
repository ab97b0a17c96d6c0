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
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/buildlog"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/reloader"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/watcher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
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
	logger.Setup("indexer", cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("indexer service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer service stopped")
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
	checker.Register("index", engine.HealthCheck())
	if cfg.Metrics.Enabled {
		shutdown := m.StartServer(cfg.Metrics.Port, map[string]http.Handler{
			"/health/live":  checker.LiveHandler(),
			"/health/ready": checker.ReadyHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}
	retry := resilience.RetryConfig{MaxAttempts: cfg.Indexer.FetchAttempts}
	reloaderOpts := []reloader.Option{
		reloader.WithSnapshots(segment.NewWriter(cfg.Indexer.DataDir)),
		reloader.WithRetry(retry, cfg.Indexer.FetchTimeout),
	}

	var db *postgres.Client
	if cfg.Postgres.Enabled {
		err = resilience.Retry(ctx, "postgres connect", retry, func() error {
			db, err = postgres.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		checker.Register("postgres", health.PingCheck(db.Ping, false))
		builds := buildlog.NewStore(db)
		if err := builds.EnsureSchema(ctx); err != nil {
			return err
		}
		reloaderOpts = append(reloaderOpts, reloader.WithBuildLog(builds))
	}

	src, err := source.New(cfg.Source, db)
	if err != nil {
		return err
	}

	if cfg.Kafka.Enabled {
		completions := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer completions.Close()
		events := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer events.Close()
		collector := analytics.NewCollector(events, nil, 0, 0)
		collector.Start(ctx)
		defer collector.Close()
		reloaderOpts = append(reloaderOpts,
			reloader.WithPublisher(completions),
			reloader.WithCollector(collector),
		)
	}

	r := reloader.New(engine, src, reloaderOpts...)
	slog.Info("starting indexer service",
		"source", src.String(),
		"data_dir", cfg.Indexer.DataDir,
		"mode", opts.Mode.String(),
	)
	if _, err := r.Reload(ctx); err != nil {
		slog.Error("initial build failed", "error", err)
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

	if !cfg.Kafka.Enabled {
		slog.Info("indexer service ready, kafka disabled")
		<-ctx.Done()
		return nil
	}

	updates := consumer.New(kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.CorpusUpdate,
		consumer.HandleCorpusUpdate(r),
		kafka.WithHandlerRetry(retry),
	))
	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.CorpusUpdate,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := updates.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("corpus update consumer: %w", err)
	}
	return nil
}
