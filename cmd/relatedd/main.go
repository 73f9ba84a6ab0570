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

	"github.com/Adithya-Monish-Kumar-K/related-content/internal/analytics"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/related-content/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/cache"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/handler"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/invalidation"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/query"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/store"
	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/text"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/related-content/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/resilience"
)

const collectorBuffer = 10000

// invalidatingCache is what the planner and the invalidation paths need
// from a cache backend.
type invalidatingCache interface {
	query.Cache
	invalidation.Invalidator
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting related-content service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Postgres, resilience.DefaultRetryConfig())
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	contentStore := store.NewPostgres(db, cfg.Postgres.TextSearchConfig)
	if err := contentStore.Migrate(ctx); err != nil {
		slog.Error("failed to migrate content schema", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db, true))

	var relatedCache invalidatingCache
	// A shared Redis cache needs one flush per change; in-process caches
	// need one per replica, so each replica gets its own consumer group.
	invalidationGroup := "invalidation"
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, falling back to in-process cache", "error", err)
		relatedCache = cache.NewMemory()
		if host, err := os.Hostname(); err == nil {
			invalidationGroup += "-" + host
		}
		checker.Register("redis", health.Static(health.StatusDegraded, "in-process cache in use"))
	} else {
		defer redisClient.Close()
		relatedCache = cache.NewRedis(redisClient)
		checker.Register("redis", health.PingCheck(redisClient, false))
		slog.Info("related cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Related.CacheTTL)
	}

	tokenizer := text.NewTokenizer(
		text.NewStopwordSet(stopwordHooks(cfg.Related)...),
		text.WithShortcodes(cfg.Related.Shortcodes...),
	)
	slog.Info("tokenizer ready", "stopwords", tokenizer.Stopwords().Len())

	planner := query.NewPlanner(contentStore, relatedCache, tokenizer, query.Config{
		Defaults:        query.Defaults{PostsPerPage: cfg.Related.PostsPerPage},
		MaxPostsPerPage: cfg.Related.MaxPostsPerPage,
		CacheTTL:        cfg.Related.CacheTTL,
		CacheNamespace:  cfg.Related.CacheNamespace,
	})

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	var collector *analytics.Collector
	var notifier publisher.Notifier = publisher.NewLocalNotifier(relatedCache, cfg.Related.CacheNamespace)
	if cfg.Kafka.Enabled {
		contentProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ContentChanged)
		defer contentProducer.Close()
		notifier = publisher.NewKafkaNotifier(contentProducer)

		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, collectorBuffer)
		collector.Start(ctx)
		defer collector.Close()
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

		invalidationConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ContentChanged, invalidationGroup,
			invalidation.Handler(relatedCache, cfg.Related.CacheNamespace, m, resilience.DefaultRetryConfig()))
		go func() {
			if err := invalidationConsumer.Start(ctx); err != nil {
				slog.Error("invalidation consumer error", "error", err)
			}
		}()
		slog.Info("content-changed consumer started", "topic", cfg.Kafka.Topics.ContentChanged)
	} else {
		slog.Info("kafka disabled, analytics off and content changes invalidate in-process")
	}

	h := handler.New(planner, relatedCache, cfg.Related.CacheNamespace, collector, m)
	ingestH := ingesthandler.New(publisher.New(contentStore, notifier))

	mux := http.NewServeMux()
	h.Routes(mux)
	ingestH.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Deferred cleanup must wait until in-flight requests have drained.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("related-content service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone

	slog.Info("related-content service stopped")
}

func stopwordHooks(cfg config.RelatedConfig) []text.StopwordHook {
	switch {
	case cfg.ReplaceStopwords:
		return []text.StopwordHook{text.ReplaceStopwords(cfg.ExtraStopwords...)}
	case len(cfg.ExtraStopwords) > 0:
		return []text.StopwordHook{text.AppendStopwords(cfg.ExtraStopwords...)}
	default:
		return nil
	}
}
