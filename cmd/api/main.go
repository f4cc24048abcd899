// Package main is the entry point for the news aggregation API server.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/newsfeed/internal/api"
	"github.com/onnwee/newsfeed/internal/classify"
	"github.com/onnwee/newsfeed/internal/config"
	"github.com/onnwee/newsfeed/internal/ingest"
	"github.com/onnwee/newsfeed/internal/jobs"
	"github.com/onnwee/newsfeed/internal/middleware"
	"github.com/onnwee/newsfeed/internal/source"
	"github.com/onnwee/newsfeed/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Newsfeed API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	logger.Info("starting newsfeed", "config", cfg.LogSummary())

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	jobMetrics := jobs.NewMetrics()
	if err := jobMetrics.Register(registry); err != nil {
		logger.Error("failed to register job metrics", "error", err)
		os.Exit(1)
	}

	// Sources. A run with nothing configured still shows data.
	var sources []source.Source
	for _, url := range cfg.FeedURLs {
		sources = append(sources, source.NewRSSSource(url, url))
	}
	for _, sub := range cfg.Subreddits {
		sources = append(sources, source.NewRedditSource(sub))
	}
	if len(sources) == 0 {
		logger.Warn("no sources configured, using built-in demo source")
		sources = append(sources, source.NewStaticSource("mock-api", source.DemoItems("mock-api")))
	}

	// Classifier: remote zero-shot when configured, local keywords
	// otherwise.
	var classifier classify.Classifier
	if cfg.ClassifierURL != "" {
		classifier = classify.NewZeroShotClassifier(cfg.ClassifierURL, nil)
	} else {
		logger.Warn("no classifier endpoint configured, using keyword classifier")
		classifier = classify.NewKeywordClassifier()
	}

	persistence := time.Duration(cfg.RecencyPersistenceSeconds) * time.Second

	coordinator := ingest.NewCoordinator(sources, classifier, ingest.Config{
		MinScore:     cfg.MinScoreThreshold,
		InitialLimit: cfg.InitialFetchLimitPerSource,
		Persistence:  persistence,
		Logger:       logger,
	})

	newsStore := store.New(store.Config{
		MaxItems:    cfg.MaxItems,
		Persistence: persistence,
		Logger:      logger,
	})

	refreshJob := store.NewRefreshJob(store.RefreshJobConfig{
		Interval: time.Duration(cfg.RefreshIntervalSeconds) * time.Second,
		Logger:   logger,
		Metrics:  jobMetrics,
	}, coordinator, newsStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refreshJob.Start(ctx)

	// Routes
	handlers := api.NewNewsHandlers(newsStore, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /news", handlers.Retrieve)
	mux.HandleFunc("POST /ingest", handlers.Ingest)
	mux.HandleFunc("GET /healthz", handlers.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Apply middleware: RequestID -> Logging -> Metrics
	handler := middleware.RequestID(
		middleware.Logging(logger)(
			middleware.Instrument(httpMetrics)(mux)))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	refreshJob.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
