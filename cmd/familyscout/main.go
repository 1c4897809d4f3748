package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/familyscout/familyscout/internal/api"
	"github.com/familyscout/familyscout/internal/api/anthropic"
	"github.com/familyscout/familyscout/internal/cache"
	"github.com/familyscout/familyscout/internal/config"
	"github.com/familyscout/familyscout/internal/domain"
	"github.com/familyscout/familyscout/internal/retry"
	"github.com/familyscout/familyscout/internal/search"
	"github.com/familyscout/familyscout/internal/server"
	"github.com/familyscout/familyscout/internal/telemetry"
	"github.com/familyscout/familyscout/internal/tokens"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// A missing credential is fatal at startup, not recoverable by waiting.
	if cfg.Anthropic.APIKey == "" {
		log.Fatalf("Configuration error: %v", domain.ErrMissingAPIKey)
	}

	shutdownTracer, err := telemetry.InitTracer("familyscout", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	var clientOpts []anthropic.ClientOption
	if cfg.Anthropic.BaseURL != "" {
		clientOpts = append(clientOpts, anthropic.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	// The HTTP client timeout bounds the whole upstream call; the provider's
	// own retries stay disabled because the retry controller owns policy.
	clientOpts = append(clientOpts, anthropic.WithHTTPClient(&http.Client{
		Timeout: cfg.Anthropic.Timeout,
	}))
	client := anthropic.NewClient(cfg.Anthropic.APIKey, clientOpts...)

	searcher := search.New(client, search.Config{
		Model:            cfg.Anthropic.Model,
		MaxTokens:        cfg.Anthropic.MaxTokens,
		WebSearchMaxUses: cfg.Anthropic.WebSearchMaxUses,
		Streaming:        cfg.Anthropic.Streaming,
		Retry: retry.Config{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
		},
	}, logger, search.WithEstimator(tokens.NewEstimator()))

	store := cache.New[[]domain.FormattedActivity](
		cfg.Cache.TTL,
		cache.WithSweepInterval[[]domain.FormattedActivity](cfg.Cache.SweepInterval),
		cache.WithLogger[[]domain.FormattedActivity](logger),
	)
	defer store.Stop()

	handler := api.NewHandler(searcher, store, logger)

	srv := server.New(cfg.Server, logger)
	srv.Router.Get("/health", handler.HandleHealth)
	srv.Router.Route("/api", func(r chi.Router) {
		r.Use(server.RateLimitMiddleware(cfg.Server))
		r.Post("/search", handler.HandleSearch)
		r.Get("/cache/stats", handler.HandleCacheStats)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("familyscout started",
		slog.Int("port", cfg.Server.Port),
		slog.Duration("cache_ttl", cfg.Cache.TTL),
		slog.String("model", cfg.Anthropic.Model),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
