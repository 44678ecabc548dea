package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careerforge/careerforge/internal/analytics"
	"github.com/careerforge/careerforge/internal/betagate"
	"github.com/careerforge/careerforge/internal/billing"
	"github.com/careerforge/careerforge/internal/config"
	"github.com/careerforge/careerforge/internal/entitlement"
	"github.com/careerforge/careerforge/internal/export"
	"github.com/careerforge/careerforge/internal/llm"
	"github.com/careerforge/careerforge/internal/logging"
	"github.com/careerforge/careerforge/internal/tailor"
	"github.com/careerforge/careerforge/internal/usage"
	"github.com/rs/zerolog/log"
)

// Run starts the CareerForge HTTP server with graceful shutdown.
func Run(ctx context.Context, version string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "careerforge",
	})

	log.Info().Str("version", version).Msg("Starting CareerForge")

	// Entitlement store and usage limiter share the backend choice.
	var store entitlement.Store
	var limiter usage.Limiter
	limits := usage.Limits{
		GenerationsPerDay: cfg.FreeGenerationsPerDay,
		RefinementsPerDay: cfg.FreeRefinementsPerDay,
	}
	if cfg.UseRedis() {
		redisStore, err := entitlement.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		store = redisStore
		limiter = usage.NewRedisLimiter(redisStore.Client(), limits)
		log.Info().Msg("Entitlement backend: redis")
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		fileStore, err := entitlement.NewFileStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open file store: %w", err)
		}
		store = fileStore
		limiter = usage.NewMemoryLimiter(limits)
		log.Info().Str("dir", cfg.DataDir).Msg("Entitlement backend: file (single instance only)")
	}
	defer store.Close()

	var tracker analytics.Tracker
	if cfg.PostHogKey != "" {
		tracker = analytics.NewPostHogTracker(cfg.PostHogKey, cfg.PostHogHost)
		log.Info().Msg("Analytics configured (PostHog)")
	} else {
		tracker = analytics.NewNopTracker()
	}

	origin := ""
	if o, err := cfg.Origin(); err == nil {
		origin = o
	} else {
		log.Warn().Err(err).Msg("APP_BASE_URL not set; checkout redirects will fail until it is")
	}

	provider := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.Model, 0)
	deps := &Deps{
		Config:   cfg,
		Store:    store,
		Limiter:  limiter,
		Gate:     betagate.New(cfg.BetaInviteCodes, cfg.BetaMasterCode),
		Tailor:   tailor.NewService(provider, cfg.Model, cfg.MaxTokens),
		Provider: provider,
		Billing:  billing.NewService(cfg.StripeSecretKey, cfg.StripePriceID, origin, store),
		Exporter: export.NewPDFGenerator(),
		Tracker:  tracker,
		Version:  version,
	}

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(deps),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("CareerForge listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		log.Info().Msg("Context cancelled, shutting down...")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("CareerForge stopped")
	return nil
}
