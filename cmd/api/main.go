package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/umayarajkumar17/portfolio/backend/internal/config"
	"github.com/umayarajkumar17/portfolio/backend/internal/handler"
	"github.com/umayarajkumar17/portfolio/backend/internal/logger"
	"github.com/umayarajkumar17/portfolio/backend/internal/middleware"
	"github.com/umayarajkumar17/portfolio/backend/internal/model/profile"
	"github.com/umayarajkumar17/portfolio/backend/internal/scheduler"
	"github.com/umayarajkumar17/portfolio/backend/internal/service/ai"
	"github.com/umayarajkumar17/portfolio/backend/internal/service/chat"
	"github.com/umayarajkumar17/portfolio/backend/internal/service/eventlog"
	"github.com/umayarajkumar17/portfolio/backend/internal/service/fallback"
	"github.com/umayarajkumar17/portfolio/backend/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("failed to set up telemetry", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Telemetry)
	if envErr != nil {
		slog.Debug("no .env file loaded, using process environment", "error", envErr)
	}

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		shutdownTelemetry(tel)
		os.Exit(1)
	}
	shutdownTelemetry(tel)
}

func run(ctx context.Context, cfg *config.Config) error {
	p, err := profile.Load(cfg.Profile.Path)
	if err != nil {
		return err
	}
	profiles := profile.NewMemoryStore(p)

	responder := fallback.New(p, nil)

	aiService, err := ai.NewService(ctx, cfg.AI, p, responder)
	if err != nil {
		return err
	}
	status := aiService.Status()
	slog.Info("reply provider ready", "provider", status.Provider, "model", status.Model, "ai_enabled", status.AIEnabled)

	chatOpts := []chat.Option{
		chat.WithTiming(chat.TimingFromConfig(cfg.Chat)),
		chat.WithMaxSessions(cfg.Chat.MaxSessions),
	}
	if cfg.AI.EmojiEnrichment {
		chatOpts = append(chatOpts, chat.WithEnricher(fallback.NewEmbellisher(nil)))
	}
	chatService, err := chat.NewService(aiService, chatOpts...)
	if err != nil {
		return err
	}
	defer chatService.Close()

	store, err := eventlog.OpenStore(ctx, cfg.Events)
	if err != nil {
		return err
	}
	events, err := eventlog.NewService(store, cfg.Events.NodeID)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer func() {
		if err := events.Close(); err != nil {
			slog.Warn("failed to close event store", "error", err)
		}
	}()
	slog.Info("event log ready", "driver", cfg.Events.Driver)

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	if cfg.Scheduler.Enabled {
		jobs := scheduler.New(cfg.Scheduler, cfg.Chat.IdleTTL, chatService, events, limiter)
		if err := jobs.Start(); err != nil {
			return err
		}
		defer jobs.Stop()
	}

	router := handler.NewRouter(handler.Dependencies{
		Profiles:       profiles,
		Chat:           chatService,
		Replier:        aiService,
		Events:         events,
		Limiter:        limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	return startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("portfolio backend listening", "addr", addr)
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		slog.Warn("telemetry shutdown failed", "error", err)
	}
}
