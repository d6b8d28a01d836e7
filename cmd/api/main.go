// Package main - точка входа HTTP API движка подбора менторов.
//
// API - тонкий слой над командами и запросами приложения:
// запуск пакетного подбора, ответы менторов, ручные пары,
// выборки пар и статистика программ.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/mentorship-engine/config"
	"github.com/alem-hub/mentorship-engine/internal/app"
	apihttp "github.com/alem-hub/mentorship-engine/internal/interface/http"
	"github.com/alem-hub/mentorship-engine/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := app.NewLogger(cfg, "mentorship-api")
	log.Info("starting mentorship API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"address", cfg.HTTPAddr(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЗАВИСИМОСТИ (БД, Redis, шина событий, внешние сервисы)
	// ─────────────────────────────────────────────────────────────────────────
	container, err := app.New(ctx, cfg, app.Options{Logger: log})
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error("shutdown errors", "error", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := apihttp.NewCompositeHealthChecker(cfg.App.Version)
	if container.DB != nil {
		health.AddCheck("postgres", apihttp.PingCheck(container.DB))
	}
	if container.Cache != nil {
		health.AddOptionalCheck("redis", apihttp.PingCheck(container.Cache))
	}
	if container.Community != nil {
		health.AddOptionalCheck("community_api", apihttp.PingCheck(container.Community))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := apihttp.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.RequestTimeout = cfg.HTTP.RequestTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.Version = cfg.App.Version

	level := logger.ParseLevel(cfg.Observability.LogLevel)
	server := apihttp.NewServer(httpCfg, apihttp.Dependencies{
		InitiateMatching:  container.InitiateMatching,
		AcceptMatch:       container.AcceptMatch,
		RejectMatch:       container.RejectMatch,
		ManualMatch:       container.ManualMatch,
		ExpireMatches:     container.ExpireMatches,
		ListMatches:       container.ListMatches,
		GetMatch:          container.GetMatch,
		ProgramStats:      container.ProgramStats,
		PreviewCandidates: container.PreviewCandidates,
		Logger:            logger.New(logger.Options{Output: os.Stdout, Level: level}),
		HealthChecker:     health,
	})

	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return err
		}
		return errors.New("http server stopped unexpectedly")
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("shutdown completed successfully")
	return nil
}
