// Package main - точка входа для фоновых процессов (Worker) движка подбора.
//
// Worker отвечает за периодические задачи:
// - Истечение окна ответа ментора и запуск каскада переназначения
// - Пакетный подбор по расписанию (флаг auto_initiate_matching)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/mentorship-engine/config"
	"github.com/alem-hub/mentorship-engine/internal/app"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/scheduler"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Создаём корневой контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := app.NewLogger(cfg, "mentorship-worker")
	log.Info("starting mentorship worker",
		"env", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
		"sweep_interval", cfg.Matching.SweepInterval.String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ЗАВИСИМОСТИ
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
	// 4. ПЛАНИРОВЩИК И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	schedCfg.Timezone = cfg.App.Location
	schedCfg.Clock = container.Clock
	schedCfg.JobTimeout = cfg.Matching.SweepInterval
	sched := scheduler.NewScheduler(schedCfg)
	sched.OnJobError(func(jobName string, err error) {
		log.Warn("job failed", "job", jobName, "error", err)
	})

	if err := registerJobs(sched, container, cfg, log); err != nil {
		return err
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	for _, info := range sched.ListJobs() {
		log.Info("job scheduled", "job", info.Name, "schedule", info.Schedule, "next_run", info.NextRun)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())
	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	stopped := make(chan error, 1)
	go func() { stopped <- sched.Stop() }()

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.App.ShutdownTimeout)
	defer cancel()

	select {
	case err := <-stopped:
		if err != nil {
			log.Warn("scheduler stop", "error", err)
		}
	case <-shutdownCtx.Done():
		log.Warn("scheduler did not stop in time, abandoning running jobs")
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// registerJobs регистрирует задачу истечения и, если задано расписание,
// пакетный подбор. Флаг auto_initiate_matching проверяется на каждую
// программу при запуске, поэтому частичный rollout работает без рестарта.
func registerJobs(sched *scheduler.Scheduler, c *app.Container, cfg *config.Config, log *slog.Logger) error {
	every, err := scheduler.NewIntervalSchedule(cfg.Matching.SweepInterval)
	if err != nil {
		return fmt.Errorf("sweep schedule: %w", err)
	}
	every.Align = true
	if err := sched.Register(jobs.NewExpireMatchesJob(c.ExpireMatches, log), every); err != nil {
		return err
	}

	if cfg.Matching.InitiateCron == "" {
		log.Info("automatic batch matching disabled", "reason", "MATCH_INITIATE_CRON is empty")
		return nil
	}

	features := cfg.Features
	if features == nil {
		features = config.NewFeatureFlags()
	}

	cron, err := scheduler.ParseCronExpression(cfg.Matching.InitiateCron)
	if err != nil {
		return fmt.Errorf("initiate schedule: %w", err)
	}
	job := jobs.NewInitiateMatchingJob(c.InitiateMatching, c.Programs, c.Clock, log, jobs.InitiateMatchingConfig{
		Programs: cfg.Matching.AutoInitiatePrograms,
		Enabled: func(programID string) bool {
			return features.IsEnabled(config.FeatureAutoInitiateMatching, &config.FeatureContext{ProgramID: programID})
		},
	})
	return sched.Register(job, cron)
}
