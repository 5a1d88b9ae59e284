// Package main is the entry point for the calendar sync backend. It wires
// configuration, logging, tracing, the SQLite task store, the scheduling
// loop, the stale-task reaper, and the HTTP API, then runs until signalled.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pkaratz/go-calsync-backend/internal/automation"
	"github.com/pkaratz/go-calsync-backend/internal/config"
	httpapi "github.com/pkaratz/go-calsync-backend/internal/http"
	"github.com/pkaratz/go-calsync-backend/internal/observability"
	"github.com/pkaratz/go-calsync-backend/internal/repo"
	"github.com/pkaratz/go-calsync-backend/internal/scheduler"
	"github.com/pkaratz/go-calsync-backend/internal/services"
	"github.com/pkaratz/go-calsync-backend/internal/sysutil"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	version = sysutil.FirstNonEmpty(os.Getenv("VERSION"), version)
	log.Info().Str("version", version).Msg("starting calendar sync backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op shutdown when disabled).
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Task store.
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Str("path", cfg.DBPath).Msg("database ready")

	// Services.
	ingestSvc := services.NewIngestService(db, cfg.Pipeline.RespawnDead)
	taskSvc := services.NewTaskService(db)

	// Dispatch loop: one lane per platform, all driving the automation
	// sidecar.
	capability := automation.NewHTTPDriver(cfg.Automation.BaseURL, cfg.Automation.Timeout)
	sched := scheduler.New(db, capability, scheduler.Options{
		Interval:    cfg.Pipeline.PollInterval,
		BatchSize:   cfg.Pipeline.BatchSize,
		SlotTimeout: cfg.Pipeline.SlotTimeout,
		Policy: scheduler.RetryPolicy{
			MaxAttempts: cfg.Pipeline.MaxAttempts,
			BaseDelay:   cfg.Pipeline.BaseDelay,
			MaxDelay:    cfg.Pipeline.MaxDelay,
			Jitter:      0.2,
		},
	})
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		_ = sched.Run(ctx)
	}()

	// Requeue tasks stuck in running after a crash.
	reaper := scheduler.NewReaper(db, cfg.Pipeline.StaleRunningAfter)
	if err := reaper.Start(); err != nil {
		log.Fatal().Err(err).Msg("reaper start failed")
	}
	defer reaper.Stop()

	// HTTP API.
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, ingestSvc, taskSvc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	// Stop accepting requests, then let in-flight lane work finish so no
	// platform calendar is left in an unknown state.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("scheduler did not drain before deadline")
	}
	log.Info().Msg("bye")
}
