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

	httpadapter "github.com/aimiten/readiness-assistant/internal/adapters/http"
	"github.com/aimiten/readiness-assistant/internal/bootstrap"
	"github.com/aimiten/readiness-assistant/internal/config"
	"github.com/aimiten/readiness-assistant/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, "readiness-api", cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if cfg.JWTSecret == "" {
		logger.Error("config_invalid", "error", "JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, httpadapter.Dependencies{
		Assessments: app.Assessments,
		Sessions:    app.Sessions,
		Documents:   app.Documents,
		Tasks:       app.Remediation,
		Exporter:    app.Exporter,
		Metrics:     app.Metrics,
		Logger:      logger,
	}).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_failed", "error", err)
	}
	// Question generation and analysis keep running after their request ended.
	if err := app.Assessments.Wait(shutdownCtx); err != nil {
		logger.Warn("assessment_actions_abandoned", "error", err)
	}
}
