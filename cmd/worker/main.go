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

	"github.com/aimiten/readiness-assistant/internal/bootstrap"
	"github.com/aimiten/readiness-assistant/internal/config"
	"github.com/aimiten/readiness-assistant/internal/core/domain"
	"github.com/aimiten/readiness-assistant/internal/observability/logging"
	"github.com/aimiten/readiness-assistant/internal/observability/metrics"
)

const serviceName = "readiness-worker"

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, serviceName, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeAssessmentCompleted(ctx, func(handlerCtx context.Context, event domain.AssessmentCompletedEvent) error {
		if !event.CompletedAt.IsZero() {
			workerMetrics.ObserveEventLag(serviceName, time.Since(event.CompletedAt))
		}
		workerMetrics.StartEvent()
		started := time.Now()

		processCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()
		created, err := app.Remediation.GenerateForSession(processCtx, event)
		workerMetrics.FinishEvent(serviceName, time.Since(started), created, err)
		if err != nil {
			return err
		}
		logger.Info("remediation_tasks_generated", "session_id", event.SessionID, "created", created)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
