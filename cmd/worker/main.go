package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/notice-extractor/internal/adapters/worker"
	"github.com/kirillkom/notice-extractor/internal/bootstrap"
	"github.com/kirillkom/notice-extractor/internal/config"
	"github.com/kirillkom/notice-extractor/internal/infrastructure/resilience"
	"github.com/kirillkom/notice-extractor/internal/observability/logging"
	"github.com/kirillkom/notice-extractor/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	extractionMetrics := metrics.NewExtractionMetrics(workerMetrics.Registry(), "worker")

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:      "worker",
		ConnectQueue: true,
		Observer:     extractionMetrics.ObserveState,
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	retryPolicy := resilience.DefaultConfig()
	retryPolicy.RetryMaxAttempts = cfg.WorkerMaxAttempts
	retryPolicy.BreakerEnabled = false
	retryPolicy.OnRetry = worker.RetryRecorder(workerMetrics)

	handler := worker.NewHandler(
		app.Engine,
		resilience.NewExecutor(retryPolicy),
		workerMetrics,
		cfg.WorkerRequestLimit,
	)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err.Error())
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribing", "subject", cfg.NATSSubject)
	if err := app.Queue.SubscribeExtractionRequests(ctx, handler.Handle); err != nil {
		slog.Error("worker_subscribe_failed", "error", err.Error())
		os.Exit(1)
	}
}
