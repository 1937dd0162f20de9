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

	httpadapter "github.com/kirillkom/notice-extractor/internal/adapters/http"
	"github.com/kirillkom/notice-extractor/internal/bootstrap"
	"github.com/kirillkom/notice-extractor/internal/config"
	"github.com/kirillkom/notice-extractor/internal/observability/logging"
	"github.com/kirillkom/notice-extractor/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	extractionMetrics := metrics.NewExtractionMetrics(serverMetrics.Registry(), "api")

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:      "api",
		ConnectQueue: cfg.ExtractionMode == bootstrap.ExtractionModeQueue,
		Observer:     extractionMetrics.ObserveState,
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(
		cfg,
		app.Extractor(),
		app.Engine,
		httpadapter.WithMetrics(serverMetrics, extractionMetrics),
		httpadapter.WithBreakerStates(app.BreakerStates),
	).Handler()

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "extraction_mode", cfg.ExtractionMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err.Error())
	}
}
