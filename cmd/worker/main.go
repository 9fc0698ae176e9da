// cmd/worker/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unclebandit/coupon-dispatch/internal/app"
	"github.com/unclebandit/coupon-dispatch/internal/config"
	"github.com/unclebandit/coupon-dispatch/internal/logger"
	"github.com/unclebandit/coupon-dispatch/internal/metrics"
	"github.com/unclebandit/coupon-dispatch/internal/queue"
	"github.com/unclebandit/coupon-dispatch/internal/scheduler"
	"github.com/unclebandit/coupon-dispatch/internal/service"
	"github.com/unclebandit/coupon-dispatch/internal/tracing"
)

func main() {
	l := logger.NewLogger().With(slog.String("process", "worker"))
	slog.SetDefault(l)

	metrics.Init()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		l.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerShutdown, err := tracing.Setup(ctx, cfg.Tracing, cfg.Env, l)
	if err != nil {
		l.Error("failed to initialise tracing", slog.Any("error", err))
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		l.Error("failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	q, err := a.NewQueue()
	if err != nil {
		l.Error("failed to connect to queue", slog.Any("error", err))
		os.Exit(1)
	}

	sched, err := start(ctx, a, q)
	if err != nil {
		l.Error("failed to start worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsSrv := &http.Server{Addr: ":" + getMetricsPort(), Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	l.Info("worker running, waiting for jobs", slog.Any("scheduled", sched.Jobs()))
	<-ctx.Done()

	l.Info("shutting down worker")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	metricsSrv.Shutdown(shutdownCtx)
	if err := q.Close(); err != nil {
		l.Error("queue close failed", slog.Any("error", err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		l.Error("close failed", slog.Any("error", err))
	}
	if err := tracerShutdown(shutdownCtx); err != nil {
		l.Error("tracer shutdown failed", slog.Any("error", err))
	}
}

// start subscribes the job handler and launches the periodic syncs.
func start(ctx context.Context, a *app.App, q queue.Queue) (*scheduler.Scheduler, error) {
	w := service.NewWorker(a.Dispatch, a.Reconcile, a.Logger)
	if err := w.Start(ctx, q); err != nil {
		return nil, err
	}
	sched := a.Scheduler()
	sched.Start(ctx)
	return sched, nil
}

func getMetricsPort() string {
	if p := os.Getenv("WORKER_METRICS_PORT"); p != "" {
		return p
	}
	return "9091"
}
