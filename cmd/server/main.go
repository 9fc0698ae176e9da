// cmd/server/main.go
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

	"github.com/unclebandit/coupon-dispatch/internal/app"
	"github.com/unclebandit/coupon-dispatch/internal/config"
	"github.com/unclebandit/coupon-dispatch/internal/controller"
	"github.com/unclebandit/coupon-dispatch/internal/handler"
	"github.com/unclebandit/coupon-dispatch/internal/logger"
	"github.com/unclebandit/coupon-dispatch/internal/metrics"
	"github.com/unclebandit/coupon-dispatch/internal/queue"
	"github.com/unclebandit/coupon-dispatch/internal/router"
	"github.com/unclebandit/coupon-dispatch/internal/service"
	"github.com/unclebandit/coupon-dispatch/internal/tracing"
)

func main() {
	l := logger.NewLogger()
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
	if _, ok := q.(*queue.InMemoryQueue); ok {
		// without a broker the server consumes its own async jobs
		if err := service.NewWorker(a.Dispatch, a.Reconcile, l).Start(ctx, q); err != nil {
			l.Error("failed to start in-process worker", slog.Any("error", err))
			os.Exit(1)
		}
	}

	r := router.NewRouter(router.Handlers{
		Campaigns: &controller.CampaignController{
			Dispatcher: a.Dispatch,
			Syncer:     a.Reconcile,
			Queue:      q,
			Logger:     l,
		},
		CS:       handler.NewCSHandler(a.CS, l),
		Coupons:  handler.NewCouponHandler(a.Coupons, l),
		Products: handler.NewProductHandler(a.Products),
		Health:   handler.NewHealthHandler(a.DB, l),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Info("server started", slog.String("addr", server.Addr), slog.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("failed to start server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	l.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("shutdown failed", slog.Any("error", err))
	}
	if err := q.Close(); err != nil {
		l.Error("queue close failed", slog.Any("error", err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		l.Error("close failed", slog.Any("error", err))
	}
	if err := tracerShutdown(shutdownCtx); err != nil {
		l.Error("tracer shutdown failed", slog.Any("error", err))
	}
	l.Info("server exited cleanly")
}
