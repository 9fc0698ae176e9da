package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unclebandit/coupon-dispatch/internal/controller"
	"github.com/unclebandit/coupon-dispatch/internal/handler"
	customMiddleware "github.com/unclebandit/coupon-dispatch/internal/middleware"
)

type Handlers struct {
	Campaigns *controller.CampaignController
	CS        *handler.CSHandler
	Coupons   *handler.CouponHandler
	Products  *handler.ProductHandler
	Health    *handler.HealthHandler
}

func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(customMiddleware.MetricsMiddleware)
	r.Use(customMiddleware.Tracing)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(customMiddleware.Actor)

	r.Route("/campaigns/{id}", func(r chi.Router) {
		r.Post("/dispatch", h.Campaigns.Dispatch)
		r.Post("/sync", h.Campaigns.SyncResults)
	})

	r.Route("/coupons/{id}", func(r chi.Router) {
		r.Get("/", h.Coupons.Get)
		r.Post("/refresh", h.Coupons.Refresh)
		r.Post("/cancel", h.Coupons.Cancel)
	})

	r.Route("/cs", func(r chi.Router) {
		r.Get("/search", h.CS.Search)
		r.Route("/coupons/{id}", func(r chi.Router) {
			r.Post("/resend", h.CS.Resend)
			r.Post("/phone", h.CS.ChangePhone)
			r.Post("/notes", h.CS.AddNote)
			r.Get("/actions", h.CS.Actions)
		})
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.Products.List)
		r.Post("/sync", h.Products.Sync)
		r.Get("/sync-logs", h.Products.Logs)
	})

	// Health & Readiness Routes
	r.Get("/healthz", h.Health.Liveness)
	r.Get("/readyz", h.Health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
