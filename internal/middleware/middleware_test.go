package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/coupon-dispatch/internal/metrics"
	"github.com/unclebandit/coupon-dispatch/internal/middleware"
)

func TestActor(t *testing.T) {
	var got string
	h := middleware.Actor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.ActorID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(middleware.ActorHeader, "  agent-7 ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "agent-7", got)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Empty(t, got)
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(middleware.MetricsMiddleware)
	r.Get("/coupons/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.RequestCount.WithLabelValues("/coupons/{id}", http.MethodGet, "418")
	before := testutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/coupons/12", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/coupons/13", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
