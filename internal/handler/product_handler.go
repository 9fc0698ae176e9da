// internal/handler/product_handler.go
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/unclebandit/coupon-dispatch/internal/model"
)

// Catalog is implemented by service.ProductService.
type Catalog interface {
	SyncProducts(ctx context.Context) (int, error)
	Products(ctx context.Context) ([]model.CouponProduct, error)
	Logs(ctx context.Context, limit int) ([]model.ProductSyncLog, error)
}

type ProductHandler struct {
	svc Catalog
}

func NewProductHandler(svc Catalog) *ProductHandler {
	return &ProductHandler{svc: svc}
}

func (h *ProductHandler) Sync(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.SyncProducts(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"synced": n})
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.Products(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"data": products})
}

func (h *ProductHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.svc.Logs(r.Context(), limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"data": logs})
}
