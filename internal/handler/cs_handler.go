// internal/handler/cs_handler.go
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/unclebandit/coupon-dispatch/internal/middleware"
	"github.com/unclebandit/coupon-dispatch/internal/model"
	"github.com/unclebandit/coupon-dispatch/internal/service"
)

// CSActions is implemented by service.CSService.
type CSActions interface {
	Resend(ctx context.Context, issueID int64, actorID, reason string) (*service.CsResult, error)
	ChangePhone(ctx context.Context, issueID int64, newPhone, actorID, reason string) (*service.CsResult, error)
	AddNote(ctx context.Context, issueID int64, actorID, memo string) (*model.CsAction, error)
	Actions(ctx context.Context, issueID int64) ([]model.CsAction, error)
	Search(ctx context.Context, rawPhone, orderID string) ([]service.SearchResult, error)
}

type CSHandler struct {
	svc    CSActions
	logger *slog.Logger
}

func NewCSHandler(svc CSActions, logger *slog.Logger) *CSHandler {
	return &CSHandler{svc: svc, logger: logger}
}

func (h *CSHandler) Resend(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, err)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.svc.Resend(r.Context(), id, middleware.ActorID(r.Context()), body.Reason)
	if err != nil {
		h.logger.Warn("cs resend failed", slog.Int64("coupon_issue_id", id), slog.Any("error", err))
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (h *CSHandler) ChangePhone(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, err)
		return
	}
	var body struct {
		Phone  string `json:"phone"`
		Reason string `json:"reason"`
	}
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.svc.ChangePhone(r.Context(), id, body.Phone, middleware.ActorID(r.Context()), body.Reason)
	if err != nil {
		h.logger.Warn("cs phone change failed", slog.Int64("coupon_issue_id", id), slog.Any("error", err))
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (h *CSHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, err)
		return
	}
	var body struct {
		Memo string `json:"memo"`
	}
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}

	action, err := h.svc.AddNote(r.Context(), id, middleware.ActorID(r.Context()), body.Memo)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, action)
}

func (h *CSHandler) Actions(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, err)
		return
	}
	actions, err := h.svc.Actions(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"data": actions})
}

// Search accepts ?phone= and/or ?order_id=.
func (h *CSHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	found, err := h.svc.Search(r.Context(), q.Get("phone"), q.Get("order_id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"data": found})
}
