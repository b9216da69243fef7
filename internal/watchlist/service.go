// Package watchlist manages per-user product watchlists and price
// alerts.
package watchlist

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/api/internal/api"
	"github.com/papertrade/api/internal/auth"
	"github.com/papertrade/api/internal/model"
	"github.com/papertrade/api/internal/store"
	"github.com/papertrade/api/internal/validate"
)

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// AddRequest is the JSON body for POST /watchlist.
type AddRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// AlertRequest is the JSON body for POST /alerts.
type AlertRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Direction string          `json:"direction" validate:"required,oneof=above below"`
	Threshold decimal.Decimal `json:"threshold"`
}

// List handles GET /watchlist
func (s *Service) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	items, err := s.store.ListWatchlist(r.Context(), user.ID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to load watchlist")
		return
	}
	if items == nil {
		items = []model.WatchlistItem{}
	}
	api.OK(w, http.StatusOK, items)
}

// Add handles POST /watchlist. Adding a product already on the list is
// not an error; the response says so and nothing changes.
func (s *Service) Add(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req AddRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.Struct(req); errs != nil {
		api.ValidationError(w, errs)
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetProduct(ctx, req.ProductID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "product not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	added, err := s.store.AddToWatchlist(ctx, user.ID, req.ProductID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to update watchlist")
		return
	}
	if !added {
		api.OKMessage(w, http.StatusOK, "already in watchlist", nil)
		return
	}
	api.OKMessage(w, http.StatusCreated, "added to watchlist", nil)
}

// Remove handles DELETE /watchlist/{productID}
func (s *Service) Remove(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	productID := chi.URLParam(r, "productID")

	if err := s.store.RemoveFromWatchlist(r.Context(), user.ID, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "not in watchlist")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to update watchlist")
		return
	}
	api.OKMessage(w, http.StatusOK, "removed from watchlist", nil)
}

// --- Alerts ---

// CreateAlert handles POST /alerts
func (s *Service) CreateAlert(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req AlertRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.Struct(req); errs != nil {
		api.ValidationError(w, errs)
		return
	}
	if req.Threshold.LessThanOrEqual(decimal.Zero) {
		api.ValidationError(w, []string{"threshold must be greater than zero"})
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetProduct(ctx, req.ProductID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "product not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	alert := &model.Alert{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ProductID: req.ProductID,
		Direction: req.Direction,
		Threshold: req.Threshold,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateAlert(ctx, alert); err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to create alert")
		return
	}
	api.OK(w, http.StatusCreated, alert)
}

// ListAlerts handles GET /alerts
func (s *Service) ListAlerts(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	alerts, err := s.store.ListAlertsByUser(r.Context(), user.ID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	api.OK(w, http.StatusOK, alerts)
}

// DeleteAlert handles DELETE /alerts/{alertID}
func (s *Service) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := chi.URLParam(r, "alertID")

	if err := s.store.DeleteAlert(r.Context(), id, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "alert not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to delete alert")
		return
	}
	api.OKMessage(w, http.StatusOK, "alert deleted", nil)
}
