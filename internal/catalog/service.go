// Package catalog provides product browsing for users and product
// management for administrators.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/api/internal/api"
	"github.com/papertrade/api/internal/auth"
	"github.com/papertrade/api/internal/model"
	"github.com/papertrade/api/internal/notify"
	"github.com/papertrade/api/internal/store"
	"github.com/papertrade/api/internal/validate"
)

// Service handles product operations. Price updates are the only way
// prices move, so alert evaluation hangs off UpdatePrice.
type Service struct {
	store    store.Store
	notifier *notify.Service
	hub      *notify.Hub // optional WebSocket hub for price broadcasts
}

// NewService creates the catalog service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, notifier *notify.Service, hub *notify.Hub) *Service {
	return &Service{store: st, notifier: notifier, hub: hub}
}

// --- Request types ---

// ProductRequest is the JSON body for POST /products and PUT
// /products/{productID}.
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,min=1,max=120"`
	Category    string          `json:"category" validate:"required,min=1,max=60"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description" validate:"max=2000"`
	PERatio     decimal.Decimal `json:"pe_ratio"`
	MarketCap   decimal.Decimal `json:"market_cap"`
	Volume      int64           `json:"volume"`
}

// PriceRequest is the JSON body for PUT /products/{productID}/price.
type PriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// --- Read handlers ---

// List handles GET /products
func (s *Service) List(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	api.OK(w, http.StatusOK, products)
}

// Get handles GET /products/{productID}
func (s *Service) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")

	product, err := s.store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "product not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	api.OK(w, http.StatusOK, product)
}

// ByCategory handles GET /products/category/{category}
func (s *Service) ByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	products, err := s.store.ListProductsByCategory(r.Context(), category)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	api.OK(w, http.StatusOK, products)
}

// --- Admin handlers ---

// Create handles POST /products (admin)
func (s *Service) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.Struct(req); errs != nil {
		api.ValidationError(w, errs)
		return
	}
	if req.Price.LessThanOrEqual(decimal.Zero) {
		api.ValidationError(w, []string{"price must be greater than zero"})
		return
	}

	product := &model.Product{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Category:    req.Category,
		Price:       req.Price,
		Description: req.Description,
		PERatio:     req.PERatio,
		MarketCap:   req.MarketCap,
		Volume:      req.Volume,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.CreateProduct(r.Context(), product); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			api.Error(w, http.StatusConflict, "product name already exists")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	s.audit(r, "product.create", product.ID, product.Name)
	api.OK(w, http.StatusCreated, product)
}

// Update handles PUT /products/{productID} (admin). Price is excluded;
// use UpdatePrice so alert evaluation always sees price changes.
func (s *Service) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")

	var req ProductRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.Struct(req); errs != nil {
		api.ValidationError(w, errs)
		return
	}

	product := &model.Product{
		ID:          id,
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		PERatio:     req.PERatio,
		MarketCap:   req.MarketCap,
		Volume:      req.Volume,
	}

	if err := s.store.UpdateProduct(r.Context(), product); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "product not found")
			return
		}
		if errors.Is(err, store.ErrDuplicate) {
			api.Error(w, http.StatusConflict, "product name already exists")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	s.audit(r, "product.update", id, req.Name)
	api.OKMessage(w, http.StatusOK, "product updated", nil)
}

// UpdatePrice handles PUT /products/{productID}/price (admin).
// Fires armed alerts whose threshold the move crossed, notifies their
// owners, and broadcasts the new price.
func (s *Service) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")

	var req PriceRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Price.LessThanOrEqual(decimal.Zero) {
		api.ValidationError(w, []string{"price must be greater than zero"})
		return
	}

	ctx := r.Context()
	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "product not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	if err := s.store.UpdateProductPrice(ctx, id, req.Price); err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to update price")
		return
	}

	s.fireAlerts(r, product, req.Price)
	s.audit(r, "product.price", id,
		fmt.Sprintf("%s -> %s", product.Price.String(), req.Price.String()))

	slog.Info("price updated",
		"product", id,
		"old", product.Price.String(),
		"new", req.Price.String(),
	)

	if s.hub != nil {
		s.hub.Broadcast(notify.Event{
			Type:      "price_updated",
			ProductID: id,
			Price:     req.Price.String(),
		})
	}

	api.OKMessage(w, http.StatusOK, "price updated", nil)
}

// Delete handles DELETE /products/{productID} (admin)
func (s *Service) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")

	if err := s.store.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "product not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	s.audit(r, "product.delete", id, "")
	api.OKMessage(w, http.StatusOK, "product deleted", nil)
}

// fireAlerts triggers armed alerts crossed by a price move and notifies
// their owners. Alert failures never fail the price update.
func (s *Service) fireAlerts(r *http.Request, product *model.Product, newPrice decimal.Decimal) {
	ctx := r.Context()
	alerts, err := s.store.ListArmedAlerts(ctx, product.ID)
	if err != nil {
		slog.Error("list alerts failed", "product", product.ID, "err", err)
		return
	}

	now := time.Now().UTC()
	for _, a := range alerts {
		crossed := (a.Direction == model.AlertAbove && newPrice.GreaterThanOrEqual(a.Threshold)) ||
			(a.Direction == model.AlertBelow && newPrice.LessThanOrEqual(a.Threshold))
		if !crossed {
			continue
		}

		if err := s.store.MarkAlertTriggered(ctx, a.ID, now); err != nil {
			slog.Error("mark alert triggered failed", "alert", a.ID, "err", err)
			continue
		}
		s.notifier.Push(ctx, a.UserID, "price_alert",
			fmt.Sprintf("%s is now %s %s your alert level %s",
				product.Name, newPrice.String(), a.Direction, a.Threshold.String()))
	}
}

func (s *Service) audit(r *http.Request, action, entityID, detail string) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return
	}
	entry := &model.AuditLog{
		ID:        uuid.New().String(),
		ActorID:   user.ID,
		Action:    action,
		Entity:    "product",
		EntityID:  entityID,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertAuditLog(r.Context(), entry); err != nil {
		slog.Error("audit log failed", "action", action, "err", err)
	}
}
