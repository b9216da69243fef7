// Package trading exposes the buy/sell execution flow, the transaction
// ledger, portfolio views and order management.
package trading

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
	"github.com/papertrade/api/internal/metrics"
	"github.com/papertrade/api/internal/model"
	"github.com/papertrade/api/internal/notify"
	"github.com/papertrade/api/internal/store"
	"github.com/papertrade/api/internal/validate"
)

// Service handles trade execution and portfolio reads. All wallet and
// portfolio mutations go through the store's atomic ExecuteBuy /
// ExecuteSell; the service never touches balances directly.
type Service struct {
	store    store.Store
	notifier *notify.Service
	hub      *notify.Hub
}

func NewService(st store.Store, notifier *notify.Service, hub *notify.Hub) *Service {
	return &Service{store: st, notifier: notifier, hub: hub}
}

// TradeRequest is the JSON body for POST /transactions/buy and
// /transactions/sell. The field names follow the public API contract,
// not the storage column names.
type TradeRequest struct {
	ProductID string          `json:"productId" validate:"required,uuid"`
	Units     decimal.Decimal `json:"units"`
}

// OrderRequest is the JSON body for POST /orders.
type OrderRequest struct {
	ProductID  string          `json:"product_id" validate:"required,uuid"`
	Side       string          `json:"side" validate:"required,oneof=buy sell"`
	OrderType  string          `json:"order_type" validate:"required,oneof=market limit"`
	Units      decimal.Decimal `json:"units"`
	LimitPrice decimal.Decimal `json:"limit_price"`
}

// TradeResult is the success payload of a buy or sell.
type TradeResult struct {
	Transaction   *model.Transaction `json:"transaction"`
	WalletBalance decimal.Decimal    `json:"new_wallet_balance"`
}

// Buy handles POST /transactions/buy
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, model.SideBuy)
}

// Sell handles POST /transactions/sell
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, model.SideSell)
}

func (s *Service) execute(w http.ResponseWriter, r *http.Request, side string) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req TradeRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.Struct(req); errs != nil {
		api.ValidationError(w, errs)
		return
	}
	if req.Units.LessThanOrEqual(decimal.Zero) {
		metrics.TradeRejections.WithLabelValues("invalid_units").Inc()
		api.ValidationError(w, []string{"units must be greater than zero"})
		return
	}

	ctx := r.Context()
	var (
		entry   *model.Transaction
		balance decimal.Decimal
		err     error
	)
	if side == model.SideBuy {
		entry, balance, err = s.store.ExecuteBuy(ctx, user.ID, req.ProductID, req.Units)
	} else {
		entry, balance, err = s.store.ExecuteSell(ctx, user.ID, req.ProductID, req.Units)
	}
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			api.Error(w, http.StatusNotFound, "product not found")
		case errors.Is(err, store.ErrInsufficientFunds):
			metrics.TradeRejections.WithLabelValues("insufficient_funds").Inc()
			api.Error(w, http.StatusBadRequest, "insufficient wallet balance")
		case errors.Is(err, store.ErrInsufficientHoldings):
			metrics.TradeRejections.WithLabelValues("insufficient_holdings").Inc()
			api.Error(w, http.StatusBadRequest, "insufficient holdings")
		default:
			slog.Error("trade execution failed", "user", user.ID, "side", side, "err", err)
			api.Error(w, http.StatusInternalServerError, "trade execution failed")
		}
		return
	}

	metrics.TradesTotal.WithLabelValues(side).Inc()
	s.afterTrade(r, user.ID, entry)

	api.OK(w, http.StatusCreated, TradeResult{Transaction: entry, WalletBalance: balance})
}

// afterTrade performs the non-transactional followups of a fill: user
// notification, audit entry and WebSocket broadcast. None of these can
// fail the trade; it is already committed.
func (s *Service) afterTrade(r *http.Request, userID string, entry *model.Transaction) {
	ctx := r.Context()

	verb := "Bought"
	if entry.Type == model.SideSell {
		verb = "Sold"
	}
	s.notifier.Push(ctx, userID, "trade",
		fmt.Sprintf("%s %s units at %s (total %s)",
			verb, entry.Units.String(), entry.PricePerUnit.String(), entry.TotalAmount.String()))

	audit := &model.AuditLog{
		ID:        uuid.New().String(),
		ActorID:   userID,
		Action:    "trade." + entry.Type,
		Entity:    "transaction",
		EntityID:  entry.ID,
		Detail:    fmt.Sprintf("%s units of %s at %s", entry.Units.String(), entry.ProductID, entry.PricePerUnit.String()),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertAuditLog(ctx, audit); err != nil {
		slog.Error("audit log failed", "action", audit.Action, "err", err)
	}

	if s.hub != nil {
		s.hub.Broadcast(notify.Event{
			Type:      "trade_executed",
			ProductID: entry.ProductID,
			Price:     entry.PricePerUnit.String(),
			Side:      entry.Type,
			Units:     entry.Units.String(),
		})
	}
}

// MyTransactions handles GET /transactions/my
func (s *Service) MyTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	txs, err := s.store.GetTransactionsByUser(r.Context(), user.ID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	api.OK(w, http.StatusOK, txs)
}

// Stats handles GET /transactions/stats
func (s *Service) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	stats, err := s.store.GetTransactionStats(r.Context(), user.ID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	api.OK(w, http.StatusOK, stats)
}

// Portfolio handles GET /portfolio
func (s *Service) Portfolio(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	positions, err := s.store.GetPositions(r.Context(), user.ID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to load portfolio")
		return
	}
	if positions == nil {
		positions = []model.Position{}
	}
	api.OK(w, http.StatusOK, positions)
}

// PortfolioSummary handles GET /portfolio/summary
func (s *Service) PortfolioSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx := r.Context()
	positions, err := s.store.GetPositions(ctx, user.ID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to load portfolio")
		return
	}

	// Re-read the user so the wallet figure reflects any trade that
	// committed after the auth middleware loaded it.
	fresh, err := s.store.GetUser(ctx, user.ID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to load wallet")
		return
	}

	summary := model.PortfolioSummary{
		UserID:        user.ID,
		Positions:     positions,
		TotalInvested: decimal.Zero,
		TotalValue:    decimal.Zero,
		TotalPnL:      decimal.Zero,
		WalletBalance: fresh.WalletBalance,
	}
	if summary.Positions == nil {
		summary.Positions = []model.Position{}
	}
	for _, p := range positions {
		summary.TotalInvested = summary.TotalInvested.Add(p.InvestedCost)
		summary.TotalValue = summary.TotalValue.Add(p.CurrentValue)
	}
	summary.TotalPnL = summary.TotalValue.Sub(summary.TotalInvested)

	api.OK(w, http.StatusOK, summary)
}

// --- Orders ---

// CreateOrder handles POST /orders. Market orders execute immediately
// through the same atomic flow as direct buys and sells; limit orders
// are recorded as pending and stay pending until cancelled.
func (s *Service) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req OrderRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.Struct(req); errs != nil {
		api.ValidationError(w, errs)
		return
	}
	if req.Units.LessThanOrEqual(decimal.Zero) {
		api.ValidationError(w, []string{"units must be greater than zero"})
		return
	}
	if req.OrderType == model.OrderTypeLimit && req.LimitPrice.LessThanOrEqual(decimal.Zero) {
		api.ValidationError(w, []string{"limit_price must be greater than zero for limit orders"})
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

	order := &model.Order{
		ID:         uuid.New().String(),
		UserID:     user.ID,
		ProductID:  req.ProductID,
		Side:       req.Side,
		OrderType:  req.OrderType,
		Units:      req.Units,
		LimitPrice: req.LimitPrice,
		Status:     model.OrderStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	if order.OrderType == model.OrderTypeLimit {
		api.OK(w, http.StatusCreated, order)
		return
	}

	// Market order: fill now.
	var (
		entry *model.Transaction
		err   error
	)
	if order.Side == model.SideBuy {
		entry, _, err = s.store.ExecuteBuy(ctx, user.ID, order.ProductID, order.Units)
	} else {
		entry, _, err = s.store.ExecuteSell(ctx, user.ID, order.ProductID, order.Units)
	}
	if err != nil {
		// Execution failed; the order record stays for the ledger but
		// transitions to cancelled so it cannot look fillable.
		if cErr := s.store.SetOrderStatus(ctx, order.ID, model.OrderStatusCancelled, nil); cErr != nil {
			slog.Error("order cancel after failed fill", "order", order.ID, "err", cErr)
		}
		order.Status = model.OrderStatusCancelled
		switch {
		case errors.Is(err, store.ErrInsufficientFunds):
			metrics.TradeRejections.WithLabelValues("insufficient_funds").Inc()
			api.Error(w, http.StatusBadRequest, "insufficient wallet balance")
		case errors.Is(err, store.ErrInsufficientHoldings):
			metrics.TradeRejections.WithLabelValues("insufficient_holdings").Inc()
			api.Error(w, http.StatusBadRequest, "insufficient holdings")
		default:
			slog.Error("order fill failed", "order", order.ID, "err", err)
			api.Error(w, http.StatusInternalServerError, "order execution failed")
		}
		return
	}

	now := time.Now().UTC()
	if err := s.store.SetOrderStatus(ctx, order.ID, model.OrderStatusFilled, &now); err != nil {
		slog.Error("order status update failed", "order", order.ID, "err", err)
	}
	order.Status = model.OrderStatusFilled
	order.FilledAt = &now

	metrics.TradesTotal.WithLabelValues(order.Side).Inc()
	s.afterTrade(r, user.ID, entry)

	api.OK(w, http.StatusCreated, map[string]any{
		"order":       order,
		"transaction": entry,
	})
}

// ListOrders handles GET /orders
func (s *Service) ListOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	orders, err := s.store.ListOrdersByUser(r.Context(), user.ID)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	api.OK(w, http.StatusOK, orders)
}

// GetOrder handles GET /orders/{orderID}
func (s *Service) GetOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := chi.URLParam(r, "orderID")

	order, err := s.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "order not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	if order.UserID != user.ID {
		// Hide other users' orders entirely.
		api.Error(w, http.StatusNotFound, "order not found")
		return
	}
	api.OK(w, http.StatusOK, order)
}

// CancelOrder handles DELETE /orders/{orderID}. Only pending orders can
// be cancelled.
func (s *Service) CancelOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := chi.URLParam(r, "orderID")

	ctx := r.Context()
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "order not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	if order.UserID != user.ID {
		api.Error(w, http.StatusNotFound, "order not found")
		return
	}
	if order.Status != model.OrderStatusPending {
		api.Error(w, http.StatusConflict, "only pending orders can be cancelled")
		return
	}

	if err := s.store.SetOrderStatus(ctx, id, model.OrderStatusCancelled, nil); err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to cancel order")
		return
	}
	api.OKMessage(w, http.StatusOK, "order cancelled", nil)
}
