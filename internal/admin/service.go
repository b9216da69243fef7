// Package admin exposes the administrator surface: user management,
// KYC review, audit logs and platform analytics. Every route here sits
// behind auth.RequireAdmin.
package admin

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
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

const defaultAuditLimit = 100

type Service struct {
	store    store.Store
	notifier *notify.Service
}

func NewService(st store.Store, notifier *notify.Service) *Service {
	return &Service{store: st, notifier: notifier}
}

// WalletRequest is the JSON body for PUT /admin/users/{userID}/wallet.
type WalletRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

// RoleRequest is the JSON body for PUT /admin/users/{userID}/role.
type RoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

// KYCReviewRequest is the JSON body for PUT /admin/kyc/{kycID}/status.
type KYCReviewRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

// ListUsers handles GET /admin/users
func (s *Service) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	api.OK(w, http.StatusOK, users)
}

// GetUser handles GET /admin/users/{userID}
func (s *Service) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "user not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	api.OK(w, http.StatusOK, user)
}

// AdjustWallet handles PUT /admin/users/{userID}/wallet. Sets the
// balance outright; the normal trading flow never goes through here.
func (s *Service) AdjustWallet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")

	var req WalletRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Balance.IsNegative() {
		api.ValidationError(w, []string{"balance cannot be negative"})
		return
	}

	ctx := r.Context()
	user, err := s.store.SetUserWallet(ctx, id, req.Balance)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "user not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to update wallet")
		return
	}

	s.notifier.Push(ctx, id, "wallet",
		fmt.Sprintf("Your wallet balance was set to %s by an administrator", req.Balance.String()))
	s.audit(r, "user.wallet", id, req.Balance.String())

	api.OK(w, http.StatusOK, user)
}

// ChangeRole handles PUT /admin/users/{userID}/role
func (s *Service) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")

	var req RoleRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.Struct(req); errs != nil {
		api.ValidationError(w, errs)
		return
	}

	actor, _ := auth.UserFromContext(r.Context())
	if actor != nil && actor.ID == id {
		api.Error(w, http.StatusConflict, "cannot change your own role")
		return
	}

	if err := s.store.SetUserRole(r.Context(), id, req.Role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "user not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to update role")
		return
	}

	s.audit(r, "user.role", id, req.Role)
	api.OKMessage(w, http.StatusOK, "role updated", nil)
}

// DeleteUser handles DELETE /admin/users/{userID}
func (s *Service) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")

	actor, _ := auth.UserFromContext(r.Context())
	if actor != nil && actor.ID == id {
		api.Error(w, http.StatusConflict, "cannot delete your own account")
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "user not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	s.audit(r, "user.delete", id, "")
	api.OKMessage(w, http.StatusOK, "user deleted", nil)
}

// --- KYC review ---

// ListKYC handles GET /admin/kyc?status=pending
func (s *Service) ListKYC(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", model.KYCStatusPending, model.KYCStatusApproved, model.KYCStatusRejected:
	default:
		api.ValidationError(w, []string{"status must be one of pending, approved, rejected"})
		return
	}

	records, err := s.store.ListKYC(r.Context(), status)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to list KYC records")
		return
	}
	if records == nil {
		records = []model.KYCRecord{}
	}
	api.OK(w, http.StatusOK, records)
}

// ReviewKYC handles PUT /admin/kyc/{kycID}/status
func (s *Service) ReviewKYC(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "kycID")

	var req KYCReviewRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.Struct(req); errs != nil {
		api.ValidationError(w, errs)
		return
	}

	ctx := r.Context()
	rec, err := s.store.SetKYCStatus(ctx, id, req.Status, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "KYC record not found")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to update KYC record")
		return
	}

	s.notifier.Push(ctx, rec.UserID, "kyc",
		fmt.Sprintf("Your KYC submission was %s", req.Status))
	s.audit(r, "kyc.review", id, req.Status)

	api.OK(w, http.StatusOK, rec)
}

// --- Audit and analytics ---

// AuditLogs handles GET /admin/audit-logs?limit=N
func (s *Service) AuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			api.ValidationError(w, []string{"limit must be an integer between 1 and 1000"})
			return
		}
		limit = n
	}

	logs, err := s.store.ListAuditLogs(r.Context(), limit)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to list audit logs")
		return
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	api.OK(w, http.StatusOK, logs)
}

// Analytics handles GET /admin/analytics
func (s *Service) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetPlatformStats(r.Context())
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}
	api.OK(w, http.StatusOK, stats)
}

func (s *Service) audit(r *http.Request, action, entityID, detail string) {
	actor, ok := auth.UserFromContext(r.Context())
	if !ok {
		return
	}
	entry := &model.AuditLog{
		ID:        uuid.New().String(),
		ActorID:   actor.ID,
		Action:    action,
		Entity:    "user",
		EntityID:  entityID,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if action == "kyc.review" {
		entry.Entity = "kyc"
	}
	if err := s.store.InsertAuditLog(r.Context(), entry); err != nil {
		slog.Error("audit log failed", "action", action, "err", err)
	}
}
