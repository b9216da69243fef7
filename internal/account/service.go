// Package account provides registration, login, profile, and KYC
// endpoints.
package account

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/api/internal/api"
	"github.com/papertrade/api/internal/auth"
	"github.com/papertrade/api/internal/model"
	"github.com/papertrade/api/internal/store"
	"github.com/papertrade/api/internal/validate"
)

// Service handles account operations.
type Service struct {
	store          store.Store
	issuer         *auth.Issuer
	initialBalance decimal.Decimal
}

// NewService creates the account service. initialBalance is the virtual
// wallet amount granted on registration.
func NewService(st store.Store, issuer *auth.Issuer, initialBalance decimal.Decimal) *Service {
	return &Service{
		store:          st,
		issuer:         issuer,
		initialBalance: initialBalance,
	}
}

// --- Request/Response types ---

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned from register and login.
type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// UpdateProfileRequest is the JSON body for PUT /auth/profile.
type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// KYCRequest is the JSON body for POST /kyc.
type KYCRequest struct {
	PAN     string `json:"pan" validate:"required,pan"`
	Phone   string `json:"phone" validate:"required,phone"`
	Address string `json:"address" validate:"max=500"`
}

// --- HTTP Handlers ---

// Register handles POST /auth/register
func (s *Service) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.Struct(req); errs != nil {
		api.ValidationError(w, errs)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	user := &model.User{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Email:         req.Email,
		PasswordHash:  hash,
		Role:          model.RoleUser,
		WalletBalance: s.initialBalance,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			api.Error(w, http.StatusConflict, "email already registered")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	token, err := s.issuer.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	slog.Info("user registered", "user", user.ID, "email", user.Email)
	api.OK(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login handles POST /auth/login
func (s *Service) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.Struct(req); errs != nil {
		api.ValidationError(w, errs)
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)

	// Always run a bcrypt comparison so unknown emails take as long as
	// wrong passwords.
	hash := ""
	if err == nil {
		hash = user.PasswordHash
	}
	if !auth.CheckPassword(hash, req.Password) || err != nil {
		api.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.issuer.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	api.OK(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// GetProfile handles GET /auth/profile
func (s *Service) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	api.OK(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /auth/profile
func (s *Service) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.Struct(req); errs != nil {
		api.ValidationError(w, errs)
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	updated, err := s.store.UpdateUserProfile(r.Context(), user.ID, req.Name)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	api.OK(w, http.StatusOK, updated)
}

// SubmitKYC handles POST /kyc
func (s *Service) SubmitKYC(w http.ResponseWriter, r *http.Request) {
	var req KYCRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validate.Struct(req); errs != nil {
		api.ValidationError(w, errs)
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	rec := &model.KYCRecord{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		PAN:         req.PAN,
		Phone:       req.Phone,
		Address:     req.Address,
		Status:      model.KYCStatusPending,
		SubmittedAt: time.Now().UTC(),
	}

	if err := s.store.SubmitKYC(r.Context(), rec); err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to submit KYC")
		return
	}

	slog.Info("kyc submitted", "user", user.ID)
	api.OKMessage(w, http.StatusCreated, "KYC submitted for review", rec)
}

// MyKYC handles GET /kyc/my
func (s *Service) MyKYC(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	rec, err := s.store.GetKYCByUser(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.Error(w, http.StatusNotFound, "no KYC record on file")
			return
		}
		api.Error(w, http.StatusInternalServerError, "failed to load KYC record")
		return
	}
	api.OK(w, http.StatusOK, rec)
}
