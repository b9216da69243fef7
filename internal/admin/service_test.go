package admin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/api/internal/admin"
	"github.com/papertrade/api/internal/auth"
	"github.com/papertrade/api/internal/model"
	"github.com/papertrade/api/internal/notify"
	"github.com/papertrade/api/internal/store"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

func newTestEnv(t *testing.T) (*model.User, *store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	root := &model.User{
		ID:        uuid.New().String(),
		Name:      "Root",
		Email:     "root@example.com",
		Role:      model.RoleAdmin,
		CreatedAt: time.Now().UTC(),
	}
	if err := ms.CreateUser(context.Background(), root); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	svc := admin.NewService(ms, notify.NewService(ms))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUser(req.Context(), root)))
		})
	})
	r.Get("/api/v1/admin/users", svc.ListUsers)
	r.Get("/api/v1/admin/users/{userID}", svc.GetUser)
	r.Put("/api/v1/admin/users/{userID}/wallet", svc.AdjustWallet)
	r.Put("/api/v1/admin/users/{userID}/role", svc.ChangeRole)
	r.Delete("/api/v1/admin/users/{userID}", svc.DeleteUser)
	r.Get("/api/v1/admin/kyc", svc.ListKYC)
	r.Put("/api/v1/admin/kyc/{kycID}/status", svc.ReviewKYC)
	r.Get("/api/v1/admin/audit-logs", svc.AuditLogs)
	r.Get("/api/v1/admin/analytics", svc.Analytics)

	return root, ms, r
}

func seedUser(t *testing.T, ms *store.MemoryStore, balance float64) *model.User {
	t.Helper()
	u := &model.User{
		ID:            uuid.New().String(),
		Name:          "Plain User",
		Email:         uuid.New().String() + "@example.com",
		Role:          model.RoleUser,
		WalletBalance: decimal.NewFromFloat(balance),
		CreatedAt:     time.Now().UTC(),
	}
	if err := ms.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdjustWallet(t *testing.T) {
	_, ms, router := newTestEnv(t)
	user := seedUser(t, ms, 100)

	w := doJSON(t, router, "PUT", "/api/v1/admin/users/"+user.ID+"/wallet", admin.WalletRequest{
		Balance: decimal.NewFromInt(5000),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	u, _ := ms.GetUser(context.Background(), user.ID)
	if !u.WalletBalance.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("wallet should be 5000, got %s", u.WalletBalance)
	}

	// The user hears about the adjustment.
	notifs, _ := ms.ListNotificationsByUser(context.Background(), user.ID)
	if len(notifs) != 1 || notifs[0].Type != "wallet" {
		t.Errorf("expected one wallet notification, got %v", notifs)
	}

	// And the adjustment is audited.
	logs, _ := ms.ListAuditLogs(context.Background(), 10)
	if len(logs) != 1 || logs[0].Action != "user.wallet" {
		t.Errorf("expected a user.wallet audit entry, got %v", logs)
	}
}

func TestAdjustWallet_RejectsNegative(t *testing.T) {
	_, ms, router := newTestEnv(t)
	user := seedUser(t, ms, 100)

	w := doJSON(t, router, "PUT", "/api/v1/admin/users/"+user.ID+"/wallet", admin.WalletRequest{
		Balance: decimal.NewFromInt(-1),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestChangeRole(t *testing.T) {
	root, ms, router := newTestEnv(t)
	user := seedUser(t, ms, 100)

	w := doJSON(t, router, "PUT", "/api/v1/admin/users/"+user.ID+"/role", admin.RoleRequest{
		Role: model.RoleAdmin,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	u, _ := ms.GetUser(context.Background(), user.ID)
	if u.Role != model.RoleAdmin {
		t.Errorf("role should be admin, got %s", u.Role)
	}

	// Admins cannot demote themselves.
	w = doJSON(t, router, "PUT", "/api/v1/admin/users/"+root.ID+"/role", admin.RoleRequest{
		Role: model.RoleUser,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("self role change expected 409, got %d", w.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	root, ms, router := newTestEnv(t)
	user := seedUser(t, ms, 100)

	w := doJSON(t, router, "DELETE", "/api/v1/admin/users/"+user.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if _, err := ms.GetUser(context.Background(), user.ID); err != store.ErrNotFound {
		t.Errorf("user should be gone, got err=%v", err)
	}

	// Admins cannot delete themselves.
	w = doJSON(t, router, "DELETE", "/api/v1/admin/users/"+root.ID, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("self delete expected 409, got %d", w.Code)
	}
}

func TestReviewKYC(t *testing.T) {
	_, ms, router := newTestEnv(t)
	user := seedUser(t, ms, 100)

	rec := &model.KYCRecord{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		PAN:         "ABCDE1234F",
		Phone:       "+919876543210",
		Status:      model.KYCStatusPending,
		SubmittedAt: time.Now().UTC(),
	}
	if err := ms.SubmitKYC(context.Background(), rec); err != nil {
		t.Fatalf("seed kyc: %v", err)
	}

	// Pending filter sees it.
	w := doJSON(t, router, "GET", "/api/v1/admin/kyc?status=pending", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list expected 200, got %d", w.Code)
	}
	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	var records []model.KYCRecord
	json.Unmarshal(env.Data, &records)
	if len(records) != 1 {
		t.Fatalf("expected 1 pending record, got %d", len(records))
	}

	w = doJSON(t, router, "PUT", "/api/v1/admin/kyc/"+records[0].ID+"/status", admin.KYCReviewRequest{
		Status: model.KYCStatusApproved,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("review expected 200, got %d: %s", w.Code, w.Body.String())
	}

	got, _ := ms.GetKYCByUser(context.Background(), user.ID)
	if got.Status != model.KYCStatusApproved || got.ReviewedAt == nil {
		t.Errorf("record should be approved with a review time, got %+v", got)
	}

	notifs, _ := ms.ListNotificationsByUser(context.Background(), user.ID)
	if len(notifs) != 1 || notifs[0].Type != "kyc" {
		t.Errorf("expected one kyc notification, got %v", notifs)
	}
}

func TestReviewKYC_InvalidStatus(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "PUT", "/api/v1/admin/kyc/"+uuid.New().String()+"/status", admin.KYCReviewRequest{
		Status: "maybe",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAuditLogs_LimitValidation(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doJSON(t, router, "GET", "/api/v1/admin/audit-logs?limit=0", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("limit=0 expected 400, got %d", w.Code)
	}
	w = doJSON(t, router, "GET", "/api/v1/admin/audit-logs?limit=50", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("limit=50 expected 200, got %d", w.Code)
	}
}

func TestAnalytics(t *testing.T) {
	_, ms, router := newTestEnv(t)
	user := seedUser(t, ms, 1000)

	p := &model.Product{
		ID: uuid.New().String(), Name: "Acme Corp", Category: "equity",
		Price: decimal.NewFromInt(100), CreatedAt: time.Now().UTC(),
	}
	if err := ms.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, _, err := ms.ExecuteBuy(context.Background(), user.ID, p.ID, decimal.NewFromInt(3)); err != nil {
		t.Fatalf("buy: %v", err)
	}

	w := doJSON(t, router, "GET", "/api/v1/admin/analytics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	var stats model.PlatformStats
	json.Unmarshal(env.Data, &stats)

	if stats.Users != 2 {
		t.Errorf("expected 2 users, got %d", stats.Users)
	}
	if stats.Products != 1 {
		t.Errorf("expected 1 product, got %d", stats.Products)
	}
	if stats.Transactions != 1 {
		t.Errorf("expected 1 transaction, got %d", stats.Transactions)
	}
	if !stats.Turnover.Equal(decimal.NewFromInt(300)) {
		t.Errorf("turnover should be 300, got %s", stats.Turnover)
	}
	if len(stats.TopProducts) != 1 || stats.TopProducts[0].TradeCount != 1 {
		t.Errorf("expected Acme as top product, got %v", stats.TopProducts)
	}
}

func TestRequireAdmin_BlocksPlainUsers(t *testing.T) {
	ms := store.NewMemoryStore()
	plain := seedUser(t, ms, 100)
	svc := admin.NewService(ms, notify.NewService(ms))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUser(req.Context(), plain)))
		})
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Get("/api/v1/admin/users", svc.ListUsers)
	})

	w := doJSON(t, r, "GET", "/api/v1/admin/users", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
