package account_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/papertrade/api/internal/account"
	"github.com/papertrade/api/internal/auth"
	"github.com/papertrade/api/internal/model"
	"github.com/papertrade/api/internal/store"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	issuer := auth.NewIssuer("test-secret-at-least-32-bytes-long", time.Hour)
	svc := account.NewService(ms, issuer, decimal.NewFromInt(10000))

	r := chi.NewRouter()
	r.Post("/api/v1/auth/register", svc.Register)
	r.Post("/api/v1/auth/login", svc.Login)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(issuer, ms))
		r.Get("/api/v1/auth/profile", svc.GetProfile)
		r.Put("/api/v1/auth/profile", svc.UpdateProfile)
		r.Post("/api/v1/kyc", svc.SubmitKYC)
		r.Get("/api/v1/kyc/my", svc.MyKYC)
	})
	return ms, r
}

func doJSON(t *testing.T, router chi.Router, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, router chi.Router, name, email, password string) account.AuthResponse {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/auth/register", "", account.RegisterRequest{
		Name: name, Email: email, Password: password,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", w.Code, w.Body.String())
	}
	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	var resp account.AuthResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return resp
}

func TestRegister(t *testing.T) {
	_, router := newTestEnv(t)

	resp := register(t, router, "Alice", "alice@example.com", "hunter2hunter2")
	if resp.Token == "" {
		t.Error("expected a token")
	}
	if resp.User == nil {
		t.Fatal("expected a user payload")
	}
	if !resp.User.WalletBalance.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("initial wallet should be 10000, got %s", resp.User.WalletBalance)
	}
	if resp.User.Role != model.RoleUser {
		t.Errorf("new accounts should be plain users, got %s", resp.User.Role)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	_, router := newTestEnv(t)
	register(t, router, "Alice", "alice@example.com", "hunter2hunter2")

	w := doJSON(t, router, "POST", "/api/v1/auth/register", "", account.RegisterRequest{
		Name: "Mallory", Email: "alice@example.com", Password: "hunter2hunter2",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRegister_Validation(t *testing.T) {
	_, router := newTestEnv(t)

	cases := []account.RegisterRequest{
		{Name: "", Email: "a@example.com", Password: "hunter2hunter2"},
		{Name: "Alice", Email: "not-an-email", Password: "hunter2hunter2"},
		{Name: "Alice", Email: "a@example.com", Password: "short"},
	}
	for i, req := range cases {
		w := doJSON(t, router, "POST", "/api/v1/auth/register", "", req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("case %d: expected 400, got %d", i, w.Code)
		}
		var env envelope
		json.Unmarshal(w.Body.Bytes(), &env)
		if env.Success || len(env.Errors) == 0 {
			t.Errorf("case %d: expected error envelope with messages", i)
		}
	}
}

func TestLogin(t *testing.T) {
	_, router := newTestEnv(t)
	register(t, router, "Alice", "alice@example.com", "hunter2hunter2")

	w := doJSON(t, router, "POST", "/api/v1/auth/login", "", account.LoginRequest{
		Email: "alice@example.com", Password: "hunter2hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	var resp account.AuthResponse
	json.Unmarshal(env.Data, &resp)
	if resp.Token == "" {
		t.Error("expected a token")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	_, router := newTestEnv(t)
	register(t, router, "Alice", "alice@example.com", "hunter2hunter2")

	w := doJSON(t, router, "POST", "/api/v1/auth/login", "", account.LoginRequest{
		Email: "alice@example.com", Password: "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, "POST", "/api/v1/auth/login", "", account.LoginRequest{
		Email: "ghost@example.com", Password: "hunter2hunter2",
	})
	// Same status and message as a wrong password, so the response does
	// not reveal which emails exist.
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestProfile_RoundTrip(t *testing.T) {
	_, router := newTestEnv(t)
	resp := register(t, router, "Alice", "alice@example.com", "hunter2hunter2")

	w := doJSON(t, router, "GET", "/api/v1/auth/profile", resp.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	var user model.User
	json.Unmarshal(env.Data, &user)
	if user.Email != "alice@example.com" {
		t.Errorf("unexpected profile email %q", user.Email)
	}

	w = doJSON(t, router, "PUT", "/api/v1/auth/profile", resp.Token, account.UpdateProfileRequest{
		Name: "Alice Prime",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update expected 200, got %d: %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &env)
	json.Unmarshal(env.Data, &user)
	if user.Name != "Alice Prime" {
		t.Errorf("name should be updated, got %q", user.Name)
	}
}

func TestProfile_RequiresToken(t *testing.T) {
	_, router := newTestEnv(t)

	w := doJSON(t, router, "GET", "/api/v1/auth/profile", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = doJSON(t, router, "GET", "/api/v1/auth/profile", "not.a.jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", w.Code)
	}
}

func TestKYC_SubmitAndFetch(t *testing.T) {
	ms, router := newTestEnv(t)
	resp := register(t, router, "Alice", "alice@example.com", "hunter2hunter2")

	w := doJSON(t, router, "POST", "/api/v1/kyc", resp.Token, account.KYCRequest{
		PAN:     "ABCDE1234F",
		Phone:   "+919876543210",
		Address: "221B Baker Street",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	rec, err := ms.GetKYCByUser(context.Background(), resp.User.ID)
	if err != nil {
		t.Fatalf("kyc record not stored: %v", err)
	}
	if rec.Status != model.KYCStatusPending {
		t.Errorf("fresh submission should be pending, got %s", rec.Status)
	}

	w = doJSON(t, router, "GET", "/api/v1/kyc/my", resp.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestKYC_ValidatesPAN(t *testing.T) {
	_, router := newTestEnv(t)
	resp := register(t, router, "Alice", "alice@example.com", "hunter2hunter2")

	w := doJSON(t, router, "POST", "/api/v1/kyc", resp.Token, account.KYCRequest{
		PAN:   "not-a-pan",
		Phone: "+919876543210",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestKYC_NoneOnFile(t *testing.T) {
	_, router := newTestEnv(t)
	resp := register(t, router, "Alice", "alice@example.com", "hunter2hunter2")

	w := doJSON(t, router, "GET", "/api/v1/kyc/my", resp.Token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
