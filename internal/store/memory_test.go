package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/api/internal/model"
	"github.com/papertrade/api/internal/store"
)

func seedUser(t *testing.T, ms *store.MemoryStore, balance int64) *model.User {
	t.Helper()
	u := &model.User{
		ID:            uuid.New().String(),
		Name:          "U",
		Email:         uuid.New().String() + "@example.com",
		Role:          model.RoleUser,
		WalletBalance: decimal.NewFromInt(balance),
		CreatedAt:     time.Now().UTC(),
	}
	if err := ms.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedProduct(t *testing.T, ms *store.MemoryStore, name string, price int64) *model.Product {
	t.Helper()
	p := &model.Product{
		ID:        uuid.New().String(),
		Name:      name,
		Category:  "equity",
		Price:     decimal.NewFromInt(price),
		CreatedAt: time.Now().UTC(),
	}
	if err := ms.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	ms := store.NewMemoryStore()
	u := seedUser(t, ms, 100)

	dup := *u
	dup.ID = uuid.New().String()
	if err := ms.CreateUser(context.Background(), &dup); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestAddToWatchlist_ReportsNewness(t *testing.T) {
	ms := store.NewMemoryStore()
	u := seedUser(t, ms, 100)
	p := seedProduct(t, ms, "Acme Corp", 100)

	added, err := ms.AddToWatchlist(context.Background(), u.ID, p.ID)
	if err != nil || !added {
		t.Fatalf("first add should report added=true, got %v/%v", added, err)
	}
	added, err = ms.AddToWatchlist(context.Background(), u.ID, p.ID)
	if err != nil || added {
		t.Fatalf("second add should report added=false, got %v/%v", added, err)
	}

	items, _ := ms.ListWatchlist(context.Background(), u.ID)
	if len(items) != 1 {
		t.Errorf("expected 1 row, got %d", len(items))
	}
}

func TestSubmitKYC_ResubmissionResetsToPending(t *testing.T) {
	ms := store.NewMemoryStore()
	u := seedUser(t, ms, 100)

	first := &model.KYCRecord{
		ID: uuid.New().String(), UserID: u.ID, PAN: "ABCDE1234F",
		Phone: "+919876543210", Status: model.KYCStatusPending,
		SubmittedAt: time.Now().UTC(),
	}
	if err := ms.SubmitKYC(context.Background(), first); err != nil {
		t.Fatalf("submit: %v", err)
	}
	now := time.Now().UTC()
	if _, err := ms.SetKYCStatus(context.Background(), first.ID, model.KYCStatusRejected, now); err != nil {
		t.Fatalf("review: %v", err)
	}

	// New submission replaces the rejection and re-enters the queue.
	second := &model.KYCRecord{
		ID: uuid.New().String(), UserID: u.ID, PAN: "FGHIJ5678K",
		Phone: "+919876543210", Status: model.KYCStatusPending,
		SubmittedAt: time.Now().UTC(),
	}
	if err := ms.SubmitKYC(context.Background(), second); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	rec, err := ms.GetKYCByUser(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != model.KYCStatusPending {
		t.Errorf("resubmission should be pending, got %s", rec.Status)
	}
	if rec.ReviewedAt != nil {
		t.Error("resubmission should clear the review time")
	}
	if rec.PAN != "FGHIJ5678K" {
		t.Errorf("resubmission should carry the new PAN, got %s", rec.PAN)
	}
}

func TestGetPositions_Valuations(t *testing.T) {
	ms := store.NewMemoryStore()
	u := seedUser(t, ms, 1000)
	p := seedProduct(t, ms, "Acme Corp", 100)

	if _, _, err := ms.ExecuteBuy(context.Background(), u.ID, p.ID, decimal.NewFromInt(5)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if err := ms.UpdateProductPrice(context.Background(), p.ID, decimal.NewFromInt(110)); err != nil {
		t.Fatalf("price update: %v", err)
	}

	positions, err := ms.GetPositions(context.Background(), u.ID)
	if err != nil || len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d (%v)", len(positions), err)
	}
	pos := positions[0]
	if !pos.CurrentValue.Equal(decimal.NewFromInt(550)) {
		t.Errorf("current value should be 550, got %s", pos.CurrentValue)
	}
	if !pos.InvestedCost.Equal(decimal.NewFromInt(500)) {
		t.Errorf("invested cost should be 500, got %s", pos.InvestedCost)
	}
	if !pos.UnrealizedPnL.Equal(decimal.NewFromInt(50)) {
		t.Errorf("pnl should be 50, got %s", pos.UnrealizedPnL)
	}
	if pos.ProductName != "Acme Corp" {
		t.Errorf("position should carry the product name, got %q", pos.ProductName)
	}
}

func TestDeleteUser_RemovesDependents(t *testing.T) {
	ms := store.NewMemoryStore()
	u := seedUser(t, ms, 1000)
	p := seedProduct(t, ms, "Acme Corp", 100)

	if _, _, err := ms.ExecuteBuy(context.Background(), u.ID, p.ID, decimal.NewFromInt(1)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := ms.AddToWatchlist(context.Background(), u.ID, p.ID); err != nil {
		t.Fatalf("watchlist: %v", err)
	}

	if err := ms.DeleteUser(context.Background(), u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := ms.GetUser(context.Background(), u.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("user should be gone, got %v", err)
	}
	positions, _ := ms.GetPositions(context.Background(), u.ID)
	if len(positions) != 0 {
		t.Errorf("positions should be gone, got %d", len(positions))
	}
	items, _ := ms.ListWatchlist(context.Background(), u.ID)
	if len(items) != 0 {
		t.Errorf("watchlist should be gone, got %d", len(items))
	}
}
