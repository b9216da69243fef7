// Package store defines the persistence interface for the trading
// simulator. Implementations include PostgreSQL (source of truth), Redis
// (read-through product cache), and in-memory (for testing).
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papertrade/api/internal/model"
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache for product reads only.
type Store interface {
	// --- Users ---

	// CreateUser persists a new user. Returns ErrDuplicate if the email
	// is taken.
	CreateUser(ctx context.Context, u *model.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*model.User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// UpdateUserProfile updates the mutable profile fields.
	UpdateUserProfile(ctx context.Context, id, name string) (*model.User, error)

	// ListUsers returns all users, newest first.
	ListUsers(ctx context.Context) ([]model.User, error)

	// SetUserWallet sets the wallet balance (admin adjustment).
	SetUserWallet(ctx context.Context, id string, balance decimal.Decimal) (*model.User, error)

	// SetUserRole changes a user's role.
	SetUserRole(ctx context.Context, id, role string) error

	// DeleteUser removes a user and its dependent rows.
	DeleteUser(ctx context.Context, id string) error

	// --- Products ---

	// CreateProduct persists a new product. Returns ErrDuplicate on a
	// taken name.
	CreateProduct(ctx context.Context, p *model.Product) error

	// GetProduct retrieves a product by ID.
	GetProduct(ctx context.Context, id string) (*model.Product, error)

	// ListProducts returns all products.
	ListProducts(ctx context.Context) ([]model.Product, error)

	// ListProductsByCategory returns products in one category.
	ListProductsByCategory(ctx context.Context, category string) ([]model.Product, error)

	// UpdateProduct updates product metadata (not the price).
	UpdateProduct(ctx context.Context, p *model.Product) error

	// UpdateProductPrice sets a product's current price.
	UpdateProductPrice(ctx context.Context, id string, price decimal.Decimal) error

	// DeleteProduct removes a product.
	DeleteProduct(ctx context.Context, id string) error

	// --- Trade execution (atomic) ---

	// ExecuteBuy atomically: reads the product price, locks the user row,
	// rejects with ErrInsufficientFunds if the wallet cannot cover
	// units*price, appends a buy transaction, debits the wallet and
	// upserts the portfolio row with a weighted-average cost. Returns the
	// ledger row and the new wallet balance. Any failure rolls back every
	// write.
	ExecuteBuy(ctx context.Context, userID, productID string, units decimal.Decimal) (*model.Transaction, decimal.Decimal, error)

	// ExecuteSell mirrors ExecuteBuy: rejects with
	// ErrInsufficientHoldings, appends a sell transaction, credits the
	// wallet at the current price and decrements the portfolio row.
	ExecuteSell(ctx context.Context, userID, productID string, units decimal.Decimal) (*model.Transaction, decimal.Decimal, error)

	// --- Ledger and portfolio ---

	// GetTransactionsByUser returns a user's ledger, newest first.
	GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error)

	// GetTransactionStats aggregates a user's ledger.
	GetTransactionStats(ctx context.Context, userID string) (model.TransactionStats, error)

	// GetPositions returns the user's open portfolio rows with current
	// valuations.
	GetPositions(ctx context.Context, userID string) ([]model.Position, error)

	// --- Orders ---

	// CreateOrder persists an order record.
	CreateOrder(ctx context.Context, o *model.Order) error

	// GetOrder retrieves one order.
	GetOrder(ctx context.Context, id string) (*model.Order, error)

	// ListOrdersByUser returns a user's orders, newest first.
	ListOrdersByUser(ctx context.Context, userID string) ([]model.Order, error)

	// SetOrderStatus transitions an order's status.
	SetOrderStatus(ctx context.Context, id, status string, filledAt *time.Time) error

	// --- Watchlist ---

	// AddToWatchlist inserts the pair if absent. Returns false when the
	// pair was already present (idempotent add).
	AddToWatchlist(ctx context.Context, userID, productID string) (bool, error)

	// ListWatchlist returns the user's watchlist with product details.
	ListWatchlist(ctx context.Context, userID string) ([]model.WatchlistItem, error)

	// RemoveFromWatchlist removes the pair.
	RemoveFromWatchlist(ctx context.Context, userID, productID string) error

	// --- Alerts ---

	// CreateAlert persists a price alert.
	CreateAlert(ctx context.Context, a *model.Alert) error

	// ListAlertsByUser returns a user's alerts.
	ListAlertsByUser(ctx context.Context, userID string) ([]model.Alert, error)

	// DeleteAlert removes an alert owned by userID.
	DeleteAlert(ctx context.Context, id, userID string) error

	// ListArmedAlerts returns not-yet-triggered alerts for a product.
	ListArmedAlerts(ctx context.Context, productID string) ([]model.Alert, error)

	// MarkAlertTriggered stamps an alert as fired.
	MarkAlertTriggered(ctx context.Context, id string, at time.Time) error

	// --- Notifications ---

	// CreateNotification persists a notification.
	CreateNotification(ctx context.Context, n *model.Notification) error

	// ListNotificationsByUser returns a user's notifications, newest
	// first.
	ListNotificationsByUser(ctx context.Context, userID string) ([]model.Notification, error)

	// MarkNotificationRead marks one notification read.
	MarkNotificationRead(ctx context.Context, id, userID string) error

	// MarkAllNotificationsRead marks all of a user's notifications read.
	MarkAllNotificationsRead(ctx context.Context, userID string) error

	// DeleteNotification removes a notification owned by userID.
	DeleteNotification(ctx context.Context, id, userID string) error

	// --- KYC ---

	// SubmitKYC upserts a user's KYC record and resets it to pending.
	SubmitKYC(ctx context.Context, rec *model.KYCRecord) error

	// GetKYCByUser returns the user's KYC record.
	GetKYCByUser(ctx context.Context, userID string) (*model.KYCRecord, error)

	// ListKYC returns KYC records, optionally filtered by status
	// (empty status = all).
	ListKYC(ctx context.Context, status string) ([]model.KYCRecord, error)

	// SetKYCStatus transitions a KYC record and stamps the review time.
	SetKYCStatus(ctx context.Context, id, status string, at time.Time) (*model.KYCRecord, error)

	// --- Audit and analytics ---

	// InsertAuditLog appends an audit entry.
	InsertAuditLog(ctx context.Context, e *model.AuditLog) error

	// ListAuditLogs returns the most recent audit entries.
	ListAuditLogs(ctx context.Context, limit int) ([]model.AuditLog, error)

	// GetPlatformStats aggregates platform-wide counters for the admin
	// dashboard.
	GetPlatformStats(ctx context.Context) (model.PlatformStats, error)
}
