// Package model defines the core domain types shared across the trading
// simulator. All monetary values use shopspring/decimal — never float64
// for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Transaction and order sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order types and statuses.
const (
	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"

	OrderStatusPending   = "pending"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
)

// KYC review statuses.
const (
	KYCStatusPending  = "pending"
	KYCStatusApproved = "approved"
	KYCStatusRejected = "rejected"
)

// Alert directions.
const (
	AlertAbove = "above"
	AlertBelow = "below"
)

// User holds an account and its virtual wallet. WalletBalance mutates only
// through trade execution or an explicit admin adjustment, and must never
// go negative as the result of a buy.
type User struct {
	ID            string          `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Email         string          `json:"email" db:"email"`
	PasswordHash  string          `json:"-" db:"password_hash"`
	Role          string          `json:"role" db:"role"`
	WalletBalance decimal.Decimal `json:"wallet_balance" db:"wallet_balance"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Product is a mock financial instrument. Price changes only via admin
// price updates; there is no market simulation engine.
type Product struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Category    string          `json:"category" db:"category"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Description string          `json:"description" db:"description"`
	PERatio     decimal.Decimal `json:"pe_ratio" db:"pe_ratio"`
	MarketCap   decimal.Decimal `json:"market_cap" db:"market_cap"`
	Volume      int64           `json:"volume" db:"volume"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Transaction is an immutable record of an executed buy or sell.
// Once created, these are never modified or deleted.
type Transaction struct {
	ID           string          `json:"id" db:"id"`
	UserID       string          `json:"user_id" db:"user_id"`
	ProductID    string          `json:"product_id" db:"product_id"`
	Type         string          `json:"type" db:"type"` // "buy" or "sell"
	Units        decimal.Decimal `json:"units" db:"units"`
	PricePerUnit decimal.Decimal `json:"price_per_unit" db:"price_per_unit"`
	TotalAmount  decimal.Decimal `json:"total_amount" db:"total_amount"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Position is one portfolio row: the running quantity and weighted-average
// cost of a user's holding in one product. AveragePrice is the
// quantity-weighted mean of buy fills; it is zeroed with the position when
// the holding is fully sold.
type Position struct {
	UserID        string          `json:"user_id" db:"user_id"`
	ProductID     string          `json:"product_id" db:"product_id"`
	ProductName   string          `json:"product_name" db:"product_name"`
	Category      string          `json:"category" db:"category"`
	Quantity      decimal.Decimal `json:"quantity" db:"quantity"`
	AveragePrice  decimal.Decimal `json:"average_price" db:"average_price"`
	CurrentPrice  decimal.Decimal `json:"current_price" db:"current_price"`
	CurrentValue  decimal.Decimal `json:"current_value"`  // quantity * current price
	InvestedCost  decimal.Decimal `json:"invested_cost"`  // quantity * average price
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"` // currentValue - investedCost
}

// PortfolioSummary aggregates all positions for a user.
type PortfolioSummary struct {
	UserID        string          `json:"user_id"`
	Positions     []Position      `json:"positions"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	TotalValue    decimal.Decimal `json:"total_value"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
}

// WatchlistItem is a user-curated product to monitor, independent of
// holdings.
type WatchlistItem struct {
	UserID    string    `json:"user_id" db:"user_id"`
	ProductID string    `json:"product_id" db:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Alert fires when an admin price update moves a product's price across
// the threshold in the configured direction.
type Alert struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	ProductID   string          `json:"product_id" db:"product_id"`
	Direction   string          `json:"direction" db:"direction"` // "above" or "below"
	Threshold   decimal.Decimal `json:"threshold" db:"threshold"`
	TriggeredAt *time.Time      `json:"triggered_at,omitempty" db:"triggered_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Notification is a message delivered to one user.
type Notification struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Type      string    `json:"type" db:"type"`
	Message   string    `json:"message" db:"message"`
	Read      bool      `json:"read" db:"read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Order is a standing instruction to trade. Market orders execute
// immediately through the same atomic flow as POST /transactions/buy;
// limit orders stay pending until cancelled (there is no matching engine).
type Order struct {
	ID         string          `json:"id" db:"id"`
	UserID     string          `json:"user_id" db:"user_id"`
	ProductID  string          `json:"product_id" db:"product_id"`
	Side       string          `json:"side" db:"side"`
	OrderType  string          `json:"order_type" db:"order_type"`
	Units      decimal.Decimal `json:"units" db:"units"`
	LimitPrice decimal.Decimal `json:"limit_price" db:"limit_price"`
	Status     string          `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	FilledAt   *time.Time      `json:"filled_at,omitempty" db:"filled_at"`
}

// KYCRecord is a user's identity submission, one per user.
type KYCRecord struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	PAN         string     `json:"pan" db:"pan"`
	Phone       string     `json:"phone" db:"phone"`
	Address     string     `json:"address" db:"address"`
	Status      string     `json:"status" db:"status"`
	SubmittedAt time.Time  `json:"submitted_at" db:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
}

// AuditLog records who did what. Written on trade executions and admin
// mutations.
type AuditLog struct {
	ID        string    `json:"id" db:"id"`
	ActorID   string    `json:"actor_id" db:"actor_id"`
	Action    string    `json:"action" db:"action"`
	Entity    string    `json:"entity" db:"entity"`
	EntityID  string    `json:"entity_id" db:"entity_id"`
	Detail    string    `json:"detail" db:"detail"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TransactionStats summarizes one user's trading activity.
type TransactionStats struct {
	BuyCount      int64           `json:"buy_count"`
	SellCount     int64           `json:"sell_count"`
	TotalInvested decimal.Decimal `json:"total_invested"` // sum of buy totals
	TotalProceeds decimal.Decimal `json:"total_proceeds"` // sum of sell totals
	NetFlow       decimal.Decimal `json:"net_flow"`       // proceeds - invested
}

// ProductVolume is a per-product traded-amount aggregate for dashboards.
type ProductVolume struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	TradeCount  int64           `json:"trade_count"`
	Turnover    decimal.Decimal `json:"turnover"`
}

// PlatformStats is the admin analytics dashboard payload.
type PlatformStats struct {
	Users        int64           `json:"users"`
	Products     int64           `json:"products"`
	Transactions int64           `json:"transactions"`
	Turnover     decimal.Decimal `json:"turnover"`
	TopProducts  []ProductVolume `json:"top_products"`
}
