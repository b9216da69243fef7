package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/papertrade/api/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence). A single
// mutex serializes trade execution, which is what the row locks provide
// in the PostgreSQL implementation.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*model.User
	products      map[string]*model.Product
	transactions  []model.Transaction
	positions     map[string]map[string]*model.Position // userID → productID → position
	orders        map[string]*model.Order
	watchlist     map[string]map[string]time.Time // userID → productID → added
	alerts        map[string]*model.Alert
	notifications map[string]*model.Notification
	kyc           map[string]*model.KYCRecord // keyed by userID
	audit         []model.AuditLog
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*model.User),
		products:      make(map[string]*model.Product),
		positions:     make(map[string]map[string]*model.Position),
		orders:        make(map[string]*model.Order),
		watchlist:     make(map[string]map[string]time.Time),
		alerts:        make(map[string]*model.Alert),
		notifications: make(map[string]*model.Notification),
		kyc:           make(map[string]*model.KYCRecord),
	}
}

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	copy := *u
	s.users[u.ID] = &copy
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *u
	return &copy, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateUserProfile(_ context.Context, id, name string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Name = name
	copy := *u
	return &copy, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (s *MemoryStore) SetUserWallet(_ context.Context, id string, balance decimal.Decimal) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.WalletBalance = balance
	copy := *u
	return &copy, nil
}

func (s *MemoryStore) SetUserRole(_ context.Context, id, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	delete(s.positions, id)
	delete(s.watchlist, id)
	delete(s.kyc, id)
	return nil
}

// --- Products ---

func (s *MemoryStore) CreateProduct(_ context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.Name == p.Name {
			return ErrDuplicate
		}
	}
	copy := *p
	s.products[p.ID] = &copy
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, *p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *MemoryStore) ListProductsByCategory(_ context.Context, category string) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var products []model.Product
	for _, p := range s.products {
		if p.Category == category {
			products = append(products, *p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = p.Name
	existing.Category = p.Category
	existing.Description = p.Description
	existing.PERatio = p.PERatio
	existing.MarketCap = p.MarketCap
	existing.Volume = p.Volume
	return nil
}

func (s *MemoryStore) UpdateProductPrice(_ context.Context, id string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Price = price
	return nil
}

func (s *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// --- Trade execution ---

// ExecuteBuy holds the write lock for the whole flow so concurrent buys by
// the same user cannot both pass the balance check.
func (s *MemoryStore) ExecuteBuy(_ context.Context, userID, productID string, units decimal.Decimal) (*model.Transaction, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, decimal.Zero, ErrNotFound
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, decimal.Zero, ErrNotFound
	}

	total := units.Mul(p.Price)
	if u.WalletBalance.LessThan(total) {
		return nil, decimal.Zero, ErrInsufficientFunds
	}

	entry := model.Transaction{
		ID:           uuid.New().String(),
		UserID:       userID,
		ProductID:    productID,
		Type:         model.SideBuy,
		Units:        units,
		PricePerUnit: p.Price,
		TotalAmount:  total,
		CreatedAt:    time.Now().UTC(),
	}
	s.transactions = append(s.transactions, entry)
	u.WalletBalance = u.WalletBalance.Sub(total)

	byProduct, ok := s.positions[userID]
	if !ok {
		byProduct = make(map[string]*model.Position)
		s.positions[userID] = byProduct
	}
	pos, ok := byProduct[productID]
	if !ok || pos.Quantity.IsZero() {
		byProduct[productID] = &model.Position{
			UserID:       userID,
			ProductID:    productID,
			Quantity:     units,
			AveragePrice: p.Price,
		}
	} else {
		newQuantity := pos.Quantity.Add(units)
		pos.AveragePrice = pos.Quantity.Mul(pos.AveragePrice).
			Add(units.Mul(p.Price)).
			Div(newQuantity)
		pos.Quantity = newQuantity
	}

	return &entry, u.WalletBalance, nil
}

func (s *MemoryStore) ExecuteSell(_ context.Context, userID, productID string, units decimal.Decimal) (*model.Transaction, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, decimal.Zero, ErrNotFound
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, decimal.Zero, ErrNotFound
	}

	pos := s.positions[userID][productID]
	if pos == nil || pos.Quantity.LessThan(units) {
		return nil, decimal.Zero, ErrInsufficientHoldings
	}

	total := units.Mul(p.Price)
	entry := model.Transaction{
		ID:           uuid.New().String(),
		UserID:       userID,
		ProductID:    productID,
		Type:         model.SideSell,
		Units:        units,
		PricePerUnit: p.Price,
		TotalAmount:  total,
		CreatedAt:    time.Now().UTC(),
	}
	s.transactions = append(s.transactions, entry)
	u.WalletBalance = u.WalletBalance.Add(total)

	pos.Quantity = pos.Quantity.Sub(units)
	if pos.Quantity.IsZero() {
		pos.AveragePrice = decimal.Zero
	}

	return &entry, u.WalletBalance, nil
}

// --- Ledger and portfolio ---

func (s *MemoryStore) GetTransactionsByUser(_ context.Context, userID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserID == userID {
			result = append(result, s.transactions[i])
		}
	}
	return result, nil
}

func (s *MemoryStore) GetTransactionStats(_ context.Context, userID string) (model.TransactionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats model.TransactionStats
	for _, t := range s.transactions {
		if t.UserID != userID {
			continue
		}
		if t.Type == model.SideBuy {
			stats.BuyCount++
			stats.TotalInvested = stats.TotalInvested.Add(t.TotalAmount)
		} else {
			stats.SellCount++
			stats.TotalProceeds = stats.TotalProceeds.Add(t.TotalAmount)
		}
	}
	stats.NetFlow = stats.TotalProceeds.Sub(stats.TotalInvested)
	return stats, nil
}

func (s *MemoryStore) GetPositions(_ context.Context, userID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []model.Position
	for productID, pos := range s.positions[userID] {
		if pos.Quantity.IsZero() {
			continue
		}
		p := *pos
		if product, ok := s.products[productID]; ok {
			p.ProductName = product.Name
			p.Category = product.Category
			p.CurrentPrice = product.Price
		}
		p.CurrentValue = p.Quantity.Mul(p.CurrentPrice)
		p.InvestedCost = p.Quantity.Mul(p.AveragePrice)
		p.UnrealizedPnL = p.CurrentValue.Sub(p.InvestedCost)
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].ProductName < positions[j].ProductName })
	return positions, nil
}

// --- Orders ---

func (s *MemoryStore) CreateOrder(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *o
	s.orders[o.ID] = &copy
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *o
	return &copy, nil
}

func (s *MemoryStore) ListOrdersByUser(_ context.Context, userID string) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []model.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (s *MemoryStore) SetOrderStatus(_ context.Context, id, status string, filledAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.FilledAt = filledAt
	return nil
}

// --- Watchlist ---

func (s *MemoryStore) AddToWatchlist(_ context.Context, userID, productID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProduct, ok := s.watchlist[userID]
	if !ok {
		byProduct = make(map[string]time.Time)
		s.watchlist[userID] = byProduct
	}
	if _, exists := byProduct[productID]; exists {
		return false, nil
	}
	byProduct[productID] = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) ListWatchlist(_ context.Context, userID string) ([]model.WatchlistItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []model.WatchlistItem
	for productID, added := range s.watchlist[userID] {
		item := model.WatchlistItem{UserID: userID, ProductID: productID, CreatedAt: added}
		if p, ok := s.products[productID]; ok {
			copy := *p
			item.Product = &copy
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (s *MemoryStore) RemoveFromWatchlist(_ context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProduct := s.watchlist[userID]
	if _, ok := byProduct[productID]; !ok {
		return ErrNotFound
	}
	delete(byProduct, productID)
	return nil
}

// --- Alerts ---

func (s *MemoryStore) CreateAlert(_ context.Context, a *model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *a
	s.alerts[a.ID] = &copy
	return nil
}

func (s *MemoryStore) ListAlertsByUser(_ context.Context, userID string) ([]model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var alerts []model.Alert
	for _, a := range s.alerts {
		if a.UserID == userID {
			alerts = append(alerts, *a)
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].CreatedAt.After(alerts[j].CreatedAt) })
	return alerts, nil
}

func (s *MemoryStore) ListArmedAlerts(_ context.Context, productID string) ([]model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var alerts []model.Alert
	for _, a := range s.alerts {
		if a.ProductID == productID && a.TriggeredAt == nil {
			alerts = append(alerts, *a)
		}
	}
	return alerts, nil
}

func (s *MemoryStore) DeleteAlert(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	delete(s.alerts, id)
	return nil
}

func (s *MemoryStore) MarkAlertTriggered(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.alerts[id]; ok && a.TriggeredAt == nil {
		t := at
		a.TriggeredAt = &t
	}
	return nil
}

// --- Notifications ---

func (s *MemoryStore) CreateNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *n
	s.notifications[n.ID] = &copy
	return nil
}

func (s *MemoryStore) ListNotificationsByUser(_ context.Context, userID string) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []model.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			items = append(items, *n)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.Read = true
	return nil
}

func (s *MemoryStore) MarkAllNotificationsRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (s *MemoryStore) DeleteNotification(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

// --- KYC ---

func (s *MemoryStore) SubmitKYC(_ context.Context, rec *model.KYCRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *rec
	if existing, ok := s.kyc[rec.UserID]; ok {
		copy.ID = existing.ID
	}
	copy.ReviewedAt = nil
	s.kyc[rec.UserID] = &copy
	return nil
}

func (s *MemoryStore) GetKYCByUser(_ context.Context, userID string) (*model.KYCRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.kyc[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *rec
	return &copy, nil
}

func (s *MemoryStore) ListKYC(_ context.Context, status string) ([]model.KYCRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []model.KYCRecord
	for _, rec := range s.kyc {
		if status == "" || rec.Status == status {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].SubmittedAt.After(records[j].SubmittedAt) })
	return records, nil
}

func (s *MemoryStore) SetKYCStatus(_ context.Context, id, status string, at time.Time) (*model.KYCRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.kyc {
		if rec.ID == id {
			rec.Status = status
			t := at
			rec.ReviewedAt = &t
			copy := *rec
			return &copy, nil
		}
	}
	return nil, ErrNotFound
}

// --- Audit and analytics ---

func (s *MemoryStore) InsertAuditLog(_ context.Context, e *model.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, *e)
	return nil
}

func (s *MemoryStore) ListAuditLogs(_ context.Context, limit int) ([]model.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []model.AuditLog
	for i := len(s.audit) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, s.audit[i])
	}
	return entries, nil
}

func (s *MemoryStore) GetPlatformStats(_ context.Context) (model.PlatformStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.PlatformStats{
		Users:        int64(len(s.users)),
		Products:     int64(len(s.products)),
		Transactions: int64(len(s.transactions)),
	}

	type agg struct {
		count    int64
		turnover decimal.Decimal
	}
	byProduct := make(map[string]*agg)
	for _, t := range s.transactions {
		stats.Turnover = stats.Turnover.Add(t.TotalAmount)
		a, ok := byProduct[t.ProductID]
		if !ok {
			a = &agg{}
			byProduct[t.ProductID] = a
		}
		a.count++
		a.turnover = a.turnover.Add(t.TotalAmount)
	}

	for productID, a := range byProduct {
		pv := model.ProductVolume{ProductID: productID, TradeCount: a.count, Turnover: a.turnover}
		if p, ok := s.products[productID]; ok {
			pv.ProductName = p.Name
		}
		stats.TopProducts = append(stats.TopProducts, pv)
	}
	sort.Slice(stats.TopProducts, func(i, j int) bool {
		return stats.TopProducts[i].Turnover.GreaterThan(stats.TopProducts[j].Turnover)
	})
	if len(stats.TopProducts) > 5 {
		stats.TopProducts = stats.TopProducts[:5]
	}
	return stats, nil
}
