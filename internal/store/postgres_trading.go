package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/papertrade/api/internal/model"
)

// ExecuteBuy runs the purchase flow inside one database transaction.
// The user row is locked FOR UPDATE so concurrent buys by the same user
// serialize and cannot both spend the same balance.
func (s *PostgresStore) ExecuteBuy(ctx context.Context, userID, productID string, units decimal.Decimal) (*model.Transaction, decimal.Decimal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer tx.Rollback(ctx)

	var priceS string
	err = tx.QueryRow(ctx,
		`SELECT price::TEXT FROM products WHERE id = $1`, productID).Scan(&priceS)
	if err != nil {
		return nil, decimal.Zero, mapPgError(err)
	}
	price, _ := decimal.NewFromString(priceS)

	var balanceS string
	err = tx.QueryRow(ctx,
		`SELECT wallet_balance::TEXT FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balanceS)
	if err != nil {
		return nil, decimal.Zero, mapPgError(err)
	}
	balance, _ := decimal.NewFromString(balanceS)

	total := units.Mul(price)
	if balance.LessThan(total) {
		return nil, decimal.Zero, ErrInsufficientFunds
	}

	entry := &model.Transaction{
		ID:           uuid.New().String(),
		UserID:       userID,
		ProductID:    productID,
		Type:         model.SideBuy,
		Units:        units,
		PricePerUnit: price,
		TotalAmount:  total,
		CreatedAt:    time.Now().UTC(),
	}
	if err := insertTransaction(ctx, tx, entry); err != nil {
		return nil, decimal.Zero, err
	}

	newBalance := balance.Sub(total)
	if _, err := tx.Exec(ctx,
		`UPDATE users SET wallet_balance = $2::NUMERIC WHERE id = $1`,
		userID, newBalance.String()); err != nil {
		return nil, decimal.Zero, err
	}

	// Weighted-average cost upsert. Assignments in DO UPDATE all read the
	// pre-update row, so average_price may reference portfolios.quantity.
	if _, err := tx.Exec(ctx,
		`INSERT INTO portfolios (user_id, product_id, quantity, average_price)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC)
		 ON CONFLICT (user_id, product_id) DO UPDATE SET
		     average_price = (portfolios.quantity * portfolios.average_price
		                      + EXCLUDED.quantity * EXCLUDED.average_price)
		                     / (portfolios.quantity + EXCLUDED.quantity),
		     quantity = portfolios.quantity + EXCLUDED.quantity`,
		userID, productID, units.String(), price.String()); err != nil {
		return nil, decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, decimal.Zero, err
	}
	return entry, newBalance, nil
}

// ExecuteSell credits the wallet at the current price and decrements the
// portfolio row. The position row is locked FOR UPDATE; when the holding
// reaches zero the row is kept but zeroed.
func (s *PostgresStore) ExecuteSell(ctx context.Context, userID, productID string, units decimal.Decimal) (*model.Transaction, decimal.Decimal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer tx.Rollback(ctx)

	var priceS string
	err = tx.QueryRow(ctx,
		`SELECT price::TEXT FROM products WHERE id = $1`, productID).Scan(&priceS)
	if err != nil {
		return nil, decimal.Zero, mapPgError(err)
	}
	price, _ := decimal.NewFromString(priceS)

	var balanceS string
	err = tx.QueryRow(ctx,
		`SELECT wallet_balance::TEXT FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balanceS)
	if err != nil {
		return nil, decimal.Zero, mapPgError(err)
	}
	balance, _ := decimal.NewFromString(balanceS)

	var quantityS string
	err = tx.QueryRow(ctx,
		`SELECT quantity::TEXT FROM portfolios
		 WHERE user_id = $1 AND product_id = $2 FOR UPDATE`,
		userID, productID).Scan(&quantityS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, decimal.Zero, ErrInsufficientHoldings
	}
	if err != nil {
		return nil, decimal.Zero, err
	}
	held, _ := decimal.NewFromString(quantityS)
	if held.LessThan(units) {
		return nil, decimal.Zero, ErrInsufficientHoldings
	}

	total := units.Mul(price)
	entry := &model.Transaction{
		ID:           uuid.New().String(),
		UserID:       userID,
		ProductID:    productID,
		Type:         model.SideSell,
		Units:        units,
		PricePerUnit: price,
		TotalAmount:  total,
		CreatedAt:    time.Now().UTC(),
	}
	if err := insertTransaction(ctx, tx, entry); err != nil {
		return nil, decimal.Zero, err
	}

	newBalance := balance.Add(total)
	if _, err := tx.Exec(ctx,
		`UPDATE users SET wallet_balance = $2::NUMERIC WHERE id = $1`,
		userID, newBalance.String()); err != nil {
		return nil, decimal.Zero, err
	}

	newQuantity := held.Sub(units)
	if newQuantity.IsZero() {
		// Fully sold: zero the row rather than deleting it.
		_, err = tx.Exec(ctx,
			`UPDATE portfolios SET quantity = 0, average_price = 0
			 WHERE user_id = $1 AND product_id = $2`, userID, productID)
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE portfolios SET quantity = $3::NUMERIC
			 WHERE user_id = $1 AND product_id = $2`,
			userID, productID, newQuantity.String())
	}
	if err != nil {
		return nil, decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, decimal.Zero, err
	}
	return entry, newBalance, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, e *model.Transaction) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO transactions (id, user_id, product_id, type, units, price_per_unit, total_amount, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)`,
		e.ID, e.UserID, e.ProductID, e.Type,
		e.Units.String(), e.PricePerUnit.String(), e.TotalAmount.String(),
		e.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, product_id, type,
		        units::TEXT, price_per_unit::TEXT, total_amount::TEXT, created_at
		 FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.Transaction
	for rows.Next() {
		var e model.Transaction
		var unitsS, priceS, totalS string
		if err := rows.Scan(&e.ID, &e.UserID, &e.ProductID, &e.Type,
			&unitsS, &priceS, &totalS, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Units, _ = decimal.NewFromString(unitsS)
		e.PricePerUnit, _ = decimal.NewFromString(priceS)
		e.TotalAmount, _ = decimal.NewFromString(totalS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) GetTransactionStats(ctx context.Context, userID string) (model.TransactionStats, error) {
	var stats model.TransactionStats
	var investedS, proceedsS string

	err := s.pool.QueryRow(ctx,
		`SELECT
		    COUNT(*) FILTER (WHERE type = 'buy'),
		    COUNT(*) FILTER (WHERE type = 'sell'),
		    COALESCE(SUM(total_amount) FILTER (WHERE type = 'buy'), 0)::TEXT,
		    COALESCE(SUM(total_amount) FILTER (WHERE type = 'sell'), 0)::TEXT
		 FROM transactions WHERE user_id = $1`, userID).
		Scan(&stats.BuyCount, &stats.SellCount, &investedS, &proceedsS)
	if err != nil {
		return model.TransactionStats{}, err
	}

	stats.TotalInvested, _ = decimal.NewFromString(investedS)
	stats.TotalProceeds, _ = decimal.NewFromString(proceedsS)
	stats.NetFlow = stats.TotalProceeds.Sub(stats.TotalInvested)
	return stats, nil
}

func (s *PostgresStore) GetPositions(ctx context.Context, userID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.user_id, p.product_id, pr.name, pr.category,
		        p.quantity::TEXT, p.average_price::TEXT, pr.price::TEXT
		 FROM portfolios p
		 JOIN products pr ON pr.id = p.product_id
		 WHERE p.user_id = $1 AND p.quantity > 0
		 ORDER BY pr.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var p model.Position
		var quantityS, avgS, priceS string
		if err := rows.Scan(&p.UserID, &p.ProductID, &p.ProductName, &p.Category,
			&quantityS, &avgS, &priceS); err != nil {
			return nil, err
		}
		p.Quantity, _ = decimal.NewFromString(quantityS)
		p.AveragePrice, _ = decimal.NewFromString(avgS)
		p.CurrentPrice, _ = decimal.NewFromString(priceS)
		p.CurrentValue = p.Quantity.Mul(p.CurrentPrice)
		p.InvestedCost = p.Quantity.Mul(p.AveragePrice)
		p.UnrealizedPnL = p.CurrentValue.Sub(p.InvestedCost)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// --- Orders ---

func (s *PostgresStore) CreateOrder(ctx context.Context, o *model.Order) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (id, user_id, product_id, side, order_type, units, limit_price, status, created_at, filled_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8, $9, $10)`,
		o.ID, o.UserID, o.ProductID, o.Side, o.OrderType,
		o.Units.String(), o.LimitPrice.String(), o.Status, o.CreatedAt, o.FilledAt,
	)
	return mapPgError(err)
}

const orderColumns = `id, user_id, product_id, side, order_type,
	units::TEXT, limit_price::TEXT, status, created_at, filled_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var unitsS, limitS string
	if err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.Side, &o.OrderType,
		&unitsS, &limitS, &o.Status, &o.CreatedAt, &o.FilledAt); err != nil {
		return nil, mapPgError(err)
	}
	o.Units, _ = decimal.NewFromString(unitsS)
	o.LimitPrice, _ = decimal.NewFromString(limitS)
	return &o, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return scanOrder(s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (s *PostgresStore) ListOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) SetOrderStatus(ctx context.Context, id, status string, filledAt *time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = $2, filled_at = $3 WHERE id = $1`, id, status, filledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
