package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/papertrade/api/internal/model"
)

// --- Watchlist ---

func (s *PostgresStore) AddToWatchlist(ctx context.Context, userID, productID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO watchlist (user_id, product_id, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, product_id) DO NOTHING`,
		userID, productID, time.Now().UTC())
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListWatchlist(ctx context.Context, userID string) ([]model.WatchlistItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT w.user_id, w.product_id, w.created_at, `+prefixedProductColumns("pr")+`
		 FROM watchlist w
		 JOIN products pr ON pr.id = w.product_id
		 WHERE w.user_id = $1
		 ORDER BY w.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.WatchlistItem
	for rows.Next() {
		var item model.WatchlistItem
		var p model.Product
		var price, peRatio, marketCap string
		if err := rows.Scan(&item.UserID, &item.ProductID, &item.CreatedAt,
			&p.ID, &p.Name, &p.Category, &price, &p.Description,
			&peRatio, &marketCap, &p.Volume, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Price, _ = decimal.NewFromString(price)
		p.PERatio, _ = decimal.NewFromString(peRatio)
		p.MarketCap, _ = decimal.NewFromString(marketCap)
		item.Product = &p
		items = append(items, item)
	}
	return items, rows.Err()
}

func prefixedProductColumns(alias string) string {
	return alias + `.id, ` + alias + `.name, ` + alias + `.category, ` +
		alias + `.price::TEXT, ` + alias + `.description, ` +
		alias + `.pe_ratio::TEXT, ` + alias + `.market_cap::TEXT, ` +
		alias + `.volume, ` + alias + `.created_at`
}

func (s *PostgresStore) RemoveFromWatchlist(ctx context.Context, userID, productID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM watchlist WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Alerts ---

const alertColumns = `id, user_id, product_id, direction, threshold::TEXT, triggered_at, created_at`

func scanAlert(row pgx.Row) (*model.Alert, error) {
	var a model.Alert
	var threshold string
	if err := row.Scan(&a.ID, &a.UserID, &a.ProductID, &a.Direction,
		&threshold, &a.TriggeredAt, &a.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	a.Threshold, _ = decimal.NewFromString(threshold)
	return &a, nil
}

func (s *PostgresStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (id, user_id, product_id, direction, threshold, triggered_at, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7)`,
		a.ID, a.UserID, a.ProductID, a.Direction, a.Threshold.String(), a.TriggeredAt, a.CreatedAt)
	return mapPgError(err)
}

func (s *PostgresStore) queryAlerts(ctx context.Context, query string, args ...any) ([]model.Alert, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func (s *PostgresStore) ListAlertsByUser(ctx context.Context, userID string) ([]model.Alert, error) {
	return s.queryAlerts(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (s *PostgresStore) ListArmedAlerts(ctx context.Context, productID string) ([]model.Alert, error) {
	return s.queryAlerts(ctx,
		`SELECT `+alertColumns+` FROM alerts
		 WHERE product_id = $1 AND triggered_at IS NULL`, productID)
}

func (s *PostgresStore) DeleteAlert(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM alerts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAlertTriggered(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE alerts SET triggered_at = $2 WHERE id = $1 AND triggered_at IS NULL`, id, at)
	return err
}

// --- Notifications ---

func (s *PostgresStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, type, message, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.UserID, n.Type, n.Message, n.Read, n.CreatedAt)
	return mapPgError(err)
}

func (s *PostgresStore) ListNotificationsByUser(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, type, message, read, created_at
		 FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1`, userID)
	return err
}

func (s *PostgresStore) DeleteNotification(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- KYC ---

const kycColumns = `id, user_id, pan, phone, address, status, submitted_at, reviewed_at`

func scanKYC(row pgx.Row) (*model.KYCRecord, error) {
	var rec model.KYCRecord
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.PAN, &rec.Phone, &rec.Address,
		&rec.Status, &rec.SubmittedAt, &rec.ReviewedAt); err != nil {
		return nil, mapPgError(err)
	}
	return &rec, nil
}

func (s *PostgresStore) SubmitKYC(ctx context.Context, rec *model.KYCRecord) error {
	// Resubmission replaces the previous record and resets review state.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kyc_records (id, user_id, pan, phone, address, status, submitted_at, reviewed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
		 ON CONFLICT (user_id) DO UPDATE SET
		     pan = EXCLUDED.pan, phone = EXCLUDED.phone, address = EXCLUDED.address,
		     status = EXCLUDED.status, submitted_at = EXCLUDED.submitted_at, reviewed_at = NULL`,
		rec.ID, rec.UserID, rec.PAN, rec.Phone, rec.Address, rec.Status, rec.SubmittedAt)
	return mapPgError(err)
}

func (s *PostgresStore) GetKYCByUser(ctx context.Context, userID string) (*model.KYCRecord, error) {
	return scanKYC(s.pool.QueryRow(ctx,
		`SELECT `+kycColumns+` FROM kyc_records WHERE user_id = $1`, userID))
}

func (s *PostgresStore) ListKYC(ctx context.Context, status string) ([]model.KYCRecord, error) {
	query := `SELECT ` + kycColumns + ` FROM kyc_records ORDER BY submitted_at DESC`
	args := []any{}
	if status != "" {
		query = `SELECT ` + kycColumns + ` FROM kyc_records WHERE status = $1 ORDER BY submitted_at DESC`
		args = append(args, status)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.KYCRecord
	for rows.Next() {
		rec, err := scanKYC(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) SetKYCStatus(ctx context.Context, id, status string, at time.Time) (*model.KYCRecord, error) {
	return scanKYC(s.pool.QueryRow(ctx,
		`UPDATE kyc_records SET status = $2, reviewed_at = $3
		 WHERE id = $1 RETURNING `+kycColumns, id, status, at))
}

// --- Audit and analytics ---

func (s *PostgresStore) InsertAuditLog(ctx context.Context, e *model.AuditLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, actor_id, action, entity, entity_id, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.ActorID, e.Action, e.Entity, e.EntityID, e.Detail, e.CreatedAt)
	return err
}

func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int) ([]model.AuditLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, actor_id, action, entity, entity_id, detail, created_at
		 FROM audit_logs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.AuditLog
	for rows.Next() {
		var e model.AuditLog
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) GetPlatformStats(ctx context.Context) (model.PlatformStats, error) {
	var stats model.PlatformStats
	var turnoverS string

	err := s.pool.QueryRow(ctx,
		`SELECT
		    (SELECT COUNT(*) FROM users),
		    (SELECT COUNT(*) FROM products),
		    (SELECT COUNT(*) FROM transactions),
		    (SELECT COALESCE(SUM(total_amount), 0) FROM transactions)::TEXT`).
		Scan(&stats.Users, &stats.Products, &stats.Transactions, &turnoverS)
	if err != nil {
		return model.PlatformStats{}, err
	}
	stats.Turnover, _ = decimal.NewFromString(turnoverS)

	rows, err := s.pool.Query(ctx,
		`SELECT t.product_id, pr.name, COUNT(*),
		        COALESCE(SUM(t.total_amount), 0)::TEXT
		 FROM transactions t
		 JOIN products pr ON pr.id = t.product_id
		 GROUP BY t.product_id, pr.name
		 ORDER BY SUM(t.total_amount) DESC
		 LIMIT 5`)
	if err != nil {
		return model.PlatformStats{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var pv model.ProductVolume
		var turnover string
		if err := rows.Scan(&pv.ProductID, &pv.ProductName, &pv.TradeCount, &turnover); err != nil {
			return model.PlatformStats{}, err
		}
		pv.Turnover, _ = decimal.NewFromString(turnover)
		stats.TopProducts = append(stats.TopProducts, pv)
	}
	return stats, rows.Err()
}
