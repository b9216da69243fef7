package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/papertrade/api/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// --- Users ---

const userColumns = `id, name, email, password_hash, role, wallet_balance::TEXT, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var balance string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &balance, &u.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	u.WalletBalance, _ = decimal.NewFromString(balance)
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, wallet_balance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.WalletBalance.String(), u.CreatedAt,
	)
	return mapPgError(err)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id, name string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET name = $2 WHERE id = $1 RETURNING `+userColumns, id, name))
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) SetUserWallet(ctx context.Context, id string, balance decimal.Decimal) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET wallet_balance = $2::NUMERIC WHERE id = $1 RETURNING `+userColumns,
		id, balance.String()))
}

func (s *PostgresStore) SetUserRole(ctx context.Context, id, role string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Products ---

const productColumns = `id, name, category, price::TEXT, description,
	pe_ratio::TEXT, market_cap::TEXT, volume, created_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	var price, peRatio, marketCap string
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &price, &p.Description,
		&peRatio, &marketCap, &p.Volume, &p.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	p.Price, _ = decimal.NewFromString(price)
	p.PERatio, _ = decimal.NewFromString(peRatio)
	p.MarketCap, _ = decimal.NewFromString(marketCap)
	return &p, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *model.Product) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO products (id, name, category, price, description, pe_ratio, market_cap, volume, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6::NUMERIC, $7::NUMERIC, $8, $9)`,
		p.ID, p.Name, p.Category, p.Price.String(), p.Description,
		p.PERatio.String(), p.MarketCap.String(), p.Volume, p.CreatedAt,
	)
	return mapPgError(err)
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (s *PostgresStore) queryProducts(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY name`)
}

func (s *PostgresStore) ListProductsByCategory(ctx context.Context, category string) ([]model.Product, error) {
	return s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE category = $1 ORDER BY name`, category)
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p *model.Product) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products
		 SET name = $2, category = $3, description = $4,
		     pe_ratio = $5::NUMERIC, market_cap = $6::NUMERIC, volume = $7
		 WHERE id = $1`,
		p.ID, p.Name, p.Category, p.Description,
		p.PERatio.String(), p.MarketCap.String(), p.Volume,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateProductPrice(ctx context.Context, id string, price decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET price = $2::NUMERIC WHERE id = $1`, id, price.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks connectivity for the health endpoint.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}
