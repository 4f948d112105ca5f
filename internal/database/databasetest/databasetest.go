// Package databasetest starts disposable PostgreSQL containers for tests.
package databasetest

import (
	"context"
	"testing"
	"time"

	"shopcore/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// NewPool starts a PostgreSQL container, applies the schema and returns a
// pool. The container is terminated when the test finishes.
func NewPool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)
	poolConfig.MaxConns = 20

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	require.NoError(t, database.Migrate(ctx, pool))

	t.Cleanup(func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	})

	return pool
}

// Truncate empties every table. TRUNCATE bypasses the ledger's row triggers.
func Truncate(t testing.TB, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE coupon_usages, deal_usages, order_items, orders, stock_ledger,
			coupons, deals, products, categories RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err)
}

// SeedCategory inserts a category and returns its id.
func SeedCategory(t testing.TB, pool *pgxpool.Pool, name string) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO categories (name) VALUES ($1) RETURNING id`, name,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// ProductSeed describes a product row to insert.
type ProductSeed struct {
	SKU        string
	Name       string
	Price      string
	Stock      int
	Inactive   bool
	CategoryID *int64
}

// SeedProduct inserts a product and returns its id.
func SeedProduct(t testing.TB, pool *pgxpool.Pool, p ProductSeed) int64 {
	t.Helper()

	if p.Name == "" {
		p.Name = p.SKU
	}
	var id int64
	err := pool.QueryRow(context.Background(), `
		INSERT INTO products (sku, name, price, stock_quantity, is_active, category_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, p.SKU, p.Name, decimal.RequireFromString(p.Price), p.Stock, !p.Inactive, p.CategoryID).Scan(&id)
	require.NoError(t, err)
	return id
}

// StockOf reads a product's current stock.
func StockOf(t testing.TB, pool *pgxpool.Pool, productID int64) int {
	t.Helper()

	var qty int
	err := pool.QueryRow(context.Background(),
		`SELECT stock_quantity FROM products WHERE id = $1`, productID,
	).Scan(&qty)
	require.NoError(t, err)
	return qty
}

// CountRows returns the number of rows in table matching the optional where clause.
func CountRows(t testing.TB, pool *pgxpool.Pool, table, where string, args ...any) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}
