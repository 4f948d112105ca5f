// Command ledgercheck reports products whose stock does not match the last
// movement recorded in the stock ledger.
package main

import (
	"context"
	"os"

	"shopcore/internal/config"
	"shopcore/internal/database"

	"github.com/rs/zerolog/log"
)

const driftQuery = `
	SELECT p.id, p.sku, p.stock_quantity, COALESCE(l.new_quantity, 0)
	FROM products p
	LEFT JOIN LATERAL (
		SELECT new_quantity FROM stock_ledger
		WHERE product_id = p.id
		ORDER BY seq DESC
		LIMIT 1
	) l ON TRUE
	WHERE p.stock_quantity <> COALESCE(l.new_quantity, 0)
	ORDER BY p.id`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := config.NewLogger(cfg.Logger)

	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, driftQuery)
	if err != nil {
		logger.Fatal().Err(err).Msg("drift query failed")
	}
	defer rows.Close()

	drifted := 0
	for rows.Next() {
		var (
			id            int64
			sku           string
			stock, ledger int
		)
		if err := rows.Scan(&id, &sku, &stock, &ledger); err != nil {
			logger.Fatal().Err(err).Msg("failed to scan row")
		}
		drifted++
		logger.Warn().
			Int64("product_id", id).
			Str("sku", sku).
			Int("stock_quantity", stock).
			Int("ledger_quantity", ledger).
			Msg("stock does not match ledger")
	}
	if err := rows.Err(); err != nil {
		logger.Fatal().Err(err).Msg("failed to read rows")
	}

	if drifted > 0 {
		logger.Error().Int("products", drifted).Msg("ledger check failed")
		os.Exit(1)
	}
	logger.Info().Msg("every product matches its ledger")
}
