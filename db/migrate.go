package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Schema statements are written in the subset shared by MySQL and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS intents (
		id CHAR(36) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		taker_id VARCHAR(64),
		max_amount_usd DECIMAL(18,6) NOT NULL,
		description TEXT NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'live',
		amount_paid DECIMAL(18,6),
		amount_refunded DECIMAL(18,6),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_balances (
		wallet_id VARCHAR(128) PRIMARY KEY,
		amount DECIMAL(18,6) NOT NULL DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS negotiation_logs (
		id CHAR(26) PRIMARY KEY,
		intent_id CHAR(36) NOT NULL,
		session_id CHAR(26) NOT NULL,
		role VARCHAR(16) NOT NULL,
		round_number INT NOT NULL,
		content TEXT NOT NULL,
		decision VARCHAR(16) NOT NULL,
		declared_price DECIMAL(18,6),
		log_time TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Migrate creates the tables the negotiation backend reads and writes.
// Statements are idempotent so it is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("executing %q: %w", head(q), err)
		}
		logger.Debug("Executed successfully", zap.String("statement", head(q)))
	}
	logger.Info("Migration completed", zap.Int("statements", len(schema)))
	return nil
}

func head(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 40 {
		return q[:40] + "..."
	}
	return q
}
