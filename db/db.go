package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"negotiation-backend/config"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// DSN builds the driver connection string for cfg.
// user:password@tcp(127.0.0.1:3306)/negotiation_db
func DSN(cfg config.DatabaseConfig) string {
	if cfg.Driver == DriverSQLite {
		path := cfg.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		return path
	}
	return fmt.Sprintf("%s:%s@%s/%s?parseTime=true&loc=Local", cfg.User, cfg.Password, cfg.Host, cfg.Name)
}

// Open connects to the configured database and pings it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		// a single connection keeps an in-memory database alive and serializes writers
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	return db, nil
}
