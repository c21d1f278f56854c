package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"negotiation-backend/config"
	"negotiation-backend/dao"
	"negotiation-backend/db"
	"negotiation-backend/pkg/a2a"
	"negotiation-backend/pkg/ledger"
	"negotiation-backend/pkg/locus"
	"negotiation-backend/pkg/oracle"
	"negotiation-backend/usecase"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	db           *sql.DB
	intentRepo   *dao.IntentRepository
	balanceRepo  *dao.BalanceRepository
	logRepo      *dao.NegotiationLogRepository
	negotiations *usecase.NegotiationUsecase
}

// openDB connects to the configured database. A SQLite database is migrated
// on open since it is usually a fresh local file.
func openDB(ctx context.Context) (*sql.DB, error) {
	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.Driver == db.DriverSQLite {
		if err := db.Migrate(ctx, conn, logger); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func newApp(ctx context.Context) (*app, error) {
	conn, err := openDB(ctx)
	if err != nil {
		return nil, err
	}

	a := &app{
		db:          conn,
		intentRepo:  dao.NewIntentRepository(conn),
		balanceRepo: dao.NewBalanceRepository(conn, cfg.Database.Driver),
		logRepo:     dao.NewNegotiationLogRepository(conn),
	}

	transferer, err := newTransferer(cfg.Settlement)
	if err != nil {
		conn.Close()
		return nil, err
	}
	executor := usecase.NewOracleTurnExecutor(
		newOracleStreamer(cfg.Negotiation.Protocol),
		cfg.Negotiation.SellerURL,
		cfg.Negotiation.BuyerURL,
		cfg.Negotiation.TurnTimeout,
		logger,
	)
	settler := usecase.NewSettlementTrigger(transferer, a.balanceRepo, a.intentRepo, cfg.Settlement.Wallets, logger)
	a.negotiations = usecase.NewNegotiationUsecase(a.intentRepo, executor, settler, a.logRepo, cfg.Negotiation.MaxRounds, logger)
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// newOracleStreamer picks the transport used to reach the role endpoints.
func newOracleStreamer(protocol string) usecase.OracleStreamer {
	if protocol == config.ProtocolA2A {
		return a2a.NewClient(&http.Client{}, logger)
	}
	return oracle.NewClient(&http.Client{})
}

func newTransferer(sc config.SettlementConfig) (usecase.Transferer, error) {
	switch sc.Mode {
	case config.SettlementDryRun:
		return ledger.NewDryRun(logger), nil
	case config.SettlementLocus:
		return locus.NewClient(sc.LocusURL, sc.APIKey, sc.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown settlement mode %q", sc.Mode)
	}
}
