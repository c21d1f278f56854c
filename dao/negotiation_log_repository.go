package dao

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"negotiation-backend/model"
)

type NegotiationLogRepository struct {
	db *sql.DB
}

func NewNegotiationLogRepository(db *sql.DB) *NegotiationLogRepository {
	return &NegotiationLogRepository{db: db}
}

// AppendLogs writes a finished session's turns in one transaction.
func (r *NegotiationLogRepository) AppendLogs(ctx context.Context, logs []model.NegotiationLog) error {
	if len(logs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO negotiation_logs (id, intent_id, session_id, role, round_number, content, decision, declared_price, log_time) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range logs {
		if _, err := stmt.ExecContext(ctx, l.ID, l.IntentID, l.SessionID, string(l.Role), l.Round, l.Content, string(l.Decision), nullable(l.DeclaredPrice), l.LogTime); err != nil {
			return fmt.Errorf("insert log %s: %w", l.ID, err)
		}
	}
	return tx.Commit()
}

func (r *NegotiationLogRepository) GetLogsByIntentID(ctx context.Context, intentID string) ([]model.NegotiationLog, error) {
	query := `SELECT id, intent_id, session_id, role, round_number, content, decision, declared_price, log_time
              FROM negotiation_logs
              WHERE intent_id = ?
              ORDER BY log_time ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, intentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []model.NegotiationLog
	for rows.Next() {
		var l model.NegotiationLog
		var role, decision string
		var price decimal.NullDecimal
		if err := rows.Scan(&l.ID, &l.IntentID, &l.SessionID, &role, &l.Round, &l.Content, &decision, &price, &l.LogTime); err != nil {
			return nil, err
		}
		l.Role = model.Role(role)
		l.Decision = model.Decision(decision)
		if price.Valid {
			p := price.Decimal
			l.DeclaredPrice = &p
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
