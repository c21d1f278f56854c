package dao

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"negotiation-backend/model"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

type IntentRepository struct {
	db *sql.DB
}

func NewIntentRepository(db *sql.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

const intentColumns = `id, user_id, taker_id, max_amount_usd, description, status, amount_paid, amount_refunded, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner) (*model.Intent, error) {
	var intent model.Intent
	var takerID sql.NullString
	var status string

	if err := row.Scan(&intent.ID, &intent.UserID, &takerID, &intent.MaxAmount, &intent.Description, &status, &intent.AmountPaid, &intent.AmountRefunded, &intent.CreatedAt); err != nil {
		return nil, err
	}
	if takerID.Valid {
		intent.TakerID = &takerID.String
	}
	intent.Status = model.IntentStatus(status)
	return &intent, nil
}

func (r *IntentRepository) GetAll(ctx context.Context) ([]model.Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM intents ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []model.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, *intent)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return intents, nil
}

// GetByID returns ErrNotFound when no intent has the id.
func (r *IntentRepository) GetByID(ctx context.Context, id string) (*model.Intent, error) {
	query := `SELECT ` + intentColumns + ` FROM intents WHERE id = ?`
	intent, err := scanIntent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return intent, nil
}

func (r *IntentRepository) Insert(ctx context.Context, intent *model.Intent) error {
	query := `INSERT INTO intents (id, user_id, taker_id, max_amount_usd, description, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, intent.ID, intent.UserID, intent.TakerID, intent.MaxAmount, intent.Description, string(intent.Status), intent.CreatedAt)
	return err
}

func (r *IntentRepository) UpdateStatus(ctx context.Context, id string, status model.IntentStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE intents SET status = ? WHERE id = ?`, string(status), id)
	return err
}

// UpdateSettlement stores what settlement actually moved. Nil amounts are written as NULL.
func (r *IntentRepository) UpdateSettlement(ctx context.Context, id string, paid, refunded *decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `UPDATE intents SET amount_paid = ?, amount_refunded = ? WHERE id = ?`, nullable(paid), nullable(refunded), id)
	return err
}

func nullable(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}
