package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"negotiation-backend/config"
	"negotiation-backend/model"
)

// Transferer moves funds between wallets and returns a transaction id.
type Transferer interface {
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal, memo string) (string, error)
}

type BalanceStore interface {
	GetBalance(ctx context.Context, walletID string) (decimal.Decimal, error)
	UpsertBalance(ctx context.Context, walletID string, amount decimal.Decimal) error
}

type SettlementRecorder interface {
	UpdateSettlement(ctx context.Context, id string, paid, refunded *decimal.Decimal) error
}

// Settler computes and executes the transfers a terminal outcome requires.
type Settler interface {
	Settle(ctx context.Context, intent *model.Intent, outcome model.Outcome, amounts *model.DeclaredAmounts) model.SettlementResult
}

// SettlementTrigger pays the counterparty and refunds the originator out of
// the escrow wallet. It is not idempotent: calling it twice moves money twice.
type SettlementTrigger struct {
	transferer Transferer
	balances   BalanceStore
	recorder   SettlementRecorder
	wallets    config.WalletsConfig
	logger     *zap.Logger
}

// NewSettlementTrigger wires the trigger. balances and recorder may be nil to
// skip bookkeeping.
func NewSettlementTrigger(transferer Transferer, balances BalanceStore, recorder SettlementRecorder, wallets config.WalletsConfig, logger *zap.Logger) *SettlementTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementTrigger{
		transferer: transferer,
		balances:   balances,
		recorder:   recorder,
		wallets:    wallets,
		logger:     logger,
	}
}

// Settle never returns an error; every failure is collected into the result.
//
// accepted with price P and budget B: pay P, refund max(B-P, 0).
// rejected: refund B.
func (t *SettlementTrigger) Settle(ctx context.Context, intent *model.Intent, outcome model.Outcome, amounts *model.DeclaredAmounts) model.SettlementResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "negotiation.settle")
	defer span.End()
	span.SetAttributes(attribute.String("intent.id", intent.ID), attribute.String("outcome", string(outcome)))

	res := model.SettlementResult{TransactionIDs: []string{}}
	var errs []error
	budget := intent.MaxAmount

	switch outcome {
	case model.OutcomeAccepted:
		switch {
		case !amounts.HasPrice():
			errs = append(errs, ErrNoAgreedPrice)
		case !amounts.Price.IsPositive():
			errs = append(errs, fmt.Errorf("agreed price %s is not positive", amounts.Price))
		default:
			price := *amounts.Price
			if txID, bookErr, err := t.transfer(ctx, t.wallets.Counterparty, price, "Payment for intent "+intent.ID); err != nil {
				errs = append(errs, fmt.Errorf("payment of %s: %w", price, err))
			} else {
				errs = appendErr(errs, bookErr)
				res.AmountPaid = &price
				res.TransactionIDs = append(res.TransactionIDs, txID)
			}

			refund := decimal.Max(budget.Sub(price), decimal.Zero)
			if refund.IsPositive() {
				if txID, bookErr, err := t.transfer(ctx, t.wallets.Originator, refund, "Refund for intent "+intent.ID); err != nil {
					errs = append(errs, fmt.Errorf("refund of %s: %w", refund, err))
				} else {
					errs = appendErr(errs, bookErr)
					res.AmountRefunded = &refund
					res.TransactionIDs = append(res.TransactionIDs, txID)
				}
			}
		}

	case model.OutcomeRejected:
		if budget.IsPositive() {
			if txID, bookErr, err := t.transfer(ctx, t.wallets.Originator, budget, "Full refund for intent "+intent.ID); err != nil {
				errs = append(errs, fmt.Errorf("refund of %s: %w", budget, err))
			} else {
				errs = appendErr(errs, bookErr)
				refund := budget
				res.AmountRefunded = &refund
				res.TransactionIDs = append(res.TransactionIDs, txID)
			}
		}

	default:
		errs = append(errs, fmt.Errorf("outcome %s does not settle", outcome))
	}

	for _, txID := range res.TransactionIDs {
		t.logger.Info("Settlement transfer executed", zap.String("intent_id", intent.ID), zap.String("tx_id", txID))
	}

	if t.recorder != nil && (res.AmountPaid != nil || res.AmountRefunded != nil) {
		if err := t.recorder.UpdateSettlement(ctx, intent.ID, res.AmountPaid, res.AmountRefunded); err != nil {
			errs = append(errs, fmt.Errorf("record settlement: %w", err))
		}
	}

	if len(errs) > 0 {
		res.Err = fmt.Errorf("%w: %w", ErrSettlementFailure, errors.Join(errs...))
		res.Error = res.Err.Error()
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "settlement failed")
		t.logger.Warn("Settlement incomplete", zap.String("intent_id", intent.ID), zap.Error(res.Err))
	}
	return res
}

// transfer moves amount from escrow to to, then books it. A bookkeeping
// failure is returned separately because the funds did move.
func (t *SettlementTrigger) transfer(ctx context.Context, to string, amount decimal.Decimal, memo string) (txID string, bookErr, err error) {
	from := t.wallets.Escrow
	txID, err = t.transferer.Transfer(ctx, from, to, amount, memo)
	if err != nil {
		return "", nil, err
	}
	if t.balances != nil {
		if err := t.book(ctx, from, to, amount); err != nil {
			bookErr = fmt.Errorf("bookkeeping for %s: %w", txID, err)
		}
	}
	return txID, bookErr, nil
}

func (t *SettlementTrigger) book(ctx context.Context, from, to string, amount decimal.Decimal) error {
	fromBal, err := t.balances.GetBalance(ctx, from)
	if err != nil {
		return err
	}
	if err := t.balances.UpsertBalance(ctx, from, fromBal.Sub(amount)); err != nil {
		return err
	}
	toBal, err := t.balances.GetBalance(ctx, to)
	if err != nil {
		return err
	}
	return t.balances.UpsertBalance(ctx, to, toBal.Add(amount))
}

func appendErr(errs []error, err error) []error {
	if err == nil {
		return errs
	}
	return append(errs, err)
}
