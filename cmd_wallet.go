package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"negotiation-backend/config"
	"negotiation-backend/dao"
	"negotiation-backend/model"
	"negotiation-backend/pkg/locus"
	"negotiation-backend/usecase"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Show the configured settlement wallets",
	Long: `Prints the booked balance of the escrow, counterparty and originator wallets.
In locus mode the live payment context reported by Locus is printed as well.`,
	RunE: runWallet,
}

type balanceGetter interface {
	GetBalance(ctx context.Context, walletID string) (*model.WalletBalance, error)
}

type paymentContexter interface {
	PaymentContext(ctx context.Context) (string, error)
}

func runWallet(cmd *cobra.Command, args []string) error {
	conn, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	var payments paymentContexter
	if cfg.Settlement.Mode == config.SettlementLocus {
		payments = locus.NewClient(cfg.Settlement.LocusURL, cfg.Settlement.APIKey, cfg.Settlement.Timeout, logger)
	}
	wallets := usecase.NewWalletUsecase(dao.NewBalanceRepository(conn, cfg.Database.Driver))
	return reportWallets(cmd.Context(), cmd.OutOrStdout(), wallets, cfg.Settlement.Wallets, payments)
}

// reportWallets writes one line per configured wallet; payments may be nil.
func reportWallets(ctx context.Context, out io.Writer, balances balanceGetter, wallets config.WalletsConfig, payments paymentContexter) error {
	rows := []struct{ label, id string }{
		{"escrow", wallets.Escrow},
		{"counterparty", wallets.Counterparty},
		{"originator", wallets.Originator},
	}
	for _, row := range rows {
		b, err := balances.GetBalance(ctx, row.id)
		switch {
		case errors.Is(err, usecase.ErrWalletNotFound):
			fmt.Fprintf(out, "%-13s %s  (no bookings)\n", row.label, row.id)
		case err != nil:
			return fmt.Errorf("balance of %s wallet: %w", row.label, err)
		default:
			fmt.Fprintf(out, "%-13s %s  $%s\n", row.label, row.id, b.Amount.StringFixed(2))
		}
	}

	if payments == nil {
		return nil
	}
	summary, err := payments.PaymentContext(ctx)
	if err != nil {
		return fmt.Errorf("locus payment context: %w", err)
	}
	fmt.Fprintf(out, "\nLocus payment context:\n%s\n", summary)
	return nil
}
