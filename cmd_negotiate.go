package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"negotiation-backend/model"
	"negotiation-backend/usecase"
)

var (
	intentID   string
	jsonOutput bool
	protocol   string
)

var negotiateCmd = &cobra.Command{
	Use:   "negotiate",
	Short: "Run a full negotiation for an intent and print its events",
	Long: `Runs a negotiation against the configured seller and buyer oracle endpoints
and prints every event until the session ends.

Example:
  negotiator negotiate --intent-id 6f1c...`,
	RunE: runNegotiate,
}

var initiateCmd = &cobra.Command{
	Use:   "initiate",
	Short: "Run the opening exchange for an intent",
	Long:  `Runs the seller's opening turn and the buyer's first response and prints both.`,
	RunE:  runInitiate,
}

func init() {
	for _, c := range []*cobra.Command{negotiateCmd, initiateCmd} {
		c.Flags().StringVar(&intentID, "intent-id", "", "intent to negotiate")
		c.Flags().BoolVar(&jsonOutput, "json", false, "print raw JSON")
		c.Flags().StringVar(&protocol, "protocol", "", "oracle transport, http or a2a (overrides negotiation.protocol)")
		_ = c.MarkFlagRequired("intent-id")
	}
}

// applyProtocolFlag overrides the configured transport with --protocol.
func applyProtocolFlag() error {
	if protocol == "" {
		return nil
	}
	cfg.Negotiation.Protocol = protocol
	return cfg.Validate()
}

func runNegotiate(cmd *cobra.Command, args []string) error {
	if err := applyProtocolFlag(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stream := usecase.NewEventStream(0)
	var result model.NegotiationResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result = a.negotiations.Negotiate(gctx, intentID, stream)
		return nil
	})
	g.Go(func() error {
		for ev := range stream.Events() {
			printEvent(cmd, ev)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if result.Err != nil {
		return fmt.Errorf("negotiation failed: %w", result.Err)
	}
	return nil
}

func printEvent(cmd *cobra.Command, ev model.Event) {
	out := cmd.OutOrStdout()
	if jsonOutput {
		b, _ := json.Marshal(ev)
		fmt.Fprintln(out, string(b))
		return
	}
	switch ev.Type {
	case model.EventStart:
		fmt.Fprintf(out, "Negotiation for %s started (max %d rounds)\n", ev.IntentID, ev.MaxRounds)
	case model.EventThinking:
		fmt.Fprintf(out, "\n[round %d] %s:\n", ev.Round, ev.Role)
	case model.EventPartial:
		fmt.Fprint(out, ev.Content)
	case model.EventDecision:
		line := fmt.Sprintf("\n-> %s", ev.Decision)
		if ev.Amounts.HasPrice() {
			line += fmt.Sprintf(" at $%s", ev.Amounts.Price.StringFixed(2))
		}
		fmt.Fprintln(out, line)
	case model.EventComplete:
		fmt.Fprintf(out, "\nOutcome: %s after %d round(s)", ev.Outcome, ev.RoundsUsed)
		if ev.DecidingRole != "" {
			fmt.Fprintf(out, ", decided by %s", ev.DecidingRole)
		}
		fmt.Fprintln(out)
		printSettlement(cmd, ev.Settlement)
	case model.EventError:
		fmt.Fprintf(out, "\nError (%s): %s\n", ev.ErrorKind, ev.Message)
	}
}

func printSettlement(cmd *cobra.Command, s *model.SettlementResult) {
	if s == nil {
		return
	}
	out := cmd.OutOrStdout()
	if s.AmountPaid != nil {
		fmt.Fprintf(out, "Paid:     $%s\n", s.AmountPaid.StringFixed(2))
	}
	if s.AmountRefunded != nil {
		fmt.Fprintf(out, "Refunded: $%s\n", s.AmountRefunded.StringFixed(2))
	}
	for _, id := range s.TransactionIDs {
		fmt.Fprintf(out, "Tx:       %s\n", id)
	}
	if s.Error != "" {
		fmt.Fprintf(out, "Settlement error: %s\n", s.Error)
	}
}

func runInitiate(cmd *cobra.Command, args []string) error {
	if err := applyProtocolFlag(); err != nil {
		return err
	}
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.negotiations.Initiate(cmd.Context(), intentID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(out, "SELLER:\n%s\n\n", res.SellerPitch)
	if res.BuyerResponse != "" {
		fmt.Fprintf(out, "BUYER:\n%s\n\n", res.BuyerResponse)
	}
	fmt.Fprintf(out, "Buyer decision: %s\nOutcome: %s\n", res.BuyerDecision, res.Outcome)
	printSettlement(cmd, res.Settlement)
	return nil
}
