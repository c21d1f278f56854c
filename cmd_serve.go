package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"negotiation-backend/controller"
	"negotiation-backend/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the observer HTTP API",
	Long: `Serves the intents, negotiation stream, initiate, logs and wallet endpoints.

Endpoints:
  GET  /intents
  POST /intents
  GET  /intents/{id}
  GET  /negotiations/{intentID}/stream
  POST /negotiations/{intentID}/initiate
  GET  /negotiations/{intentID}/logs
  GET  /wallets/{walletID}/balance
  POST /wallets/{walletID}/deposit`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	intents := usecase.NewIntentUsecase(a.intentRepo, a.logRepo)
	wallets := usecase.NewWalletUsecase(a.balanceRepo)
	handler := controller.NewRouter(
		controller.NewIntentController(intents, logger),
		controller.NewNegotiationController(a.negotiations, intents, logger),
		controller.NewWalletController(wallets),
		logger,
	)
	return listenAndServe(ctx, ":"+cfg.Server.Port, handler)
}

// listenAndServe runs srv until ctx is done, then shuts it down gracefully.
func listenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
