package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"negotiation-backend/controller"
	"negotiation-backend/dao"
	"negotiation-backend/model"
	"negotiation-backend/pkg/gemini"
	"negotiation-backend/usecase"
)

var (
	agentRole string
	agentPort string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run a Gemini-backed oracle endpoint for one role",
	Long: `Hosts POST /negotiate for the seller or buyer role. Each request is answered
with a server-sent event stream of text frames and a final decision frame.
The same agent is reachable over A2A: its card is published at
/.well-known/agent-card.json and message/send is served on POST /a2a.

Example:
  negotiator agent --role buyer --port 8000
  negotiator agent --role seller --port 8001`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().StringVar(&agentRole, "role", "", "role to play: buyer or seller")
	agentCmd.Flags().StringVar(&agentPort, "port", "", "listen port (defaults to 8000 for buyer, 8001 for seller)")
	_ = agentCmd.MarkFlagRequired("role")
}

func runAgent(cmd *cobra.Command, args []string) error {
	role := model.Role(agentRole)
	if !role.Valid() {
		return fmt.Errorf("--role must be buyer or seller, got %q", agentRole)
	}
	port := agentPort
	if port == "" {
		port = "8000"
		if role == model.RoleSeller {
			port = "8001"
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	llm, err := gemini.NewClient(ctx, cfg.Oracle.APIKey, cfg.Oracle.Model)
	if err != nil {
		return err
	}

	agentLogger := logger.With(zap.String("agent", string(role)))
	agent, err := usecase.NewAgentUsecase(role, dao.NewIntentRepository(conn), llm, cfg.Oracle.SellerFloorRate, agentLogger)
	if err != nil {
		return err
	}
	handler := controller.NewAgentRouter(controller.NewAgentController(agent, agentLogger), agentLogger)
	return listenAndServe(ctx, ":"+port, handler)
}
