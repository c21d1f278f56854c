package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"negotiation-backend/pkg/a2a"
)

// NewRouter mounts the observer API.
func NewRouter(intents *IntentController, negotiations *NegotiationController, wallets *WalletController, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, requestLogger(logger), cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/intents", func(api chi.Router) {
		api.Get("/", intents.GetIntents)
		api.Post("/", intents.CreateIntent)
		api.Get("/{intentID}", intents.GetIntent)
	})
	r.Route("/negotiations/{intentID}", func(api chi.Router) {
		api.Get("/stream", negotiations.Stream)
		api.Post("/initiate", negotiations.Initiate)
		api.Get("/logs", negotiations.GetLogs)
	})
	r.Route("/wallets/{walletID}", func(api chi.Router) {
		api.Get("/balance", wallets.GetBalance)
		api.Post("/deposit", wallets.Deposit)
	})
	return r
}

// NewAgentRouter mounts a single-role oracle endpoint, over both the SSE
// protocol and A2A.
func NewAgentRouter(agent *AgentController, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer, requestLogger(logger), cors)
	r.Get("/", agent.Health)
	r.Post("/negotiate", agent.Negotiate)

	r.Get(a2a.CardPath, agent.AgentCard)
	r.Get(a2a.LegacyCardPath, agent.AgentCard)
	r.Post(a2aPath, agent.A2A)
	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
