package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"negotiation-backend/usecase"
)

type WalletController struct {
	usecase *usecase.WalletUsecase
}

func NewWalletController(usecase *usecase.WalletUsecase) *WalletController {
	return &WalletController{usecase: usecase}
}

func (c *WalletController) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := c.usecase.GetBalance(r.Context(), chi.URLParam(r, "walletID"))
	if errors.Is(err, usecase.ErrWalletNotFound) {
		writeError(w, http.StatusNotFound, "Wallet not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (c *WalletController) Deposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	balance, err := c.usecase.Deposit(r.Context(), chi.URLParam(r, "walletID"), req.Amount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, balance)
}
