package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type exchangeRequest struct {
	Points int64 `json:"points"`
}

type exchangeResponse struct {
	Points     int64  `json:"points"`
	Amount     string `json:"amount"`
	Balance    string `json:"balance"`
	PointsLeft int64  `json:"points_left"`
}

func (h *Handler) exchangePoints(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	ex, err := h.wallet.ExchangePoints(r.Context(), actorOf(r).ID, req.Points)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, exchangeResponse{
		Points:     ex.Points,
		Amount:     ex.Amount.StringFixed(2),
		Balance:    ex.Balance.StringFixed(2),
		PointsLeft: ex.Left,
	})
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type amountResponse struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
}

// withdraw debits the caller's own balance for a payout request.
func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, actorOf(r).ID, h.wallet.Withdraw)
}

// deposit credits a validated deposit; it activates the account.
func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, chi.URLParam(r, "userID"), h.wallet.Deposit)
}

// refundWithdrawal returns the funds of a rejected payout request.
func (h *Handler) refundWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, chi.URLParam(r, "userID"), h.wallet.RefundWithdrawal)
}

func (h *Handler) moveFunds(w http.ResponseWriter, r *http.Request, userID string, fn walletFunc) {
	var req amountRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := fn(r.Context(), userID, req.Amount); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{UserID: userID, Amount: req.Amount.StringFixed(2)})
}
