package http

import (
	"net/http"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/service"
)

type topUpRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type balanceResponse struct {
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

type BalanceHandler struct {
	balances service.BalanceService
}

func NewBalanceHandler(balances service.BalanceService) *BalanceHandler {
	return &BalanceHandler{balances: balances}
}

func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.self(w, r)
	if !ok {
		return
	}
	balance, err := h.balances.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, balanceResponse{UserID: userID, Balance: balance})
}

func (h *BalanceHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.self(w, r)
	if !ok {
		return
	}
	page, pageSize, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, total, err := h.balances.ListTransactions(r.Context(), userID, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newListResponse(txs, total, page, pageSize))
}

func (h *BalanceHandler) TopUpBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req topUpRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	balance, err := h.balances.TopUp(r.Context(), mustActor(r), traceID(r), userID, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, balanceResponse{UserID: userID, Balance: balance})
}

// self resolves the account of the calling user. System actors have none.
func (h *BalanceHandler) self(w http.ResponseWriter, r *http.Request) (int64, bool) {
	actor := mustActor(r)
	if actor.System || actor.UserID == 0 {
		writeError(w, r, domain.ErrForbidden.Withf("balance is only available to users"))
		return 0, false
	}
	return actor.UserID, true
}
