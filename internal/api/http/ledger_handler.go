package http

import (
	"net/http"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/repository"
	"bookshare-backend/internal/service"
)

type createLedgerRequest struct {
	TitleID       int64 `json:"title_id" validate:"required,gt=0"`
	LocationID    int64 `json:"location_id" validate:"required,gt=0"`
	Copies        int   `json:"copies" validate:"gte=0,lte=10000"`
	DepositAmount int64 `json:"deposit_amount" validate:"gte=0"`
}

type resizeLedgerRequest struct {
	Target *int `json:"target" validate:"required,gte=0,lte=10000"`
}

type addCopiesRequest struct {
	Count int `json:"count" validate:"required,gt=0,lte=10000"`
}

type setDepositRequest struct {
	Amount *int64 `json:"amount" validate:"required"`
}

type LedgerHandler struct {
	inventory service.InventoryService
}

func NewLedgerHandler(inventory service.InventoryService) *LedgerHandler {
	return &LedgerHandler{inventory: inventory}
}

func (h *LedgerHandler) CreateLedger(w http.ResponseWriter, r *http.Request) {
	var req createLedgerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ledger, err := h.inventory.CreateLedger(r.Context(), mustActor(r), traceID(r), service.CreateLedgerInput{
		TitleID:       req.TitleID,
		LocationID:    req.LocationID,
		Copies:        req.Copies,
		DepositAmount: req.DepositAmount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, ledger)
}

func (h *LedgerHandler) ListLedgers(w http.ResponseWriter, r *http.Request) {
	var filter repository.LedgerFilter
	var err error
	if filter.OwnerID, err = queryInt64(r, "owner_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.LocationID, err = queryInt64(r, "location_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.TitleID, err = queryInt64(r, "title_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Page, filter.PageSize, err = pageParams(r); err != nil {
		writeError(w, r, err)
		return
	}

	ledgers, total, err := h.inventory.ListLedgers(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newListResponse(ledgers, total, filter.Page, filter.PageSize))
}

func (h *LedgerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ledger, err := h.inventory.GetLedger(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ledger)
}

func (h *LedgerHandler) ResizeLedger(w http.ResponseWriter, r *http.Request) {
	var req resizeLedgerRequest
	h.withLedger(w, r, &req, func(id int64) (*domain.Ledger, error) {
		return h.inventory.ResizeLedger(r.Context(), mustActor(r), traceID(r), id, *req.Target)
	})
}

func (h *LedgerHandler) AddCopies(w http.ResponseWriter, r *http.Request) {
	var req addCopiesRequest
	h.withLedger(w, r, &req, func(id int64) (*domain.Ledger, error) {
		return h.inventory.AddCopies(r.Context(), mustActor(r), traceID(r), id, req.Count)
	})
}

func (h *LedgerHandler) RemoveCopies(w http.ResponseWriter, r *http.Request) {
	h.withLedger(w, r, nil, func(id int64) (*domain.Ledger, error) {
		count, err := queryInt64(r, "count")
		if err != nil {
			return nil, err
		}
		if count <= 0 {
			return nil, domain.ErrInvalidArgument.Withf("count must be positive")
		}
		return h.inventory.RemoveCopies(r.Context(), mustActor(r), traceID(r), id, int(count))
	})
}

func (h *LedgerHandler) SetDeposit(w http.ResponseWriter, r *http.Request) {
	var req setDepositRequest
	h.withLedger(w, r, &req, func(id int64) (*domain.Ledger, error) {
		return h.inventory.SetDeposit(r.Context(), mustActor(r), traceID(r), id, *req.Amount)
	})
}

func (h *LedgerHandler) RemoveDeposit(w http.ResponseWriter, r *http.Request) {
	h.withLedger(w, r, nil, func(id int64) (*domain.Ledger, error) {
		return h.inventory.RemoveDeposit(r.Context(), mustActor(r), traceID(r), id)
	})
}

func (h *LedgerHandler) DeleteLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.inventory.DeleteLedger(r.Context(), mustActor(r), traceID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// withLedger parses the ledger id and the optional body, then writes the
// ledger returned by call.
func (h *LedgerHandler) withLedger(w http.ResponseWriter, r *http.Request, body any, call func(id int64) (*domain.Ledger, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if body != nil {
		if err := decode(w, r, body); err != nil {
			writeError(w, r, err)
			return
		}
	}
	ledger, err := call(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ledger)
}
