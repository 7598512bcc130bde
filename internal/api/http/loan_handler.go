package http

import (
	"net/http"
	"time"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/repository"
	"bookshare-backend/internal/service"
)

type requestBorrowRequest struct {
	Days int `json:"days" validate:"gte=0"`
}

type extendLoanRequest struct {
	DueAt time.Time `json:"due_at"`
}

type confirmReturnRequest struct {
	ProofRef string `json:"proof_ref" validate:"max=512"`
}

var loanStatuses = map[string]domain.LoanStatus{
	string(domain.LoanStatusRequested): domain.LoanStatusRequested,
	string(domain.LoanStatusBorrowed):  domain.LoanStatusBorrowed,
	string(domain.LoanStatusExtended):  domain.LoanStatusExtended,
	string(domain.LoanStatusOverdue):   domain.LoanStatusOverdue,
	string(domain.LoanStatusSuspended): domain.LoanStatusSuspended,
	string(domain.LoanStatusReturned):  domain.LoanStatusReturned,
}

type LoanHandler struct {
	lending service.LendingService
}

func NewLoanHandler(lending service.LendingService) *LoanHandler {
	return &LoanHandler{lending: lending}
}

func (h *LoanHandler) RequestBorrow(w http.ResponseWriter, r *http.Request) {
	ledgerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req requestBorrowRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	outcome, err := h.lending.RequestBorrow(r.Context(), mustActor(r), traceID(r), ledgerID, req.Days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, outcome)
}

func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	var filter repository.LoanFilter
	var err error
	if filter.LedgerID, err = queryInt64(r, "ledger_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := loanStatuses[raw]
		if !ok {
			writeError(w, r, domain.ErrInvalidArgument.Withf("unknown loan status %q", raw))
			return
		}
		filter.Status = status
	}
	if filter.Page, filter.PageSize, err = pageParams(r); err != nil {
		writeError(w, r, err)
		return
	}

	loans, total, err := h.lending.ListLoans(r.Context(), mustActor(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newListResponse(loans, total, filter.Page, filter.PageSize))
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	loan, err := h.lending.GetLoan(r.Context(), mustActor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, loan)
}

func (h *LoanHandler) ConfirmLoan(w http.ResponseWriter, r *http.Request) {
	h.withLoan(w, r, nil, func(id int64) (*domain.LoanOutcome, error) {
		return h.lending.ConfirmLoan(r.Context(), mustActor(r), traceID(r), id)
	})
}

func (h *LoanHandler) ExtendLoan(w http.ResponseWriter, r *http.Request) {
	var req extendLoanRequest
	h.withLoan(w, r, &req, func(id int64) (*domain.LoanOutcome, error) {
		return h.lending.ExtendLoan(r.Context(), mustActor(r), traceID(r), id, req.DueAt.UTC())
	})
}

func (h *LoanHandler) SuspendLoan(w http.ResponseWriter, r *http.Request) {
	h.withLoan(w, r, nil, func(id int64) (*domain.LoanOutcome, error) {
		return h.lending.SuspendLoan(r.Context(), mustActor(r), traceID(r), id)
	})
}

func (h *LoanHandler) CancelLoan(w http.ResponseWriter, r *http.Request) {
	h.withLoan(w, r, nil, func(id int64) (*domain.LoanOutcome, error) {
		return h.lending.CancelLoan(r.Context(), mustActor(r), traceID(r), id)
	})
}

func (h *LoanHandler) ConfirmReturn(w http.ResponseWriter, r *http.Request) {
	var req confirmReturnRequest
	h.withLoan(w, r, &req, func(id int64) (*domain.LoanOutcome, error) {
		return h.lending.ConfirmReturn(r.Context(), mustActor(r), traceID(r), id, req.ProofRef)
	})
}

func (h *LoanHandler) MarkOverdue(w http.ResponseWriter, r *http.Request) {
	h.withLoan(w, r, nil, func(id int64) (*domain.LoanOutcome, error) {
		return h.lending.MarkOverdue(r.Context(), mustActor(r), traceID(r), id)
	})
}

func (h *LoanHandler) withLoan(w http.ResponseWriter, r *http.Request, body any, call func(id int64) (*domain.LoanOutcome, error)) {
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
	outcome, err := call(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, outcome)
}
