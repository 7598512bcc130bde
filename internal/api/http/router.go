package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"bookshare-backend/internal/security"
	"bookshare-backend/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Services struct {
	Inventory service.InventoryService
	Lending   service.LendingService
	Balances  service.BalanceService
	Store     Pinger
}

// NewRouter wires every route by name. Route names are the keys of
// config.EndpointSecurityConfig.
func NewRouter(svc Services, tm security.TokenManager) *mux.Router {
	ledgers := NewLedgerHandler(svc.Inventory)
	loans := NewLoanHandler(svc.Lending)
	balances := NewBalanceHandler(svc.Balances)
	auth := NewAuthMiddleware(tm)

	r := mux.NewRouter()
	r.Use(TraceMiddleware, auth.Handler)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeStatus(w, req, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeStatus(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.HandleFunc("/healthz", healthz(svc.Store)).Methods(http.MethodGet).Name("Healthz")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/ledgers", ledgers.CreateLedger).Methods(http.MethodPost).Name("CreateLedger")
	api.HandleFunc("/ledgers", ledgers.ListLedgers).Methods(http.MethodGet).Name("ListLedgers")
	api.HandleFunc("/ledgers/{id:[0-9]+}", ledgers.GetLedger).Methods(http.MethodGet).Name("GetLedger")
	api.HandleFunc("/ledgers/{id:[0-9]+}", ledgers.DeleteLedger).Methods(http.MethodDelete).Name("DeleteLedger")
	api.HandleFunc("/ledgers/{id:[0-9]+}/copies", ledgers.ResizeLedger).Methods(http.MethodPut).Name("ResizeLedger")
	api.HandleFunc("/ledgers/{id:[0-9]+}/copies", ledgers.AddCopies).Methods(http.MethodPost).Name("AddCopies")
	api.HandleFunc("/ledgers/{id:[0-9]+}/copies", ledgers.RemoveCopies).Methods(http.MethodDelete).Name("RemoveCopies")
	api.HandleFunc("/ledgers/{id:[0-9]+}/deposit", ledgers.SetDeposit).Methods(http.MethodPut).Name("SetDeposit")
	api.HandleFunc("/ledgers/{id:[0-9]+}/deposit", ledgers.RemoveDeposit).Methods(http.MethodDelete).Name("RemoveDeposit")

	api.HandleFunc("/ledgers/{id:[0-9]+}/loans", loans.RequestBorrow).Methods(http.MethodPost).Name("RequestBorrow")
	api.HandleFunc("/loans", loans.ListLoans).Methods(http.MethodGet).Name("ListLoans")
	api.HandleFunc("/loans/{id:[0-9]+}", loans.GetLoan).Methods(http.MethodGet).Name("GetLoan")
	api.HandleFunc("/loans/{id:[0-9]+}/confirm", loans.ConfirmLoan).Methods(http.MethodPost).Name("ConfirmLoan")
	api.HandleFunc("/loans/{id:[0-9]+}/extend", loans.ExtendLoan).Methods(http.MethodPost).Name("ExtendLoan")
	api.HandleFunc("/loans/{id:[0-9]+}/suspend", loans.SuspendLoan).Methods(http.MethodPost).Name("SuspendLoan")
	api.HandleFunc("/loans/{id:[0-9]+}/cancel", loans.CancelLoan).Methods(http.MethodPost).Name("CancelLoan")
	api.HandleFunc("/loans/{id:[0-9]+}/return", loans.ConfirmReturn).Methods(http.MethodPost).Name("ConfirmReturn")
	api.HandleFunc("/loans/{id:[0-9]+}/overdue", loans.MarkOverdue).Methods(http.MethodPost).Name("MarkOverdue")

	api.HandleFunc("/balance", balances.GetBalance).Methods(http.MethodGet).Name("GetBalance")
	api.HandleFunc("/balance/transactions", balances.GetTransactions).Methods(http.MethodGet).Name("GetTransactions")
	api.HandleFunc("/accounts/{id:[0-9]+}/top-up", balances.TopUpBalance).Methods(http.MethodPost).Name("TopUpBalance")

	return r
}

func healthz(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			if err := store.Ping(r.Context()); err != nil {
				writeStatus(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
				return
			}
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
