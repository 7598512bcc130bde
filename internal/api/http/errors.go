package http

import (
	"errors"
	"net/http"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/logger"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusFor maps a domain error kind to an HTTP status.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindDuplicate, domain.KindStateConflict:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvariantViolation:
		if errors.Is(err, domain.ErrInsufficientAvailableCopies) {
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindExternal:
		return http.StatusPaymentRequired
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		logger.FromContext(r.Context()).Error("Request failed", "path", r.URL.Path, "error", err)
		writeStatus(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	writeJSON(w, r, statusFor(err), errorBody{Error: errorDetail{
		Code:    de.Code,
		Kind:    string(de.Kind),
		Message: de.Error(),
	}})
}

func writeStatus(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, errorBody{Error: errorDetail{Code: code, Kind: code, Message: message}})
}
