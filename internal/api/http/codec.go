package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/logger"
)

var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New()
)

const maxBodyBytes = 1 << 20

// decode reads a JSON body into dst and validates its tags. An empty body
// leaves dst at its zero value.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.ErrInvalidArgument.Withf("malformed request body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		return domain.ErrInvalidArgument.Withf("%v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Warn("Failed to write response", "error", err)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidArgument.Withf("invalid %s %q", name, raw)
	}
	return id, nil
}

// queryInt64 returns 0 when the parameter is absent.
func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidArgument.Withf("invalid %s %q", name, raw)
	}
	return v, nil
}

func pageParams(r *http.Request) (int32, int32, error) {
	page, err := queryInt64(r, "page")
	if err != nil {
		return 0, 0, err
	}
	size, err := queryInt64(r, "page_size")
	if err != nil {
		return 0, 0, err
	}
	if page < 0 || size < 0 || size > 100 {
		return 0, 0, domain.ErrInvalidArgument.Withf("invalid paging page=%d page_size=%d", page, size)
	}
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = 20
	}
	return int32(page), int32(size), nil
}

type listResponse[T any] struct {
	Items    []T   `json:"items"`
	Total    int32 `json:"total"`
	Page     int32 `json:"page"`
	PageSize int32 `json:"page_size"`
}

func newListResponse[T any](items []T, total, page, pageSize int32) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Total: total, Page: page, PageSize: pageSize}
}

func mustActor(r *http.Request) domain.Actor {
	actor, _ := ActorFromContext(r.Context())
	return actor
}

func traceID(r *http.Request) string {
	return r.Header.Get(TraceHeader)
}
