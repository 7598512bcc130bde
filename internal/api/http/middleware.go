package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"bookshare-backend/internal/config"
	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/logger"
	"bookshare-backend/internal/security"
)

// TraceHeader carries the caller's request id. Mutations use it verbatim as
// the idempotency seed.
const TraceHeader = "X-Request-Id"

type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

// Handler authenticates the request according to the security level of the
// matched route and stores the resolved actor in the request context.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		level := config.GetSecurityLevel(routeName(r))
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			writeStatus(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "authorization token is not provided")
			return
		}
		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			writeStatus(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token: "+err.Error())
			return
		}

		actor, err := actorFor(level, claims)
		if err != nil {
			writeStatus(w, r, http.StatusForbidden, "PERMISSION_DENIED", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithActor(r.Context(), actor)))
	})
}

// actorFor checks the token type against the route level. Access routes also
// take service tokens so that trusted collaborators act as the system actor.
func actorFor(level config.SecurityLevel, claims *security.UserClaims) (domain.Actor, error) {
	switch claims.Type {
	case security.TokenTypeService:
		return domain.SystemActor(), nil
	case security.TokenTypeAccess:
		if level == config.SecurityService {
			return domain.Actor{}, security.ErrWrongTokenType
		}
		if claims.UserID == 0 {
			return domain.Actor{}, security.ErrInvalidToken
		}
		return domain.UserActor(claims.UserID), nil
	}
	return domain.Actor{}, security.ErrWrongTokenType
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	if len(header) > 7 && strings.ToUpper(header[0:7]) == "BEARER " {
		header = header[7:]
	}
	return header, header != ""
}

// TraceMiddleware attaches the request id to the context for log
// correlation and logs one line per request.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = "gen-" + uuid.NewString()
		}
		ctx := logger.ContextWithTraceID(r.Context(), traceID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.FromContext(ctx).Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", routeName(r),
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}
