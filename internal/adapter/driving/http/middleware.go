package httphandler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/flamedesk/flamedesk/internal/domain/model"
)

// SessionCookieName is the cookie carrying the browser session token.
const SessionCookieName = "flamedesk_session"

type contextKey int

const principalKey contextKey = iota

// principalFrom returns the authenticated principal stored by requireAuth.
// Handlers behind requireAuth can rely on it being non-nil.
func principalFrom(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(principalKey).(*model.Principal)
	return p
}

// requireAuth resolves the request's credential into a principal and stores
// it on the request context. An explicit API key header (Authorization or
// X-API-Key) always wins over a session cookie; the cookie is only consulted
// when neither header is present. Every rejection is the same 401 body
// regardless of cause.
func (h *Handler) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := apiKeyToken(r); ok {
			p, err := h.auth.ResolveAPIKey(r.Context(), token, r.Method)
			if err != nil {
				h.logger.Error("api key resolution failed", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if p == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
			return
		}

		if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
			p, err := h.auth.ResolveSession(r.Context(), cookie.Value)
			if err != nil {
				h.logger.Error("session resolution failed", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if p == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
			return
		}

		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

// apiKeyToken extracts an API key from the Authorization header or the
// X-API-Key header. The bearer scheme prefix is stripped case-insensitively
// when present; otherwise the raw header value is the token. The second
// return reports whether either header was supplied at all, so a bad key
// never falls through to session auth.
func apiKeyToken(r *http.Request) (string, bool) {
	if authz := r.Header.Get("Authorization"); authz != "" {
		if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
			return strings.TrimSpace(authz[7:]), true
		}
		return strings.TrimSpace(authz), true
	}
	if v := r.Header.Get("X-API-Key"); v != "" {
		return strings.TrimSpace(v), true
	}
	return "", false
}

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the embedded writer.
func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

// recoveryMiddleware recovers from panics in HTTP handlers, logs the error,
// and returns a 500 response.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("panic recovered",
					"panic", v,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
