package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type contextKey string

// usernameKey carries the authenticated username through the request context.
const usernameKey contextKey = "username"

// usernameFrom returns the authenticated username, or "" outside the
// auth middleware.
func usernameFrom(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey).(string)
	return username
}

// requireAuth verifies the bearer token and injects the username into the
// request context.
func (h *handlers) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		username, err := h.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// withMetrics records request duration per route and status code.
func (h *handlers) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		route := r.URL.Path
		if pattern := r.Pattern; pattern != "" {
			route = pattern
		}
		h.recorder.ObserveHTTPRequest(route, r.Method, strconv.Itoa(sr.status), time.Since(start))
	})
}
