package web

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/texlify/texlify/domain/identity"
	"github.com/texlify/texlify/ports"
)

// withIdentity resolves the caller identity for every request. A valid
// bearer token yields an authenticated identity; anything else falls
// back to anonymous, keyed by the X-Session-Key header or, failing
// that, the client IP. Token verification failures are not errors:
// expired tokens degrade to anonymous so the free flow keeps working.
func (h *Handler) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := h.resolveIdentity(r)
		next.ServeHTTP(w, r.WithContext(withIdentityCtx(r.Context(), id)))
	})
}

func (h *Handler) resolveIdentity(r *http.Request) identity.Identity {
	if token := bearerToken(r); token != "" {
		userID, err := h.identity.Identify(r.Context(), token)
		if err == nil {
			return identity.Authenticated(userID)
		}
		if !errors.Is(err, ports.ErrNotFound) {
			h.logger.Warn().Err(err).Msg("identity verification failed")
		}
	}
	if key := r.Header.Get("X-Session-Key"); key != "" {
		return identity.Anonymous(key)
	}
	return identity.Anonymous(clientIP(r))
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// instrument records request metrics and an access log line. The path
// label uses the chi route pattern so per-ID URLs do not explode the
// metric cardinality.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.metrics.RequestsInFlight.Inc()
		defer h.metrics.RequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		status := strconv.Itoa(rec.status)
		elapsed := time.Since(start)

		h.metrics.RequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
		h.metrics.RequestDuration.WithLabelValues(r.Method, pattern, status).Observe(elapsed.Seconds())

		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("request")
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

// requireAdmin guards the admin routes with a static bearer token,
// compared against the hash taken at startup.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" || !h.hasher.Compare(h.adminTokenHash, token) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
