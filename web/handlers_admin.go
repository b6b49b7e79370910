package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// ResetRateLimit handles POST /admin/ratelimits/reset. Clears one
// identity's state across all shards of the named limiter.
func (h *Handler) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limiter string `json:"limiter"`
		Key     string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Limiter == "" || req.Key == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "limiter and key are required")
		return
	}

	if err := h.admission.ResetRateLimit(r.Context(), req.Limiter, req.Key); err != nil {
		if strings.Contains(err.Error(), "unknown limiter") {
			writeError(w, http.StatusNotFound, "unknown_limiter", "no such limiter")
			return
		}
		h.logger.Error().Err(err).Msg("rate limit reset failed")
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "try again shortly")
		return
	}

	h.logger.Info().
		Str("limiter", req.Limiter).
		Str("key", req.Key).
		Msg("rate limit reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// ClearUsage handles POST /admin/usage/clear. Removes tool usage rows
// older than the given cutoff; today's counters are never touched
// because the cutoff must lie in the past.
func (h *Handler) ClearUsage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Before time.Time `json:"before"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Before.IsZero() || !req.Before.Before(time.Now().UTC()) {
		writeError(w, http.StatusBadRequest, "invalid_request", "before must be a past timestamp")
		return
	}

	removed, err := h.admission.ClearUsageBefore(r.Context(), req.Before)
	if err != nil {
		h.logger.Error().Err(err).Msg("usage clear failed")
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "try again shortly")
		return
	}

	h.logger.Info().Int64("removed", removed).Msg("usage rows cleared")
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
