package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/texlify/texlify/app"
	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/ports"
)

type recordResponse struct {
	ID        string    `json:"id"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Anonymous bool      `json:"anonymous"`
	CreatedAt time.Time `json:"created_at"`
}

func toRecordResponse(rec conversion.Record) recordResponse {
	return recordResponse{
		ID:        rec.ID,
		Input:     rec.Input,
		Output:    rec.Output,
		Anonymous: rec.Anonymous,
		CreatedAt: rec.CreatedAt,
	}
}

type fileRecordResponse struct {
	ID        string    `json:"id"`
	Tool      string    `json:"tool"`
	Status    string    `json:"status"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	LatencyMs int64     `json:"latency_ms,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// History handles GET /v1/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.History(r.Context(), callerIdentity(r.Context()), queryLimit(r))
	if err != nil {
		h.writeHistoryError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversions": out})
}

// SaveConversion handles POST /v1/history.
func (h *Handler) SaveConversion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input  string `json:"input"`
		Output string `json:"output"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Input == "" || req.Output == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "input and output are required")
		return
	}

	rec, err := h.history.Save(r.Context(), callerIdentity(r.Context()), req.Input, req.Output)
	if err != nil {
		h.writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

// FileHistory handles GET /v1/files. The optional "tool" query filters
// by tool name.
func (h *Handler) FileHistory(w http.ResponseWriter, r *http.Request) {
	var tool conversion.Tool
	if name := r.URL.Query().Get("tool"); name != "" {
		parsed, ok := conversion.ParseTool(name)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown_tool", "no such tool")
			return
		}
		tool = parsed
	}

	records, err := h.history.FileHistory(r.Context(), callerIdentity(r.Context()), tool, queryLimit(r))
	if err != nil {
		h.writeHistoryError(w, err)
		return
	}
	out := make([]fileRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, fileRecordResponse{
			ID:        rec.ID,
			Tool:      string(rec.Tool),
			Status:    string(rec.Status),
			Output:    rec.OutputText,
			Error:     rec.ErrorMessage,
			LatencyMs: rec.LatencyMs,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out})
}

// Favorites handles GET /v1/favorites.
func (h *Handler) Favorites(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.Favorites(r.Context(), callerIdentity(r.Context()), queryLimit(r))
	if err != nil {
		h.writeHistoryError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": out})
}

// ToggleFavorite handles POST /v1/conversions/{id}/favorite.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	conversionID := chi.URLParam(r, "id")
	favorited, err := h.history.ToggleFavorite(r.Context(), callerIdentity(r.Context()), conversionID)
	if err != nil {
		h.writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorited": favorited})
}

func (h *Handler) writeHistoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrAuthRequired):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in to use favorites")
	case errors.Is(err, app.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "no such conversion")
	case errors.Is(err, ports.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "try again shortly")
	default:
		h.logger.Error().Err(err).Msg("history request failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
