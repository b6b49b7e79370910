package web

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/texlify/texlify/app"
	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/ports"
)

type convertRequest struct {
	Text string `json:"text"`
}

type convertResponse struct {
	LaTeX        string `json:"latex"`
	RecordID     string `json:"record_id,omitempty"`
	Model        string `json:"model,omitempty"`
	InputTokens  int64  `json:"input_tokens,omitempty"`
	OutputTokens int64  `json:"output_tokens,omitempty"`
	Tier         string `json:"tier"`
}

// Convert handles POST /v1/convert.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	id := callerIdentity(r.Context())
	result, err := h.conversions.ConvertText(r.Context(), id, req.Text)
	if err != nil {
		h.writeConvertError(w, result, err)
		return
	}

	writeJSON(w, http.StatusOK, convertResponse{
		LaTeX:        result.Output.LaTeX,
		RecordID:     result.RecordID,
		Model:        result.Output.Model,
		InputTokens:  result.Output.InputTokens,
		OutputTokens: result.Output.OutputTokens,
		Tier:         string(result.Decision.Tier.Name),
	})
}

// ConvertTool handles POST /v1/tools/{tool}.
func (h *Handler) ConvertTool(w http.ResponseWriter, r *http.Request) {
	tool, ok := conversion.ParseTool(chi.URLParam(r, "tool"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_tool", "no such tool")
		return
	}

	var req struct {
		Input          string `json:"input"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "input is required")
		return
	}

	id := callerIdentity(r.Context())
	result, err := h.conversions.ConvertTool(r.Context(), id, tool, req.Input, req.IdempotencyKey)
	if err != nil {
		h.writeConvertError(w, result, err)
		return
	}

	writeJSON(w, http.StatusOK, convertResponse{
		LaTeX:        result.Output.LaTeX,
		RecordID:     result.RecordID,
		Model:        result.Output.Model,
		InputTokens:  result.Output.InputTokens,
		OutputTokens: result.Output.OutputTokens,
		Tier:         string(result.Decision.Tier.Name),
	})
}

// writeConvertError maps conversion failures to HTTP responses. A
// denial carries its typed reason in the decision; anything else is a
// storage or converter failure.
func (h *Handler) writeConvertError(w http.ResponseWriter, result app.ConvertResult, err error) {
	if errors.Is(err, app.ErrDenied) {
		h.writeDenial(w, result.Decision.Deny)
		return
	}
	if errors.Is(err, ports.ErrStorageUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "try again shortly")
		return
	}
	h.logger.Error().Err(err).Msg("conversion failed")
	writeError(w, http.StatusBadGateway, "conversion_failed", "conversion failed")
}

func (h *Handler) writeDenial(w http.ResponseWriter, deny app.DenyReason) {
	switch d := deny.(type) {
	case app.RateLimited:
		secs := int64(math.Ceil(d.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		writeError(w, http.StatusTooManyRequests, d.Reason(), "rate limit exceeded")
	case app.DailyQuotaExceeded:
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": "daily conversion limit reached",
			"code":  d.Reason(),
			"used":  d.Used,
			"limit": d.Limit,
		})
	case app.ToolQuotaExceeded:
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": "daily tool limit reached",
			"code":  d.Reason(),
			"tool":  string(d.Tool),
			"used":  d.Used,
			"limit": d.Limit,
		})
	case app.InputTooLong:
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
			"error":  "input exceeds the maximum length for your tier",
			"code":   d.Reason(),
			"length": d.Length,
			"max":    d.Max,
		})
	case app.Unauthenticated:
		writeError(w, http.StatusUnauthorized, d.Reason(), "this tool requires a signed-in account")
	default:
		writeError(w, http.StatusForbidden, deny.Reason(), "conversion denied")
	}
}

type usageResponse struct {
	Tier       string               `json:"tier"`
	Day        string               `json:"day"`
	DailyUsed  int64                `json:"daily_used"`
	DailyLimit int64                `json:"daily_limit"`
	Tools      map[string]toolUsage `json:"tools"`
}

type toolUsage struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

// Usage handles GET /v1/usage.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	report, err := h.admission.Usage(r.Context(), callerIdentity(r.Context()))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "try again shortly")
		return
	}

	resp := usageResponse{
		Tier:       string(report.Tier.Name),
		Day:        report.Day,
		DailyUsed:  report.DailyUsed,
		DailyLimit: report.Tier.Limits.DailyConversions,
		Tools:      make(map[string]toolUsage, len(report.Tools)),
	}
	for tool, u := range report.Tools {
		resp.Tools[string(tool)] = toolUsage{Used: u.Used, Limit: u.Limit}
	}
	writeJSON(w, http.StatusOK, resp)
}
