package web

import (
	"io"
	"net/http"
)

// StripeWebhook handles POST /webhooks/stripe. Signature validation
// happens inside the parser; a bad signature is the only case that
// returns non-2xx for a well-formed request, so Stripe retries exactly
// the deliveries that might still succeed.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to read body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.billing.HandleWebhook(r.Context(), body, signature); err != nil {
		h.logger.Warn().Err(err).Msg("webhook rejected")
		writeError(w, http.StatusBadRequest, "webhook_rejected", "event could not be processed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
}
