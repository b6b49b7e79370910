// Package payment provides payment webhook adapters.
package payment

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeConfig holds Stripe configuration.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

// StripeParser verifies and decodes Stripe webhooks. The engine only
// consumes subscription lifecycle events; checkout and billing portal
// live in the web frontend, so nothing here talks to the Stripe API.
type StripeParser struct {
	config StripeConfig
}

// NewStripeParser creates a new Stripe webhook parser.
func NewStripeParser(config StripeConfig) *StripeParser {
	return &StripeParser{config: config}
}

// ParseWebhook parses and validates a Stripe webhook.
func (p *StripeParser) ParseWebhook(payload []byte, signature string) (string, map[string]any, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.config.WebhookSecret)
	if err != nil {
		return "", nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(event.Data.Raw, &data); err != nil {
		return "", nil, err
	}

	return string(event.Type), data, nil
}
