package payment

import "errors"

// ErrPaymentsDisabled is returned when payments are not configured.
var ErrPaymentsDisabled = errors.New("payments are not configured")

// NoopParser rejects all webhooks. Used when billing is disabled;
// the webhook endpoint still exists but never syncs anything.
type NoopParser struct{}

// NewNoopParser creates a new no-op webhook parser.
func NewNoopParser() *NoopParser {
	return &NoopParser{}
}

// ParseWebhook returns an error as payments are disabled.
func (p *NoopParser) ParseWebhook(payload []byte, signature string) (string, map[string]any, error) {
	return "", nil, ErrPaymentsDisabled
}
