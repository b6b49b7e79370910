package payment

import "encoding/json"

// DummyParser accepts any payload without signature verification.
// Use it for development when real webhook credentials aren't available.
type DummyParser struct{}

// NewDummyParser creates a new dummy webhook parser.
func NewDummyParser() *DummyParser {
	return &DummyParser{}
}

// ParseWebhook decodes the payload as a bare {"type": ..., "data": {...}}
// envelope, skipping signature checks.
func (p *DummyParser) ParseWebhook(payload []byte, signature string) (string, map[string]any, error) {
	var event struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", nil, err
	}
	return event.Type, event.Data, nil
}
