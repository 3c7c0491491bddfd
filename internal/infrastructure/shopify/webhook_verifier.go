package shopify

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

const maxWebhookBytes = 1 << 20

// WebhookVerifier checks the HMAC signature of Shopify webhooks
type WebhookVerifier struct {
	app goshopify.App
}

// NewWebhookVerifier creates a verifier for webhooks signed with secret
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{app: goshopify.App{ApiSecret: secret}}
}

// Verify reads the request body and checks it against X-Shopify-Hmac-Sha256.
// The body is returned so callers can process it; r.Body stays readable.
func (v *WebhookVerifier) Verify(r *http.Request) ([]byte, error) {
	if v.app.ApiSecret == "" {
		return nil, fmt.Errorf("webhook secret not configured")
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook payload: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(payload))

	if !v.app.VerifyWebhookRequest(r) {
		return nil, fmt.Errorf("invalid webhook signature")
	}
	r.Body = io.NopCloser(bytes.NewReader(payload))
	return payload, nil
}
