package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedWebhook(body, secret string) *http.Request {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	r := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/tenant-1", strings.NewReader(body))
	r.Header.Set("X-Shopify-Hmac-Sha256", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	r.Header.Set("X-Shopify-Topic", "app/uninstalled")
	return r
}

func TestWebhookVerifier_Valid(t *testing.T) {
	body := `{"myshopify_domain":"shop.myshopify.com"}`
	r := signedWebhook(body, "shpss_secret")

	payload, err := NewWebhookVerifier("shpss_secret").Verify(r)
	require.NoError(t, err)
	assert.Equal(t, body, string(payload))

	again, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(again))
}

func TestWebhookVerifier_Invalid(t *testing.T) {
	r := signedWebhook(`{"myshopify_domain":"shop.myshopify.com"}`, "other-secret")

	_, err := NewWebhookVerifier("shpss_secret").Verify(r)
	assert.Error(t, err)

	_, err = NewWebhookVerifier("").Verify(signedWebhook("{}", ""))
	assert.Error(t, err)
}
