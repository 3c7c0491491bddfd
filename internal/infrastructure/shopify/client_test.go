package shopify

import (
	"errors"
	"net/url"
	"testing"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthProvider_AuthorizationURL(t *testing.T) {
	p := NewOAuthProvider("key-123", "secret", []string{"read_customer_events", "write_pixels"}, false, zerolog.Nop())
	assert.Equal(t, domain.PlatformShopify, p.Platform())

	raw, err := p.AuthorizationURL(ports.AuthorizationRequest{
		State:       "state-1",
		RedirectURI: "https://app.example.com/integrations/oauth/callback",
		Shop:        "shop",
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "shop.myshopify.com", u.Host)
	assert.Equal(t, "/admin/oauth/authorize", u.Path)
	assert.Equal(t, "key-123", u.Query().Get("client_id"))
	assert.Equal(t, "read_customer_events,write_pixels", u.Query().Get("scope"))
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, "https://app.example.com/integrations/oauth/callback", u.Query().Get("redirect_uri"))
}

func TestOAuthProvider_RequiresShop(t *testing.T) {
	p := NewOAuthProvider("key", "secret", nil, false, zerolog.Nop())

	_, err := p.AuthorizationURL(ports.AuthorizationRequest{State: "s"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

type statusError struct{ status int }

func (e statusError) Error() string  { return "shopify error" }
func (e statusError) GetStatus() int { return e.status }

func TestExchangeError(t *testing.T) {
	err := exchangeError(&url.Error{Op: "Post", URL: "https://shop.myshopify.com", Err: errors.New("connection refused")})
	assert.ErrorIs(t, err, domain.ErrTransport)

	err = exchangeError(statusError{status: 503})
	var transportErr *domain.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 503, transportErr.StatusCode)

	err = exchangeError(statusError{status: 400})
	assert.ErrorIs(t, err, domain.ErrPlatformUnauthorized)
	assert.Equal(t, domain.KindTransport, domain.KindOf(err))

	err = exchangeError(errors.New("invalid code"))
	assert.ErrorIs(t, err, domain.ErrPlatformUnauthorized)
}
