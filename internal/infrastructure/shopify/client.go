package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// OAuthProvider performs the Shopify app installation handshake
type OAuthProvider struct {
	apiKey     string
	apiSecret  string
	scopes     []string
	app        goshopify.App
	verifyShop bool
	logger     zerolog.Logger
}

// NewOAuthProvider creates a Shopify OAuth provider. When verifyShop is set
// the obtained token is checked against the Shop API before it is accepted.
func NewOAuthProvider(apiKey, apiSecret string, scopes []string, verifyShop bool, logger zerolog.Logger) *OAuthProvider {
	return &OAuthProvider{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		scopes:    scopes,
		app: goshopify.App{
			ApiKey:    apiKey,
			ApiSecret: apiSecret,
			Scope:     strings.Join(scopes, ","),
		},
		verifyShop: verifyShop,
		logger:     logger,
	}
}

func (p *OAuthProvider) Platform() domain.Platform {
	return domain.PlatformShopify
}

// AuthorizationURL builds the install URL. Shopify expects comma-separated scopes.
func (p *OAuthProvider) AuthorizationURL(req ports.AuthorizationRequest) (string, error) {
	if req.Shop == "" {
		return "", fmt.Errorf("%w: shop is required", domain.ErrValidation)
	}
	shop := goshopify.ShopFullName(req.Shop)

	query := url.Values{}
	query.Set("client_id", p.apiKey)
	query.Set("scope", strings.Join(p.scopes, ","))
	query.Set("redirect_uri", req.RedirectURI)
	query.Set("state", req.State)

	authURL := fmt.Sprintf("https://%s/admin/oauth/authorize?%s", shop, query.Encode())

	p.logger.Info().
		Str("shop", shop).
		Strs("scopes", p.scopes).
		Msg("Generated Shopify authorization URL")
	return authURL, nil
}

// Exchange trades the authorization code for an offline access token
func (p *OAuthProvider) Exchange(ctx context.Context, grant ports.AuthorizationGrant) (domain.Credentials, error) {
	if grant.Shop == "" {
		return domain.Credentials{}, fmt.Errorf("%w: shop is required", domain.ErrValidation)
	}
	shop := goshopify.ShopFullName(grant.Shop)

	app := p.app
	app.RedirectUrl = grant.RedirectURI
	token, err := app.GetAccessToken(ctx, shop, grant.Code)
	if err != nil {
		p.logger.Warn().Err(err).Str("shop", shop).Msg("Authorization code exchange failed")
		return domain.Credentials{}, exchangeError(err)
	}

	if p.verifyShop {
		if err := p.checkShop(ctx, shop, token); err != nil {
			return domain.Credentials{}, err
		}
	}

	return domain.Credentials{
		AccessToken:       token,
		Scopes:            p.scopes,
		ExternalAccountID: shop,
	}, nil
}

// exchangeError maps a failed access token request. Network failures and 5xx
// answers are a TransportError; any other answer means Shopify refused the code.
func exchangeError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &domain.TransportError{Err: fmt.Errorf("failed to exchange token: %w", err)}
	}
	var status interface{ GetStatus() int }
	if errors.As(err, &status) && status.GetStatus() >= http.StatusInternalServerError {
		return &domain.TransportError{StatusCode: status.GetStatus(), Err: fmt.Errorf("failed to exchange token: %w", err)}
	}
	return fmt.Errorf("%w: failed to exchange token: %w", domain.ErrPlatformUnauthorized, err)
}

func (p *OAuthProvider) checkShop(ctx context.Context, shop, token string) error {
	client, err := goshopify.NewClient(p.app, shop, token)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	info, err := client.Shop.Get(ctx, nil)
	if err != nil {
		p.logger.Warn().Err(err).Str("shop", shop).Msg("Token validation failed")
		return fmt.Errorf("%w: %v", domain.ErrPlatformUnauthorized, err)
	}
	p.logger.Debug().Str("shop", shop).Str("name", info.Name).Msg("Token validation successful")
	return nil
}

// VerifyCallback checks the hmac Shopify appends to the OAuth callback URL
func (p *OAuthProvider) VerifyCallback(u *url.URL) bool {
	if u.Query().Get("hmac") == "" {
		return false
	}
	ok, err := p.app.VerifyAuthorizationURL(u)
	return err == nil && ok
}
