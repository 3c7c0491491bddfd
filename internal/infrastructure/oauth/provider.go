package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Meta and Google endpoints
var (
	FacebookEndpoint = oauth2.Endpoint{
		AuthURL:   "https://www.facebook.com/v19.0/dialog/oauth",
		TokenURL:  "https://graph.facebook.com/v19.0/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	GoogleEndpoint = oauth2.Endpoint{
		AuthURL:   "https://accounts.google.com/o/oauth2/auth",
		TokenURL:  "https://oauth2.googleapis.com/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
)

// Default scopes per platform
var (
	FacebookScopes  = []string{"ads_management", "business_management", "pages_show_list"}
	InstagramScopes = []string{"instagram_basic", "instagram_manage_insights", "pages_show_list", "pages_read_engagement", "business_management"}
	GoogleAdsScopes = []string{"https://www.googleapis.com/auth/adwords"}
)

// Provider performs a standard authorization-code flow for one platform
type Provider struct {
	platform   domain.Platform
	config     oauth2.Config
	authOpts   []oauth2.AuthCodeOption
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option customizes a Provider
type Option func(*Provider)

// WithEndpoint overrides the authorization server endpoints
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(p *Provider) {
		p.config.Endpoint = endpoint
	}
}

// WithHTTPClient sets the client used for token exchange
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithScopes overrides the requested scopes
func WithScopes(scopes []string) Option {
	return func(p *Provider) {
		p.config.Scopes = scopes
	}
}

// NewProvider creates a provider for platform
func NewProvider(
	platform domain.Platform,
	clientID, clientSecret string,
	endpoint oauth2.Endpoint,
	scopes []string,
	logger zerolog.Logger,
	opts ...Option,
) *Provider {
	p := &Provider{
		platform: platform,
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFacebookProvider creates the Facebook Login provider
func NewFacebookProvider(clientID, clientSecret string, logger zerolog.Logger, opts ...Option) *Provider {
	return NewProvider(domain.PlatformFacebook, clientID, clientSecret, FacebookEndpoint, FacebookScopes, logger, opts...)
}

// NewInstagramProvider creates the Instagram provider. Instagram business
// accounts are authorized through Facebook Login.
func NewInstagramProvider(clientID, clientSecret string, logger zerolog.Logger, opts ...Option) *Provider {
	return NewProvider(domain.PlatformInstagram, clientID, clientSecret, FacebookEndpoint, InstagramScopes, logger, opts...)
}

// NewGoogleAdsProvider creates the Google Ads provider. Offline access is
// requested so a refresh token is issued.
func NewGoogleAdsProvider(clientID, clientSecret string, logger zerolog.Logger, opts ...Option) *Provider {
	p := NewProvider(domain.PlatformGoogleAds, clientID, clientSecret, GoogleEndpoint, GoogleAdsScopes, logger, opts...)
	p.authOpts = append(p.authOpts, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	return p
}

func (p *Provider) Platform() domain.Platform {
	return p.platform
}

// AuthorizationURL builds the consent URL for req
func (p *Provider) AuthorizationURL(req ports.AuthorizationRequest) (string, error) {
	if p.config.ClientID == "" {
		return "", fmt.Errorf("%w: %s client id is not configured", domain.ErrUnsupportedOperation, p.platform)
	}
	cfg := p.config
	cfg.RedirectURL = req.RedirectURI
	return cfg.AuthCodeURL(req.State, p.authOpts...), nil
}

// Exchange trades the authorization code for tokens
func (p *Provider) Exchange(ctx context.Context, grant ports.AuthorizationGrant) (domain.Credentials, error) {
	cfg := p.config
	cfg.RedirectURL = grant.RedirectURI
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := cfg.Exchange(ctx, grant.Code)
	if err != nil {
		p.logger.Warn().Err(err).Str("platform", string(p.platform)).Msg("Authorization code exchange failed")
		return domain.Credentials{}, exchangeError(p.platform, err)
	}

	creds := domain.Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scopes:       cfg.Scopes,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		creds.ExpiresAt = &expiry
	}
	return creds, nil
}

// exchangeError maps a failed token request to the error taxonomy. A 5xx or
// a network failure is a TransportError; any other answer from the token
// endpoint means the platform refused the grant.
func exchangeError(platform domain.Platform, err error) error {
	var retrieve *oauth2.RetrieveError
	if !errors.As(err, &retrieve) {
		return &domain.TransportError{Err: fmt.Errorf("%s token exchange failed: %w", platform, err)}
	}
	if retrieve.Response != nil && retrieve.Response.StatusCode >= http.StatusInternalServerError {
		return &domain.TransportError{
			StatusCode: retrieve.Response.StatusCode,
			Err:        fmt.Errorf("%s token exchange failed: %w", platform, err),
		}
	}
	return fmt.Errorf("%w: %s token exchange failed: %w", domain.ErrPlatformUnauthorized, platform, err)
}

// bearerClient returns an HTTP client that authenticates with creds
func bearerClient(ctx context.Context, base *http.Client, creds domain.Credentials) *http.Client {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: creds.AccessToken,
		TokenType:   "Bearer",
	}))
}
