package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IntegrationService is the entry point for every tenant-facing integration
// operation. It routes each request to the registry, the sub-account selector
// or the Shopify client.
type IntegrationService struct {
	registry    *IntegrationRegistry
	selector    *SubAccountSelector
	pixels      ports.WebPixelCreator
	states      ports.AuthorizationStateStore
	providers   map[domain.Platform]ports.OAuthProvider
	discoverers map[domain.Platform]ports.SubAccountDiscoverer
	logger      zerolog.Logger
	redirectURI string
	stateTTL    time.Duration
	now         func() time.Time
}

// NewIntegrationService creates a new integration service
func NewIntegrationService(
	registry *IntegrationRegistry,
	selector *SubAccountSelector,
	pixels ports.WebPixelCreator,
	states ports.AuthorizationStateStore,
	logger zerolog.Logger,
	redirectURI string,
	stateTTL time.Duration,
) *IntegrationService {
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	return &IntegrationService{
		registry:    registry,
		selector:    selector,
		pixels:      pixels,
		states:      states,
		providers:   make(map[domain.Platform]ports.OAuthProvider),
		discoverers: make(map[domain.Platform]ports.SubAccountDiscoverer),
		logger:      logger,
		redirectURI: redirectURI,
		stateTTL:    stateTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RegisterProvider makes a platform connectable
func (s *IntegrationService) RegisterProvider(provider ports.OAuthProvider) {
	s.providers[provider.Platform()] = provider
}

// RegisterDiscoverer attaches sub-account discovery to a platform
func (s *IntegrationService) RegisterDiscoverer(discoverer ports.SubAccountDiscoverer) {
	s.discoverers[discoverer.Platform()] = discoverer
}

// ConnectInput represents input for a direct connect with an authorization code
type ConnectInput struct {
	TenantID    string
	Platform    string
	Code        string
	Shop        string
	RedirectURI string
}

// Connect starts and completes a connection in one step using an
// authorization code the caller already obtained
func (s *IntegrationService) Connect(ctx context.Context, input ConnectInput) (*domain.Connection, error) {
	platform, err := domain.ParsePlatform(input.Platform)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Code) == "" {
		return nil, fmt.Errorf("%w: authorization code is required", domain.ErrValidation)
	}
	if platform == domain.PlatformShopify && strings.TrimSpace(input.Shop) == "" {
		return nil, fmt.Errorf("%w: shop is required for %s", domain.ErrValidation, platform)
	}
	provider, err := s.provider(platform)
	if err != nil {
		return nil, err
	}

	pending, err := s.registry.StartConnection(ctx, input.TenantID, platform)
	if err != nil {
		return nil, err
	}

	redirectURI := input.RedirectURI
	if redirectURI == "" {
		redirectURI = s.redirectURI
	}
	return s.finishConnect(ctx, input.TenantID, platform, pending.Version, provider, ports.AuthorizationGrant{
		Code:        input.Code,
		RedirectURI: redirectURI,
		Shop:        input.Shop,
	})
}

// BeginConnectInput represents input for starting an OAuth redirect flow
type BeginConnectInput struct {
	TenantID string
	Platform string
	Shop     string
}

// BeginConnectResult carries the URL the tenant must be redirected to
type BeginConnectResult struct {
	AuthorizationURL string
	State            string
	ExpiresAt        time.Time
}

// BeginConnect marks the integration CONNECTING and returns the platform's
// authorization URL. The state nonce is single use.
func (s *IntegrationService) BeginConnect(ctx context.Context, input BeginConnectInput) (*BeginConnectResult, error) {
	platform, err := domain.ParsePlatform(input.Platform)
	if err != nil {
		return nil, err
	}
	shop := strings.TrimSpace(input.Shop)
	if platform == domain.PlatformShopify && shop == "" {
		return nil, fmt.Errorf("%w: shop is required for %s", domain.ErrValidation, platform)
	}
	provider, err := s.provider(platform)
	if err != nil {
		return nil, err
	}

	pending, err := s.registry.StartConnection(ctx, input.TenantID, platform)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &domain.AuthorizationSession{
		State:             uuid.NewString(),
		TenantID:          input.TenantID,
		Platform:          platform,
		Shop:              shop,
		RedirectURI:       s.redirectURI,
		ConnectionVersion: pending.Version,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.stateTTL),
	}
	if err := s.states.Save(ctx, session, s.stateTTL); err != nil {
		return nil, fmt.Errorf("failed to store authorization state: %w", err)
	}

	authURL, err := provider.AuthorizationURL(ports.AuthorizationRequest{
		State:       session.State,
		RedirectURI: session.RedirectURI,
		Shop:        shop,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("platform", string(platform)).Msg("Failed to build authorization URL")
		return nil, fmt.Errorf("failed to build authorization URL: %w", err)
	}

	s.logger.Info().
		Str("tenantId", input.TenantID).
		Str("platform", string(platform)).
		Str("shop", shop).
		Msg("Generated OAuth authorization URL")

	return &BeginConnectResult{
		AuthorizationURL: authURL,
		State:            session.State,
		ExpiresAt:        session.ExpiresAt,
	}, nil
}

// CompleteConnectInput represents the parameters of an OAuth callback
type CompleteConnectInput struct {
	State string
	Code  string
	Shop  string
}

// CompleteConnect consumes the state of a pending redirect flow and finishes
// the connection it belongs to
func (s *IntegrationService) CompleteConnect(ctx context.Context, input CompleteConnectInput) (*domain.Connection, error) {
	if input.State == "" || input.Code == "" {
		return nil, fmt.Errorf("%w: state and code are required", domain.ErrValidation)
	}

	session, err := s.states.Consume(ctx, input.State)
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization state: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: unknown or expired state", domain.ErrNoPendingConnection)
	}
	if session.Shop != "" && input.Shop != "" && !strings.EqualFold(session.Shop, input.Shop) {
		return nil, fmt.Errorf("%w: shop does not match the pending connection", domain.ErrValidation)
	}

	provider, err := s.provider(session.Platform)
	if err != nil {
		return nil, err
	}
	return s.finishConnect(ctx, session.TenantID, session.Platform, session.ConnectionVersion, provider, ports.AuthorizationGrant{
		Code:        input.Code,
		RedirectURI: session.RedirectURI,
		Shop:        session.Shop,
	})
}

// finishConnect exchanges the grant, discovers sub-accounts and completes the
// connection. An irrecoverable failure returns the flow's own CONNECTING
// record to DISCONNECTED; a record another flow has since written is kept.
func (s *IntegrationService) finishConnect(
	ctx context.Context,
	tenantID string,
	platform domain.Platform,
	pendingVersion int64,
	provider ports.OAuthProvider,
	grant ports.AuthorizationGrant,
) (*domain.Connection, error) {
	credentials, err := provider.Exchange(ctx, grant)
	if err != nil {
		s.logger.Error().Err(err).Str("tenantId", tenantID).Str("platform", string(platform)).Msg("Failed to exchange authorization code")
		s.abandonPending(ctx, tenantID, platform, pendingVersion, "authorization code exchange failed")
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	var subAccounts []domain.SubAccount
	if platform.SupportsSubAccounts() {
		if discoverer, ok := s.discoverers[platform]; ok {
			subAccounts, err = discoverer.Discover(ctx, credentials)
			if err != nil {
				s.logger.Error().Err(err).Str("tenantId", tenantID).Str("platform", string(platform)).Msg("Failed to discover sub-accounts")
				s.abandonPending(ctx, tenantID, platform, pendingVersion, "sub-account discovery failed")
				return nil, fmt.Errorf("failed to discover sub-accounts: %w", err)
			}
		}
	}

	conn, err := s.registry.CompleteConnection(ctx, tenantID, platform, credentials, subAccounts)
	if err != nil {
		if !errors.Is(err, domain.ErrNoPendingConnection) {
			s.abandonPending(ctx, tenantID, platform, pendingVersion, "connection could not be completed")
		}
		return nil, err
	}
	return conn, nil
}

func (s *IntegrationService) abandonPending(ctx context.Context, tenantID string, platform domain.Platform, version int64, reason string) {
	if err := s.registry.AbandonPending(ctx, tenantID, platform, version, reason); err != nil {
		s.logger.Warn().Err(err).Str("tenantId", tenantID).Str("platform", string(platform)).Msg("Failed to reset pending connection")
	}
}

// revokeCredential revokes the Shopify record only while it still holds the
// rejected token
func (s *IntegrationService) revokeCredential(ctx context.Context, tenantID, accessToken, reason string) {
	_, err := s.registry.RevokeMatching(ctx, tenantID, domain.PlatformShopify, reason, func(conn *domain.Connection) bool {
		return conn.Status == domain.StatusConnected && conn.Credentials.AccessToken == accessToken
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("tenantId", tenantID).Msg("Failed to revoke connection")
	}
}

// Disconnect disconnects a platform for a tenant. The platform name is
// validated before any state is touched.
func (s *IntegrationService) Disconnect(ctx context.Context, tenantID string, platformName string) error {
	platform, err := domain.ParsePlatform(platformName)
	if err != nil {
		return err
	}
	return s.registry.Disconnect(ctx, tenantID, platform)
}

// SelectInstagramAccount makes an Instagram business account the primary one
func (s *IntegrationService) SelectInstagramAccount(ctx context.Context, tenantID string, instagramAccountID string) (*domain.Connection, error) {
	if strings.TrimSpace(instagramAccountID) == "" {
		return nil, fmt.Errorf("%w: instagram account id is required", domain.ErrValidation)
	}
	return s.selector.SelectPrimary(ctx, tenantID, domain.PlatformInstagram, instagramAccountID)
}

// SelectGoogleAdsCustomer makes a Google Ads customer the primary one
func (s *IntegrationService) SelectGoogleAdsCustomer(ctx context.Context, tenantID string, customerID string) (*domain.Connection, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, fmt.Errorf("%w: customer id is required", domain.ErrValidation)
	}
	return s.selector.SelectPrimary(ctx, tenantID, domain.PlatformGoogleAds, customerID)
}

// CreateWebPixel creates a Shopify web pixel for a tenant's connected store
func (s *IntegrationService) CreateWebPixel(ctx context.Context, tenantID string, name string) (*domain.WebPixel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: pixel name is required", domain.ErrValidation)
	}

	conn, err := s.registry.Get(ctx, tenantID, domain.PlatformShopify)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotConnected, domain.PlatformShopify)
		}
		return nil, err
	}
	if conn.Status != domain.StatusConnected {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrNotConnected, domain.PlatformShopify, conn.Status)
	}

	settings, err := pixelSettings(tenantID, name)
	if err != nil {
		return nil, err
	}

	credential := ports.PlatformCredential{
		TenantID:    tenantID,
		Platform:    domain.PlatformShopify,
		Shop:        conn.Credentials.ExternalAccountID,
		AccessToken: conn.Credentials.AccessToken,
	}
	pixel, err := s.pixels.CreateWebPixel(ctx, credential, settings)
	if err != nil {
		if errors.Is(err, domain.ErrPlatformUnauthorized) {
			s.revokeCredential(ctx, tenantID, credential.AccessToken, "shopify rejected the access token")
		}
		return nil, err
	}

	s.logger.Info().
		Str("tenantId", tenantID).
		Str("shop", credential.Shop).
		Str("pixelId", pixel.ID).
		Msg("Created web pixel")
	return pixel, nil
}

// GetConnection retrieves one connection of a tenant
func (s *IntegrationService) GetConnection(ctx context.Context, tenantID string, platformName string) (*domain.Connection, error) {
	platform, err := domain.ParsePlatform(platformName)
	if err != nil {
		return nil, err
	}
	return s.registry.Get(ctx, tenantID, platform)
}

// ListConnections retrieves every connection of a tenant
func (s *IntegrationService) ListConnections(ctx context.Context, tenantID string) ([]*domain.Connection, error) {
	return s.registry.List(ctx, tenantID)
}

func (s *IntegrationService) provider(platform domain.Platform) (ports.OAuthProvider, error) {
	provider, ok := s.providers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", domain.ErrUnsupportedOperation, platform)
	}
	return provider, nil
}

func pixelSettings(tenantID, name string) (string, error) {
	raw, err := json.Marshal(map[string]string{
		"accountID": tenantID,
		"pixelName": name,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode pixel settings: %w", err)
	}
	return string(raw), nil
}
