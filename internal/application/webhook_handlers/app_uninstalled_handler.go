package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"archie-core-integrations-layer/internal/application"
	"archie-core-integrations-layer/internal/domain"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler revokes the Shopify connection of a tenant whose
// store uninstalled the app
type AppUninstalledHandler struct {
	logger   zerolog.Logger
	registry *application.IntegrationRegistry
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(logger zerolog.Logger, registry *application.IntegrationRegistry) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		logger:   logger,
		registry: registry,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == "app/uninstalled"
}

// Handle processes an app uninstalled webhook event
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	shopDomain, err := shopFromEvent(event)
	if err != nil {
		return fmt.Errorf("failed to parse app uninstalled webhook payload: %w", err)
	}

	// A stale webhook from a previously connected store must not revoke the current one.
	revoked, err := h.registry.RevokeMatching(ctx, event.TenantID, domain.PlatformShopify, "app uninstalled", matchesShop(shopDomain))
	if err != nil {
		return err
	}
	if !revoked {
		h.logger.Warn().
			Str("tenantId", event.TenantID).
			Str("shop", shopDomain).
			Msg("Ignoring app uninstalled webhook, no connection for this shop")
		return nil
	}

	h.logger.Info().
		Str("tenantId", event.TenantID).
		Str("shop", shopDomain).
		Msg("App uninstalled - connection revoked")
	return nil
}

// shopFromEvent returns the shop domain from the header, falling back to the payload
func shopFromEvent(event *domain.WebhookEvent) (string, error) {
	if event.Shop != "" {
		return event.Shop, nil
	}
	var shopData map[string]interface{}
	if err := json.Unmarshal(event.Payload, &shopData); err != nil {
		return "", err
	}
	for _, key := range []string{"myshopify_domain", "shop_domain", "domain"} {
		if d, ok := shopData[key].(string); ok && d != "" {
			return d, nil
		}
	}
	return "", nil
}

// matchesShop accepts a connection held by shopDomain. An unknown shop on
// either side matches.
func matchesShop(shopDomain string) func(conn *domain.Connection) bool {
	return func(conn *domain.Connection) bool {
		connectedShop := conn.Credentials.ExternalAccountID
		return connectedShop == "" || shopDomain == "" || strings.EqualFold(connectedShop, shopDomain)
	}
}
