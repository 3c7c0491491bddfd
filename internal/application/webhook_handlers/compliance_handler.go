package webhook_handlers

import (
	"context"
	"fmt"

	"archie-core-integrations-layer/internal/application"
	"archie-core-integrations-layer/internal/domain"

	"github.com/rs/zerolog"
)

// Mandatory Shopify privacy webhook topics
const (
	TopicCustomersDataRequest = "customers/data_request"
	TopicCustomersRedact      = "customers/redact"
	TopicShopRedact           = "shop/redact"
)

// ComplianceHandler answers Shopify's privacy webhooks. No customer records
// are stored, so customer requests are acknowledged; shop/redact erases the
// stored Shopify credentials of the tenant.
type ComplianceHandler struct {
	logger   zerolog.Logger
	registry *application.IntegrationRegistry
}

// NewComplianceHandler creates a new privacy webhook handler
func NewComplianceHandler(logger zerolog.Logger, registry *application.IntegrationRegistry) *ComplianceHandler {
	return &ComplianceHandler{
		logger:   logger,
		registry: registry,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *ComplianceHandler) CanHandle(topic string) bool {
	return topic == TopicCustomersDataRequest ||
		topic == TopicCustomersRedact ||
		topic == TopicShopRedact
}

// Handle processes a privacy webhook event
func (h *ComplianceHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	shopDomain, err := shopFromEvent(event)
	if err != nil {
		return fmt.Errorf("failed to parse %s webhook payload: %w", event.Topic, err)
	}

	if event.Topic != TopicShopRedact {
		h.logger.Info().
			Str("tenantId", event.TenantID).
			Str("shop", shopDomain).
			Str("topic", event.Topic).
			Msg("Privacy request acknowledged, no customer data held")
		return nil
	}

	redacted, err := h.registry.RevokeMatching(ctx, event.TenantID, domain.PlatformShopify, "shop data redacted", matchesShop(shopDomain))
	if err != nil {
		return err
	}
	if !redacted {
		h.logger.Warn().
			Str("tenantId", event.TenantID).
			Str("shop", shopDomain).
			Msg("Ignoring shop redact webhook, no connection for this shop")
		return nil
	}

	h.logger.Info().
		Str("tenantId", event.TenantID).
		Str("shop", shopDomain).
		Msg("Shop redacted - credentials erased")
	return nil
}
