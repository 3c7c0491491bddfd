package application

import (
	"context"
	"fmt"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/ports"

	"github.com/rs/zerolog"
)

// WebhookService dispatches verified platform webhooks to their handlers
type WebhookService struct {
	log      ports.WebhookLog
	handlers []ports.WebhookHandler
	logger   zerolog.Logger
}

// NewWebhookService creates a new webhook service. log may be nil.
func NewWebhookService(log ports.WebhookLog, logger zerolog.Logger, handlers ...ports.WebhookHandler) *WebhookService {
	return &WebhookService{
		log:      log,
		handlers: handlers,
		logger:   logger,
	}
}

// ProcessWebhook runs every handler that accepts the event's topic.
// Unverified events are rejected.
func (s *WebhookService) ProcessWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	if !event.Verified {
		return fmt.Errorf("%w: webhook signature not verified", domain.ErrValidation)
	}

	if s.log != nil {
		if err := s.log.LogWebhook(ctx, event); err != nil {
			// Handlers still run; the log is an audit trail only
			s.logger.Error().Err(err).Str("topic", event.Topic).Msg("Failed to log webhook event")
		}
	}

	handled := false
	for _, h := range s.handlers {
		if !h.CanHandle(event.Topic) {
			continue
		}
		handled = true
		if err := h.Handle(ctx, event); err != nil {
			s.logger.Error().Err(err).Str("topic", event.Topic).Str("shop", event.Shop).Msg("Webhook handler failed")
			return fmt.Errorf("failed to handle %s webhook: %w", event.Topic, err)
		}
	}

	s.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Str("tenantId", event.TenantID).
		Bool("handled", handled).
		Msg("Webhook processed")
	return nil
}
