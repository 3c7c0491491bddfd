package ports

import (
	"context"
	"time"

	"archie-core-integrations-layer/internal/domain"
)

// AuthorizationStateStore keeps pending OAuth redirect sessions
type AuthorizationStateStore interface {
	// Save stores a session under its state nonce for ttl
	Save(ctx context.Context, session *domain.AuthorizationSession, ttl time.Duration) error

	// Consume returns and deletes the session for state; returns nil, nil when
	// unknown or expired. A state can be consumed once.
	Consume(ctx context.Context, state string) (*domain.AuthorizationSession, error)
}

// EncryptionService seals secrets before they reach storage
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// EventPublisher broadcasts connection lifecycle events
type EventPublisher interface {
	Publish(event *domain.ConnectionEvent)
}

// WebhookHandler processes one kind of verified platform webhook
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookLog keeps an audit trail of received webhooks
type WebhookLog interface {
	LogWebhook(ctx context.Context, event *domain.WebhookEvent) error
}
