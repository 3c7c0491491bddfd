package application

import (
	"context"
	"errors"
	"testing"

	"archie-core-integrations-layer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type topicHandler struct {
	topic  string
	events []*domain.WebhookEvent
}

func (h *topicHandler) CanHandle(topic string) bool { return topic == h.topic }

func (h *topicHandler) Handle(_ context.Context, event *domain.WebhookEvent) error {
	h.events = append(h.events, event)
	return nil
}

type recordingWebhookLog struct {
	events []*domain.WebhookEvent
	err    error
}

func (l *recordingWebhookLog) LogWebhook(_ context.Context, event *domain.WebhookEvent) error {
	l.events = append(l.events, event)
	return l.err
}

func TestWebhookService_DispatchesByTopic(t *testing.T) {
	log := &recordingWebhookLog{}
	uninstalled := &topicHandler{topic: "app/uninstalled"}
	other := &topicHandler{topic: "shop/update"}
	svc := NewWebhookService(log, zerolog.Nop(), uninstalled, other)

	err := svc.ProcessWebhook(context.Background(), &domain.WebhookEvent{Topic: "app/uninstalled", Verified: true})
	require.NoError(t, err)
	assert.Len(t, uninstalled.events, 1)
	assert.Empty(t, other.events)
	assert.Len(t, log.events, 1)
}

func TestWebhookService_RejectsUnverified(t *testing.T) {
	h := &topicHandler{topic: "app/uninstalled"}
	svc := NewWebhookService(nil, zerolog.Nop(), h)

	err := svc.ProcessWebhook(context.Background(), &domain.WebhookEvent{Topic: "app/uninstalled"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, h.events)
}

func TestWebhookService_LogFailureDoesNotBlockHandlers(t *testing.T) {
	log := &recordingWebhookLog{err: errors.New("mongo unavailable")}
	h := &topicHandler{topic: "app/uninstalled"}
	svc := NewWebhookService(log, zerolog.Nop(), h)

	err := svc.ProcessWebhook(context.Background(), &domain.WebhookEvent{Topic: "app/uninstalled", Verified: true})
	require.NoError(t, err)
	assert.Len(t, h.events, 1)
}
