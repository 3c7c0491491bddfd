package webhook_handlers

import (
	"context"
	"testing"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/infrastructure/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplianceHandler_CanHandle(t *testing.T) {
	h := NewComplianceHandler(zerolog.Nop(), nil)
	assert.True(t, h.CanHandle(TopicCustomersDataRequest))
	assert.True(t, h.CanHandle(TopicCustomersRedact))
	assert.True(t, h.CanHandle(TopicShopRedact))
	assert.False(t, h.CanHandle("app/uninstalled"))
}

func TestComplianceHandler_CustomerRequestsLeaveConnection(t *testing.T) {
	registry := connectedRegistry(t, "shop.myshopify.com")
	h := NewComplianceHandler(zerolog.Nop(), registry)

	err := h.Handle(context.Background(), &domain.WebhookEvent{
		Topic:    TopicCustomersRedact,
		TenantID: "tenant-1",
		Payload:  []byte(`{"shop_domain":"shop.myshopify.com","customer":{"id":1}}`),
		Verified: true,
	})
	require.NoError(t, err)

	conn, err := registry.Get(context.Background(), "tenant-1", domain.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, conn.Status)
}

func TestComplianceHandler_ShopRedactErasesCredentials(t *testing.T) {
	registry := connectedRegistry(t, "shop.myshopify.com")
	h := NewComplianceHandler(zerolog.Nop(), registry)

	err := h.Handle(context.Background(), &domain.WebhookEvent{
		Topic:    TopicShopRedact,
		TenantID: "tenant-1",
		Payload:  []byte(`{"shop_domain":"shop.myshopify.com"}`),
		Verified: true,
	})
	require.NoError(t, err)

	conn, err := registry.Get(context.Background(), "tenant-1", domain.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, conn.Status)
	assert.True(t, conn.Credentials.IsEmpty())
	assert.Equal(t, "shop data redacted", conn.DisconnectReason)
}

func TestComplianceHandler_MalformedPayload(t *testing.T) {
	h := NewComplianceHandler(zerolog.Nop(), nil)

	err := h.Handle(context.Background(), &domain.WebhookEvent{
		Topic:    TopicShopRedact,
		TenantID: "tenant-1",
		Payload:  []byte(`not json`),
		Verified: true,
	})
	assert.Error(t, err)
}

func TestComplianceHandler_ShopRedactKeepsReconnectedShop(t *testing.T) {
	repo := &reconnectingRepository{ConnectionRepository: repository.NewMemoryConnectionRepository(), newShop: "new.myshopify.com"}
	registry := connectedRegistryOn(t, repo, "old.myshopify.com")
	repo.armed = true
	h := NewComplianceHandler(zerolog.Nop(), registry)

	err := h.Handle(context.Background(), &domain.WebhookEvent{
		Topic:    TopicShopRedact,
		TenantID: "tenant-1",
		Payload:  []byte(`{"shop_domain":"old.myshopify.com"}`),
		Verified: true,
	})
	require.NoError(t, err)

	conn, err := registry.Get(context.Background(), "tenant-1", domain.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, conn.Status)
	assert.Equal(t, "shpat_new", conn.Credentials.AccessToken)
}
