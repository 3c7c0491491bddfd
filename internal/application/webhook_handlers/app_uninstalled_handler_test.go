package webhook_handlers

import (
	"context"
	"testing"

	"archie-core-integrations-layer/internal/application"
	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/infrastructure/repository"
	"archie-core-integrations-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedRegistry(t *testing.T, shop string) *application.IntegrationRegistry {
	t.Helper()
	return connectedRegistryOn(t, repository.NewMemoryConnectionRepository(), shop)
}

func connectedRegistryOn(t *testing.T, repo ports.ConnectionRepository, shop string) *application.IntegrationRegistry {
	t.Helper()
	registry := application.NewIntegrationRegistry(repo, nil, zerolog.Nop())
	ctx := context.Background()
	_, err := registry.StartConnection(ctx, "tenant-1", domain.PlatformShopify)
	require.NoError(t, err)
	_, err = registry.CompleteConnection(ctx, "tenant-1", domain.PlatformShopify, domain.Credentials{
		AccessToken:       "shpat_x",
		ExternalAccountID: shop,
	}, nil)
	require.NoError(t, err)
	return registry
}

func TestAppUninstalledHandler_RevokesConnection(t *testing.T) {
	registry := connectedRegistry(t, "shop.myshopify.com")
	h := NewAppUninstalledHandler(zerolog.Nop(), registry)
	assert.True(t, h.CanHandle("app/uninstalled"))
	assert.False(t, h.CanHandle("orders/create"))

	err := h.Handle(context.Background(), &domain.WebhookEvent{
		Topic:    "app/uninstalled",
		TenantID: "tenant-1",
		Payload:  []byte(`{"myshopify_domain":"shop.myshopify.com"}`),
		Verified: true,
	})
	require.NoError(t, err)

	conn, err := registry.Get(context.Background(), "tenant-1", domain.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, conn.Status)
	assert.Equal(t, "app uninstalled", conn.DisconnectReason)
}

func TestAppUninstalledHandler_IgnoresOtherShop(t *testing.T) {
	registry := connectedRegistry(t, "current.myshopify.com")
	h := NewAppUninstalledHandler(zerolog.Nop(), registry)

	err := h.Handle(context.Background(), &domain.WebhookEvent{
		Topic:    "app/uninstalled",
		Shop:     "old.myshopify.com",
		TenantID: "tenant-1",
		Verified: true,
	})
	require.NoError(t, err)

	conn, err := registry.Get(context.Background(), "tenant-1", domain.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, conn.Status)
}

func TestAppUninstalledHandler_UnknownTenant(t *testing.T) {
	registry := application.NewIntegrationRegistry(repository.NewMemoryConnectionRepository(), nil, zerolog.Nop())
	h := NewAppUninstalledHandler(zerolog.Nop(), registry)

	err := h.Handle(context.Background(), &domain.WebhookEvent{Topic: "app/uninstalled", Shop: "x.myshopify.com", TenantID: "nobody", Verified: true})
	assert.NoError(t, err)
}

// reconnectingRepository moves the stored Shopify record to another shop
// right before the next write, as a concurrent reconnect would
type reconnectingRepository struct {
	ports.ConnectionRepository
	armed   bool
	newShop string
}

func (r *reconnectingRepository) Mutate(ctx context.Context, tenantID string, platform domain.Platform, mutate ports.ConnectionMutation) (*domain.Connection, error) {
	if r.armed {
		r.armed = false
		_, err := r.ConnectionRepository.Mutate(ctx, tenantID, platform, func(current *domain.Connection) (*domain.Connection, error) {
			current.Credentials = domain.Credentials{AccessToken: "shpat_new", ExternalAccountID: r.newShop}
			return current, nil
		})
		if err != nil {
			return nil, err
		}
	}
	return r.ConnectionRepository.Mutate(ctx, tenantID, platform, mutate)
}

func TestAppUninstalledHandler_ShopCheckedAtWriteTime(t *testing.T) {
	repo := &reconnectingRepository{ConnectionRepository: repository.NewMemoryConnectionRepository(), newShop: "new.myshopify.com"}
	registry := connectedRegistryOn(t, repo, "old.myshopify.com")
	repo.armed = true
	h := NewAppUninstalledHandler(zerolog.Nop(), registry)

	err := h.Handle(context.Background(), &domain.WebhookEvent{
		Topic:    "app/uninstalled",
		Shop:     "old.myshopify.com",
		TenantID: "tenant-1",
		Verified: true,
	})
	require.NoError(t, err)

	conn, err := registry.Get(context.Background(), "tenant-1", domain.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, conn.Status)
	assert.Equal(t, "new.myshopify.com", conn.Credentials.ExternalAccountID)
	assert.Equal(t, "shpat_new", conn.Credentials.AccessToken)
}
