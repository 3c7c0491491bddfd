package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"archie-core-integrations-layer/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend mimics SET with expiry and GETDEL
type fakeBackend struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeBackend) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeBackend) GetDel(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	delete(f.data, key)
	return redis.NewStringResult(v, nil)
}

func testSession(state string, expiresIn time.Duration) *domain.AuthorizationSession {
	now := time.Now().UTC()
	return &domain.AuthorizationSession{
		State:     state,
		TenantID:  "tenant-1",
		Platform:  domain.PlatformShopify,
		Shop:      "shop.myshopify.com",
		CreatedAt: now,
		ExpiresAt: now.Add(expiresIn),
	}
}

func TestRedisStateStore_SaveAndConsumeOnce(t *testing.T) {
	backend := newFakeBackend()
	store := &RedisStateStore{rdb: backend, logger: zerolog.Nop()}
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("s1", time.Minute), time.Minute))
	assert.Equal(t, time.Minute, backend.ttls[StateKeyPrefix+"s1"])

	got, err := store.Consume(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tenant-1", got.TenantID)
	assert.Equal(t, domain.PlatformShopify, got.Platform)

	again, err := store.Consume(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestRedisStateStore_ExpiredSession(t *testing.T) {
	store := &RedisStateStore{rdb: newFakeBackend(), logger: zerolog.Nop()}
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("old", -time.Second), time.Minute))
	got, err := store.Consume(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStateStore(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("s1", time.Minute), time.Minute))
	got, err := store.Consume(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = store.Consume(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now()
	store.now = func() time.Time { return now }
	require.NoError(t, store.Save(ctx, testSession("s2", time.Minute), time.Second))
	store.now = func() time.Time { return now.Add(2 * time.Second) }
	got, err = store.Consume(ctx, "s2")
	require.NoError(t, err)
	assert.Nil(t, got)
}
