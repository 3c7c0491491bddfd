package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/infrastructure/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StateKeyPrefix is the prefix for pending OAuth state keys
const StateKeyPrefix = "integrations:oauth:state:"

// stateBackend is the subset of the Redis API the store needs
type stateBackend interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// RedisStateStore keeps pending OAuth sessions in Redis so any instance can
// complete a flow another instance started
type RedisStateStore struct {
	rdb    stateBackend
	logger zerolog.Logger
}

// NewRedisStateStore creates a new Redis state store
func NewRedisStateStore(rdb *redis.Client, logger zerolog.Logger) *RedisStateStore {
	return &RedisStateStore{rdb: rdb, logger: logger}
}

func stateKey(state string) string {
	return StateKeyPrefix + state
}

// Save stores session under its state for ttl
func (s *RedisStateStore) Save(ctx context.Context, session *domain.AuthorizationSession, ttl time.Duration) error {
	start := time.Now()
	defer func() {
		metrics.RedisOperationDuration.WithLabelValues("state_save").Observe(time.Since(start).Seconds())
	}()

	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode authorization session: %w", err)
	}
	if err := s.rdb.Set(ctx, stateKey(session.State), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store authorization session: %w", err)
	}
	return nil
}

// Consume atomically reads and deletes the session for state
func (s *RedisStateStore) Consume(ctx context.Context, state string) (*domain.AuthorizationSession, error) {
	start := time.Now()
	defer func() {
		metrics.RedisOperationDuration.WithLabelValues("state_consume").Observe(time.Since(start).Seconds())
	}()

	raw, err := s.rdb.GetDel(ctx, stateKey(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization session: %w", err)
	}

	var session domain.AuthorizationSession
	if err := json.Unmarshal(raw, &session); err != nil {
		s.logger.Warn().Err(err).Msg("Discarding unreadable authorization session")
		return nil, nil
	}
	if !session.ExpiresAt.IsZero() && time.Now().After(session.ExpiresAt) {
		return nil, nil
	}
	return &session, nil
}
