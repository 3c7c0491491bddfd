package pubsub

import (
	"context"
	"sync"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConnectionEventChannel represents a subscription channel
type ConnectionEventChannel struct {
	ID     string
	Filter *ConnectionEventFilter
	Events chan *domain.ConnectionEvent
	Done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// ConnectionEventFilter filters connection events. TenantID is mandatory for
// tenant-facing subscriptions.
type ConnectionEventFilter struct {
	TenantID  string
	Platforms []domain.Platform
}

// ConnectionPubSub fans out connection lifecycle events to subscribers
type ConnectionPubSub struct {
	mu         sync.RWMutex
	channels   map[string]*ConnectionEventChannel
	bufferSize int
	logger     zerolog.Logger
}

// NewConnectionPubSub creates a new connection event pub/sub
func NewConnectionPubSub(logger zerolog.Logger) *ConnectionPubSub {
	return &ConnectionPubSub{
		channels:   make(map[string]*ConnectionEventChannel),
		bufferSize: 16,
		logger:     logger,
	}
}

// Subscribe creates a new subscription channel that lives until ctx is done
func (ps *ConnectionPubSub) Subscribe(ctx context.Context, filter *ConnectionEventFilter) *ConnectionEventChannel {
	subCtx, cancel := context.WithCancel(ctx)

	channel := &ConnectionEventChannel{
		ID:     uuid.NewString(),
		Filter: filter,
		Events: make(chan *domain.ConnectionEvent, ps.bufferSize),
		Done:   make(chan struct{}),
		ctx:    subCtx,
		cancel: cancel,
	}

	ps.mu.Lock()
	ps.channels[channel.ID] = channel
	ps.mu.Unlock()
	metrics.EventSubscribers.Inc()

	ps.logger.Info().
		Str("channelId", channel.ID).
		Interface("filter", filter).
		Msg("Connection event subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(channel.ID)
	}()

	return channel
}

// Unsubscribe removes a subscription channel
func (ps *ConnectionPubSub) Unsubscribe(channelID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	channel, exists := ps.channels[channelID]
	if !exists {
		return
	}

	close(channel.Events)
	close(channel.Done)
	channel.cancel()
	delete(ps.channels, channelID)
	metrics.EventSubscribers.Dec()

	ps.logger.Info().
		Str("channelId", channelID).
		Msg("Connection event subscription removed")
}

// Publish broadcasts an event to all matching subscribers without blocking
func (ps *ConnectionPubSub) Publish(event *domain.ConnectionEvent) {
	metrics.ConnectionTransitionsTotal.WithLabelValues(string(event.Platform), string(event.Status)).Inc()

	ps.mu.RLock()
	defer ps.mu.RUnlock()

	published := 0
	for _, channel := range ps.channels {
		if !matchesFilter(event, channel.Filter) {
			continue
		}
		select {
		case channel.Events <- event:
			published++
		case <-channel.ctx.Done():
		default:
			ps.logger.Warn().
				Str("channelId", channel.ID).
				Msg("Channel buffer full, dropping event")
		}
	}

	if published > 0 {
		ps.logger.Debug().
			Str("tenantId", event.TenantID).
			Str("platform", string(event.Platform)).
			Str("status", string(event.Status)).
			Int("subscribers", published).
			Msg("Published connection event to subscribers")
	}
}

func matchesFilter(event *domain.ConnectionEvent, filter *ConnectionEventFilter) bool {
	if filter == nil {
		return true
	}
	if filter.TenantID != "" && event.TenantID != filter.TenantID {
		return false
	}
	if len(filter.Platforms) == 0 {
		return true
	}
	for _, p := range filter.Platforms {
		if event.Platform == p {
			return true
		}
	}
	return false
}

// Stats returns pub/sub statistics
func (ps *ConnectionPubSub) Stats() map[string]interface{} {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return map[string]interface{}{
		"active_subscriptions": len(ps.channels),
	}
}
