package ports

import (
	"context"

	"archie-core-integrations-layer/internal/domain"
)

// ConnectionMutation receives the current record for a key (nil when absent)
// and returns the record to store. Returning (nil, nil) leaves storage untouched.
// Returning an error aborts the write and is passed through to the caller.
type ConnectionMutation func(current *domain.Connection) (*domain.Connection, error)

// ConnectionRepository defines the interface for integration connection persistence.
// Records are keyed by (tenantID, platform).
type ConnectionRepository interface {
	// Get retrieves the connection for a key; returns nil, nil when absent
	Get(ctx context.Context, tenantID string, platform domain.Platform) (*domain.Connection, error)

	// ListByTenant retrieves every connection of a tenant
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.Connection, error)

	// Mutate performs an atomic read-modify-write on one key. Concurrent
	// mutations of the same key never lose updates; different keys never contend.
	// It returns the stored record (or the unchanged current one when mutate returns nil).
	Mutate(ctx context.Context, tenantID string, platform domain.Platform, mutate ConnectionMutation) (*domain.Connection, error)
}
