package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/ports"

	"github.com/google/uuid"
)

// MemoryConnectionRepository implements ConnectionRepository in process memory.
// Each (tenant, platform) key has its own mutex; the map mutex is held only
// for map access, never across a mutation.
type MemoryConnectionRepository struct {
	mu      sync.Mutex
	records map[string]*domain.Connection
	locks   map[string]*sync.Mutex
}

// NewMemoryConnectionRepository creates an empty in-memory repository
func NewMemoryConnectionRepository() *MemoryConnectionRepository {
	return &MemoryConnectionRepository{
		records: make(map[string]*domain.Connection),
		locks:   make(map[string]*sync.Mutex),
	}
}

func connectionKey(tenantID string, platform domain.Platform) string {
	return tenantID + "/" + string(platform)
}

func (r *MemoryConnectionRepository) keyLock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	return lock
}

func (r *MemoryConnectionRepository) load(key string) *domain.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[key].Clone()
}

// Get retrieves a copy of the connection for a key
func (r *MemoryConnectionRepository) Get(_ context.Context, tenantID string, platform domain.Platform) (*domain.Connection, error) {
	return r.load(connectionKey(tenantID, platform)), nil
}

// ListByTenant retrieves copies of a tenant's connections ordered by platform
func (r *MemoryConnectionRepository) ListByTenant(_ context.Context, tenantID string) ([]*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Connection
	for _, c := range r.records {
		if c.TenantID == tenantID {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

// Mutate runs mutate under the key's mutex
func (r *MemoryConnectionRepository) Mutate(ctx context.Context, tenantID string, platform domain.Platform, mutate ports.ConnectionMutation) (*domain.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := connectionKey(tenantID, platform)
	lock := r.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	current := r.load(key)
	next, err := mutate(current.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}

	now := time.Now().UTC()
	next.UpdatedAt = now
	if current == nil {
		next.ID = uuid.NewString()
		next.CreatedAt = now
		next.Version = 1
	} else {
		next.ID = current.ID
		next.CreatedAt = current.CreatedAt
		next.Version = current.Version + 1
	}

	r.mu.Lock()
	r.records[key] = next.Clone()
	r.mu.Unlock()

	return next, nil
}
