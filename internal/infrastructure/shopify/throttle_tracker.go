package shopify

import (
	"sync"
	"time"

	"archie-core-integrations-layer/internal/domain"
)

// ThrottleTracker keeps one throttle state per credential. Each credential
// has its own lock so unrelated tenants never wait on each other.
type ThrottleTracker struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	mu    sync.Mutex
	state domain.ThrottleState
	known bool
}

// NewThrottleTracker creates an empty tracker
func NewThrottleTracker() *ThrottleTracker {
	return &ThrottleTracker{buckets: make(map[string]*bucket)}
}

func (t *ThrottleTracker) bucket(key string) *bucket {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{}
		t.buckets[key] = b
	}
	return b
}

// Snapshot returns the current state of a credential, if one was observed
func (t *ThrottleTracker) Snapshot(key string) (domain.ThrottleState, bool) {
	b := t.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.known
}

// Observe overwrites the state with a server report
func (t *ThrottleTracker) Observe(key string, status domain.ThrottleStatus, at time.Time) {
	b := t.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = domain.NewThrottleState(status, at)
	b.known = true
}

// Reserve returns how long the caller must wait before at least required
// points are projected to be available. When no wait is needed the estimated
// cost is debited from the projection so concurrent callers pace each other.
// Unknown credentials and buckets that never refill are not paced.
func (t *ThrottleTracker) Reserve(key string, required, cost float64, now time.Time) time.Duration {
	b := t.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.known {
		return 0
	}

	wait, ok := b.state.WaitFor(required, now)
	if !ok {
		return 0
	}
	if wait > 0 {
		return wait
	}

	available := b.state.ProjectedAvailable(now) - cost
	if available < 0 {
		available = 0
	}
	b.state.CurrentlyAvailable = available
	b.state.LastObservedAt = now
	return 0
}
