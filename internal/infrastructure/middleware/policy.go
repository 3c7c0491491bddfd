package middleware

import (
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
)

// RoutePolicy declares which inbound credential checks a route skips.
// The zero value runs both checks.
type RoutePolicy struct {
	SkipAPIKeyAuth  bool
	SkipSessionAuth bool
}

// DefaultPolicy requires both the API key and a session token
var DefaultPolicy = RoutePolicy{}

// PublicPolicy skips every credential check
var PublicPolicy = RoutePolicy{SkipAPIKeyAuth: true, SkipSessionAuth: true}

// ServicePolicy requires only the API key
var ServicePolicy = RoutePolicy{SkipSessionAuth: true}

// Unauthenticated reports whether the route is served without any check
func (p RoutePolicy) Unauthenticated() bool {
	return p.SkipAPIKeyAuth && p.SkipSessionAuth
}

// RouteEntry is one declared route
type RouteEntry struct {
	Method  string
	Pattern string
	Policy  RoutePolicy
}

// PolicyTable records the policy each route was registered with
type PolicyTable struct {
	mu      sync.RWMutex
	entries map[string]RouteEntry
}

// NewPolicyTable creates an empty policy table
func NewPolicyTable() *PolicyTable {
	return &PolicyTable{entries: make(map[string]RouteEntry)}
}

func routeKey(method, pattern string) string {
	return method + " " + pattern
}

// Declare records the policy of a route
func (t *PolicyTable) Declare(method, pattern string, policy RoutePolicy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[routeKey(method, pattern)] = RouteEntry{Method: method, Pattern: pattern, Policy: policy}
}

// Resolve returns the declared policy of a route, or DefaultPolicy when the
// route was never declared
func (t *PolicyTable) Resolve(method, pattern string) RoutePolicy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if entry, ok := t.entries[routeKey(method, pattern)]; ok {
		return entry.Policy
	}
	return DefaultPolicy
}

// Entries lists every declared route ordered by pattern then method
func (t *PolicyTable) Entries() []RouteEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]RouteEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Unauthenticated lists the routes that skip every credential check
func (t *PolicyTable) Unauthenticated() []RouteEntry {
	var out []RouteEntry
	for _, e := range t.Entries() {
		if e.Policy.Unauthenticated() {
			out = append(out, e)
		}
	}
	return out
}

// GuardedRouter registers routes on a chi router together with their policy
type GuardedRouter struct {
	router chi.Router
	guard  *AuthGuard
	table  *PolicyTable
}

// NewGuardedRouter creates a GuardedRouter
func NewGuardedRouter(router chi.Router, guard *AuthGuard, table *PolicyTable) *GuardedRouter {
	return &GuardedRouter{
		router: router,
		guard:  guard,
		table:  table,
	}
}

// Handle registers handler for method and pattern behind the auth guard
func (g *GuardedRouter) Handle(method, pattern string, policy RoutePolicy, handler http.Handler) {
	g.table.Declare(method, pattern, policy)
	g.router.With(g.guard.Middleware(pattern, policy)).Method(method, pattern, handler)
}

// Get registers a GET route with the default policy
func (g *GuardedRouter) Get(pattern string, handler http.HandlerFunc) {
	g.Handle(http.MethodGet, pattern, DefaultPolicy, handler)
}

// Post registers a POST route with the default policy
func (g *GuardedRouter) Post(pattern string, handler http.HandlerFunc) {
	g.Handle(http.MethodPost, pattern, DefaultPolicy, handler)
}

// Delete registers a DELETE route with the default policy
func (g *GuardedRouter) Delete(pattern string, handler http.HandlerFunc) {
	g.Handle(http.MethodDelete, pattern, DefaultPolicy, handler)
}

// Put registers a PUT route with the default policy
func (g *GuardedRouter) Put(pattern string, handler http.HandlerFunc) {
	g.Handle(http.MethodPut, pattern, DefaultPolicy, handler)
}

// Table returns the policy table routes are declared in
func (g *GuardedRouter) Table() *PolicyTable {
	return g.table
}
