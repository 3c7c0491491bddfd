package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"archie-core-integrations-layer/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingVerifier struct {
	kind     domain.VerifierKind
	err      error
	identity *domain.Identity
	calls    atomic.Int32
}

func (v *countingVerifier) Kind() domain.VerifierKind { return v.kind }

func (v *countingVerifier) Verify(_ *http.Request) (*domain.Identity, error) {
	v.calls.Add(1)
	if v.err != nil {
		return nil, v.err
	}
	return v.identity, nil
}

func newVerifiers(apiErr, sessionErr error) (*countingVerifier, *countingVerifier) {
	return &countingVerifier{kind: domain.VerifierAPIKey, err: apiErr},
		&countingVerifier{kind: domain.VerifierSessionToken, err: sessionErr, identity: &domain.Identity{Subject: "u", TenantID: "tenant-1"}}
}

type handlerProbe struct {
	calls    int
	tenantID string
	checks   []domain.CredentialCheckResult
}

func (p *handlerProbe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.calls++
	p.tenantID = domain.TenantIDFromContext(r.Context())
	p.checks = domain.CredentialChecksFromContext(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func serve(t *testing.T, apiKey, session *countingVerifier, policy RoutePolicy) (*httptest.ResponseRecorder, *handlerProbe) {
	t.Helper()
	r := chi.NewRouter()
	guarded := NewGuardedRouter(r, NewAuthGuard(apiKey, session, zerolog.Nop()), NewPolicyTable())
	probe := &handlerProbe{}
	guarded.Handle(http.MethodGet, "/integrations", policy, probe)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/integrations", nil))
	return rec, probe
}

func TestAuthGuard_BothChecksPass(t *testing.T) {
	apiKey, session := newVerifiers(nil, nil)
	rec, probe := serve(t, apiKey, session, DefaultPolicy)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, probe.calls)
	assert.Equal(t, "tenant-1", probe.tenantID)
	require.Len(t, probe.checks, 2)
	assert.Equal(t, domain.OutcomeValid, probe.checks[0].Outcome)
	assert.Equal(t, domain.OutcomeValid, probe.checks[1].Outcome)
}

func TestAuthGuard_InvalidAPIKeyShortCircuits(t *testing.T) {
	apiKey, session := newVerifiers(domain.ErrInvalidAPIKey, nil)
	rec, probe := serve(t, apiKey, session, DefaultPolicy)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrInvalidAPIKey.Error())
	assert.Equal(t, 0, probe.calls)
	assert.Equal(t, int32(1), apiKey.calls.Load())
	assert.Equal(t, int32(0), session.calls.Load())
}

func TestAuthGuard_InvalidSession(t *testing.T) {
	apiKey, session := newVerifiers(nil, domain.ErrInvalidOrExpiredToken)
	rec, probe := serve(t, apiKey, session, DefaultPolicy)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ErrInvalidOrExpiredToken.Error())
	assert.Equal(t, 0, probe.calls)
}

func TestAuthGuard_SkipBothReachesHandler(t *testing.T) {
	apiKey, session := newVerifiers(domain.ErrInvalidAPIKey, domain.ErrInvalidOrExpiredToken)
	rec, probe := serve(t, apiKey, session, PublicPolicy)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, probe.calls)
	assert.Empty(t, probe.tenantID)
	assert.Equal(t, int32(0), apiKey.calls.Load())
	assert.Equal(t, int32(0), session.calls.Load())
	require.Len(t, probe.checks, 2)
	assert.Equal(t, domain.OutcomeSkipped, probe.checks[0].Outcome)
	assert.Equal(t, domain.OutcomeSkipped, probe.checks[1].Outcome)
}

func TestAuthGuard_SkipSessionOnly(t *testing.T) {
	apiKey, session := newVerifiers(nil, domain.ErrInvalidOrExpiredToken)
	rec, probe := serve(t, apiKey, session, ServicePolicy)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, probe.calls)
	assert.Equal(t, int32(0), session.calls.Load())
	assert.Equal(t, domain.OutcomeValid, probe.checks[0].Outcome)
	assert.Equal(t, domain.OutcomeSkipped, probe.checks[1].Outcome)
}

func TestAuthGuard_SkipAPIKeyOnly(t *testing.T) {
	apiKey, session := newVerifiers(domain.ErrInvalidAPIKey, nil)
	rec, _ := serve(t, apiKey, session, RoutePolicy{SkipAPIKeyAuth: true})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int32(0), apiKey.calls.Load())
	assert.Equal(t, int32(1), session.calls.Load())
}

func TestPolicyTable(t *testing.T) {
	table := NewPolicyTable()
	table.Declare(http.MethodGet, "/health", PublicPolicy)
	table.Declare(http.MethodGet, "/metrics", PublicPolicy)
	table.Declare(http.MethodGet, "/internal/tenants/{tenantId}/integrations/{platform}", ServicePolicy)
	table.Declare(http.MethodPost, "/integrations/disconnect", DefaultPolicy)

	assert.Equal(t, PublicPolicy, table.Resolve(http.MethodGet, "/health"))
	assert.Equal(t, DefaultPolicy, table.Resolve(http.MethodGet, "/never-declared"))

	unauthenticated := table.Unauthenticated()
	require.Len(t, unauthenticated, 2)
	assert.Equal(t, "/health", unauthenticated[0].Pattern)
	assert.Equal(t, "/metrics", unauthenticated[1].Pattern)
	assert.Len(t, table.Entries(), 4)
}
