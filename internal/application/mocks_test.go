package application

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/infrastructure/repository"
	"archie-core-integrations-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

type mockProvider struct {
	mock.Mock
	platform domain.Platform
}

func (m *mockProvider) Platform() domain.Platform { return m.platform }

func (m *mockProvider) AuthorizationURL(req ports.AuthorizationRequest) (string, error) {
	args := m.Called(req)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) Exchange(ctx context.Context, grant ports.AuthorizationGrant) (domain.Credentials, error) {
	args := m.Called(ctx, grant)
	return args.Get(0).(domain.Credentials), args.Error(1)
}

type mockDiscoverer struct {
	mock.Mock
	platform domain.Platform
}

func (m *mockDiscoverer) Platform() domain.Platform { return m.platform }

func (m *mockDiscoverer) Discover(ctx context.Context, credentials domain.Credentials) ([]domain.SubAccount, error) {
	args := m.Called(ctx, credentials)
	subs, _ := args.Get(0).([]domain.SubAccount)
	return subs, args.Error(1)
}

type mockPixelCreator struct {
	mock.Mock
}

func (m *mockPixelCreator) CreateWebPixel(ctx context.Context, credential ports.PlatformCredential, settings string) (*domain.WebPixel, error) {
	args := m.Called(ctx, credential, settings)
	pixel, _ := args.Get(0).(*domain.WebPixel)
	return pixel, args.Error(1)
}

// memoryStateStore is a map-backed AuthorizationStateStore
type memoryStateStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.AuthorizationSession
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{sessions: make(map[string]*domain.AuthorizationSession)}
}

func (s *memoryStateStore) Save(_ context.Context, session *domain.AuthorizationSession, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.State] = &copied
	return nil
}

func (s *memoryStateStore) Consume(_ context.Context, state string) (*domain.AuthorizationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[state]
	if !ok {
		return nil, nil
	}
	delete(s.sessions, state)
	return session, nil
}

// countingRepository records how often storage is reached
type countingRepository struct {
	ports.ConnectionRepository
	gets    atomic.Int32
	mutates atomic.Int32
}

func newCountingRepository() *countingRepository {
	return &countingRepository{ConnectionRepository: repository.NewMemoryConnectionRepository()}
}

func (r *countingRepository) Get(ctx context.Context, tenantID string, platform domain.Platform) (*domain.Connection, error) {
	r.gets.Add(1)
	return r.ConnectionRepository.Get(ctx, tenantID, platform)
}

func (r *countingRepository) Mutate(ctx context.Context, tenantID string, platform domain.Platform, mutate ports.ConnectionMutation) (*domain.Connection, error) {
	r.mutates.Add(1)
	return r.ConnectionRepository.Mutate(ctx, tenantID, platform, mutate)
}

// replayingRepository runs every mutation once against a stale snapshot and
// discards the result before running it on the stored record, as a storage
// retry after a lost compare-and-swap does
type replayingRepository struct {
	ports.ConnectionRepository
	stale *domain.Connection
}

func (r *replayingRepository) Mutate(ctx context.Context, tenantID string, platform domain.Platform, mutate ports.ConnectionMutation) (*domain.Connection, error) {
	if r.stale != nil {
		_, _ = mutate(r.stale.Clone())
	}
	return r.ConnectionRepository.Mutate(ctx, tenantID, platform, mutate)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.ConnectionEvent
}

func (p *recordingPublisher) Publish(event *domain.ConnectionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) statuses() []domain.ConnectionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ConnectionStatus, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Status)
	}
	return out
}

type fixture struct {
	repo     *countingRepository
	events   *recordingPublisher
	registry *IntegrationRegistry
	selector *SubAccountSelector
	pixels   *mockPixelCreator
	states   *memoryStateStore
	service  *IntegrationService
}

func newFixture() *fixture {
	logger := zerolog.Nop()
	f := &fixture{
		repo:   newCountingRepository(),
		events: &recordingPublisher{},
		pixels: &mockPixelCreator{},
		states: newMemoryStateStore(),
	}
	f.registry = NewIntegrationRegistry(f.repo, f.events, logger)
	f.selector = NewSubAccountSelector(f.registry, logger)
	f.service = NewIntegrationService(f.registry, f.selector, f.pixels, f.states, logger, "https://app.example.com/integrations/oauth/callback", time.Minute)
	return f
}

func validCredentials(external string) domain.Credentials {
	return domain.Credentials{AccessToken: "access-token", ExternalAccountID: external}
}

// connect drives a key to CONNECTED directly through the registry
func (f *fixture) connect(tenantID string, platform domain.Platform, subs ...domain.SubAccount) *domain.Connection {
	ctx := context.Background()
	if _, err := f.registry.StartConnection(ctx, tenantID, platform); err != nil {
		panic(err)
	}
	conn, err := f.registry.CompleteConnection(ctx, tenantID, platform, validCredentials("shop.myshopify.com"), subs)
	if err != nil {
		panic(err)
	}
	return conn
}
