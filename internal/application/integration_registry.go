package application

import (
	"context"
	"fmt"
	"time"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/ports"

	"github.com/rs/zerolog"
)

// IntegrationRegistry owns the lifecycle of integration connections.
// No other component writes connection records.
type IntegrationRegistry struct {
	repo   ports.ConnectionRepository
	events ports.EventPublisher
	logger zerolog.Logger
	now    func() time.Time
}

// NewIntegrationRegistry creates a new registry. events may be nil.
func NewIntegrationRegistry(
	repo ports.ConnectionRepository,
	events ports.EventPublisher,
	logger zerolog.Logger,
) *IntegrationRegistry {
	return &IntegrationRegistry{
		repo:   repo,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// StartConnection creates or overwrites a CONNECTING record for the key
func (r *IntegrationRegistry) StartConnection(ctx context.Context, tenantID string, platform domain.Platform) (*domain.Connection, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}

	conn, err := r.repo.Mutate(ctx, tenantID, platform, func(current *domain.Connection) (*domain.Connection, error) {
		if current != nil && current.Status == domain.StatusConnected {
			return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyConnected, platform)
		}
		return &domain.Connection{
			TenantID: tenantID,
			Platform: platform,
			Status:   domain.StatusConnecting,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("tenantId", tenantID).
		Str("platform", string(platform)).
		Msg("Integration connection started")
	r.publish(conn)
	return conn, nil
}

// CompleteConnection transitions a CONNECTING record to CONNECTED with the
// obtained credentials and discovered sub-accounts
func (r *IntegrationRegistry) CompleteConnection(
	ctx context.Context,
	tenantID string,
	platform domain.Platform,
	credentials domain.Credentials,
	subAccounts []domain.SubAccount,
) (*domain.Connection, error) {
	now := r.now()
	if !credentials.Valid(now) {
		return nil, fmt.Errorf("%w: credentials are empty or expired", domain.ErrValidation)
	}
	if !platform.SupportsSubAccounts() && len(subAccounts) > 0 {
		return nil, fmt.Errorf("%w: %s does not expose sub-accounts", domain.ErrUnsupportedOperation, platform)
	}
	candidates, err := normalizeSubAccounts(subAccounts)
	if err != nil {
		return nil, err
	}

	conn, err := r.repo.Mutate(ctx, tenantID, platform, func(current *domain.Connection) (*domain.Connection, error) {
		if current == nil || current.Status != domain.StatusConnecting {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoPendingConnection, platform)
		}
		current.Status = domain.StatusConnected
		current.Credentials = credentials
		current.ConnectedAt = &now
		current.DisconnectedAt = nil
		current.DisconnectReason = ""
		current.CandidateSubAccounts = candidates
		current.PrimarySubAccountID = ""
		if len(candidates) == 1 {
			current.PrimarySubAccountID = candidates[0].ID
		}
		if err := current.Validate(); err != nil {
			return nil, err
		}
		return current, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("tenantId", tenantID).
		Str("platform", string(platform)).
		Int("subAccounts", len(candidates)).
		Msg("Integration connected")
	r.publish(conn)
	return conn, nil
}

// Disconnect moves any existing record to DISCONNECTED. It never fails on a
// missing or already disconnected record.
func (r *IntegrationRegistry) Disconnect(ctx context.Context, tenantID string, platform domain.Platform) error {
	_, err := r.disconnect(ctx, tenantID, platform, "disconnected by tenant", nil)
	return err
}

// Revoke disconnects a record because the platform revoked or rejected its credentials
func (r *IntegrationRegistry) Revoke(ctx context.Context, tenantID string, platform domain.Platform, reason string) error {
	r.logger.Warn().
		Str("tenantId", tenantID).
		Str("platform", string(platform)).
		Str("reason", reason).
		Msg("Revoking integration connection")
	_, err := r.disconnect(ctx, tenantID, platform, reason, nil)
	return err
}

// RevokeMatching revokes a record only when match accepts the stored record.
// The check runs inside the same atomic write as the revocation. It reports
// whether a record was revoked.
func (r *IntegrationRegistry) RevokeMatching(
	ctx context.Context,
	tenantID string,
	platform domain.Platform,
	reason string,
	match func(conn *domain.Connection) bool,
) (bool, error) {
	revoked, err := r.disconnect(ctx, tenantID, platform, reason, match)
	if err != nil {
		return false, err
	}
	if revoked {
		r.logger.Warn().
			Str("tenantId", tenantID).
			Str("platform", string(platform)).
			Str("reason", reason).
			Msg("Revoked integration connection")
	}
	return revoked, nil
}

// AbandonPending returns a CONNECTING record to DISCONNECTED after its flow
// failed. Records in any other status are left alone, and so is a CONNECTING
// record written by a newer flow when version is set.
func (r *IntegrationRegistry) AbandonPending(ctx context.Context, tenantID string, platform domain.Platform, version int64, reason string) error {
	_, err := r.disconnect(ctx, tenantID, platform, reason, func(current *domain.Connection) bool {
		if current.Status != domain.StatusConnecting {
			return false
		}
		return version == 0 || current.Version == version
	})
	return err
}

// disconnect clears a record and reports whether it changed. A nil guard
// accepts every record that is not already disconnected.
func (r *IntegrationRegistry) disconnect(
	ctx context.Context,
	tenantID string,
	platform domain.Platform,
	reason string,
	guard func(current *domain.Connection) bool,
) (bool, error) {
	var changed bool
	conn, err := r.repo.Mutate(ctx, tenantID, platform, func(current *domain.Connection) (*domain.Connection, error) {
		changed = false
		if current == nil || current.Status == domain.StatusDisconnected {
			return nil, nil
		}
		if guard != nil && !guard(current) {
			return nil, nil
		}
		now := r.now()
		changed = true
		current.Status = domain.StatusDisconnected
		current.Credentials = domain.Credentials{}
		current.CandidateSubAccounts = nil
		current.PrimarySubAccountID = ""
		current.DisconnectedAt = &now
		current.DisconnectReason = reason
		return current, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to disconnect integration: %w", err)
	}
	if !changed {
		return false, nil
	}

	r.logger.Info().
		Str("tenantId", tenantID).
		Str("platform", string(platform)).
		Msg("Integration disconnected")
	r.publish(conn)
	return true, nil
}

// Get retrieves a connection; fails with ErrNotFound when absent
func (r *IntegrationRegistry) Get(ctx context.Context, tenantID string, platform domain.Platform) (*domain.Connection, error) {
	conn, err := r.repo.Get(ctx, tenantID, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, platform)
	}
	return conn, nil
}

// List retrieves every connection of a tenant
func (r *IntegrationRegistry) List(ctx context.Context, tenantID string) ([]*domain.Connection, error) {
	conns, err := r.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	return conns, nil
}

// UpdateExisting applies change to an existing record atomically and checks
// the record's invariants before storing it
func (r *IntegrationRegistry) UpdateExisting(
	ctx context.Context,
	tenantID string,
	platform domain.Platform,
	change func(conn *domain.Connection) error,
) (*domain.Connection, error) {
	conn, err := r.repo.Mutate(ctx, tenantID, platform, func(current *domain.Connection) (*domain.Connection, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, platform)
		}
		if err := change(current); err != nil {
			return nil, err
		}
		if err := current.Validate(); err != nil {
			return nil, err
		}
		return current, nil
	})
	if err != nil {
		return nil, err
	}
	r.publish(conn)
	return conn, nil
}

func (r *IntegrationRegistry) publish(conn *domain.Connection) {
	if r.events == nil || conn == nil {
		return
	}
	r.events.Publish(domain.EventFromConnection(conn, r.now()))
}

// normalizeSubAccounts drops duplicate ids (first wins) and rejects empty ids
func normalizeSubAccounts(subAccounts []domain.SubAccount) ([]domain.SubAccount, error) {
	if len(subAccounts) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(subAccounts))
	out := make([]domain.SubAccount, 0, len(subAccounts))
	for _, sa := range subAccounts {
		if sa.ID == "" {
			return nil, fmt.Errorf("%w: sub-account id is required", domain.ErrValidation)
		}
		if seen[sa.ID] {
			continue
		}
		seen[sa.ID] = true
		out = append(out, sa)
	}
	return out, nil
}
