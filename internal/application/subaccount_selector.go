package application

import (
	"context"
	"fmt"
	"strings"

	"archie-core-integrations-layer/internal/domain"

	"github.com/rs/zerolog"
)

// SubAccountSelector maintains the single primary sub-account of a connection
type SubAccountSelector struct {
	registry *IntegrationRegistry
	logger   zerolog.Logger
}

// NewSubAccountSelector creates a new selector
func NewSubAccountSelector(registry *IntegrationRegistry, logger zerolog.Logger) *SubAccountSelector {
	return &SubAccountSelector{
		registry: registry,
		logger:   logger,
	}
}

// SelectPrimary replaces the primary sub-account of a connected integration.
// The previous selection, if any, is discarded.
func (s *SubAccountSelector) SelectPrimary(ctx context.Context, tenantID string, platform domain.Platform, subAccountID string) (*domain.Connection, error) {
	if !platform.SupportsSubAccounts() {
		return nil, fmt.Errorf("%w: %s has no sub-accounts to select from", domain.ErrUnsupportedOperation, platform)
	}
	subAccountID = strings.TrimSpace(subAccountID)
	if subAccountID == "" {
		return nil, fmt.Errorf("%w: sub-account id is required", domain.ErrValidation)
	}

	var previous string
	conn, err := s.registry.UpdateExisting(ctx, tenantID, platform, func(conn *domain.Connection) error {
		previous = ""
		if conn.Status != domain.StatusConnected {
			return fmt.Errorf("%w: %s is %s", domain.ErrNotConnected, platform, conn.Status)
		}
		if !conn.HasSubAccount(subAccountID) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownSubAccount, subAccountID)
		}
		previous = conn.PrimarySubAccountID
		conn.PrimarySubAccountID = subAccountID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("tenantId", tenantID).
		Str("platform", string(platform)).
		Str("primary", subAccountID).
		Str("previous", previous).
		Msg("Primary sub-account selected")
	return conn, nil
}
