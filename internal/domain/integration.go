package domain

import (
	"fmt"
	"time"
)

// ConnectionStatus is the lifecycle state of an integration connection
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "DISCONNECTED"
	StatusConnecting   ConnectionStatus = "CONNECTING"
	StatusConnected    ConnectionStatus = "CONNECTED"
)

// Credentials is the token bundle obtained from a platform's OAuth exchange
type Credentials struct {
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	// ExternalAccountID is the platform-side identity the token belongs to
	// (shop domain for Shopify, user id for Facebook/Instagram, Google account for Google Ads).
	ExternalAccountID string `json:"external_account_id,omitempty"`
}

// IsEmpty reports whether no access token is present
func (c Credentials) IsEmpty() bool {
	return c.AccessToken == ""
}

// Valid reports whether the credentials carry a token that has not expired at now
func (c Credentials) Valid(now time.Time) bool {
	if c.IsEmpty() {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}

// SubAccount is a secondary identity exposed by a platform connection
type SubAccount struct {
	ID          string `json:"sub_account_id"`
	DisplayName string `json:"display_name"`
}

// Connection represents one tenant's link to one external platform.
// There is at most one Connection per (TenantID, Platform).
type Connection struct {
	ID                   string           `json:"id"`
	TenantID             string           `json:"tenant_id"`
	Platform             Platform         `json:"platform"`
	Status               ConnectionStatus `json:"status"`
	Credentials          Credentials      `json:"credentials"`
	ConnectedAt          *time.Time       `json:"connected_at,omitempty"`
	DisconnectedAt       *time.Time       `json:"disconnected_at,omitempty"`
	DisconnectReason     string           `json:"disconnect_reason,omitempty"`
	CandidateSubAccounts []SubAccount     `json:"candidate_sub_accounts"`
	PrimarySubAccountID  string           `json:"primary_sub_account_id,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`

	// Version is bumped on every write and used for compare-and-swap in storage
	Version int64 `json:"-"`
}

// HasSubAccount reports whether id is one of the candidate sub-accounts
func (c *Connection) HasSubAccount(id string) bool {
	for _, sa := range c.CandidateSubAccounts {
		if sa.ID == id {
			return true
		}
	}
	return false
}

// PrimarySubAccount returns the selected primary sub-account, if any
func (c *Connection) PrimarySubAccount() (SubAccount, bool) {
	if c.PrimarySubAccountID == "" {
		return SubAccount{}, false
	}
	for _, sa := range c.CandidateSubAccounts {
		if sa.ID == c.PrimarySubAccountID {
			return sa, true
		}
	}
	return SubAccount{}, false
}

// ImplicitlyPrimary is true for connected single-account platforms, where the
// connection itself acts as the primary account.
func (c *Connection) ImplicitlyPrimary() bool {
	return c.Status == StatusConnected && !c.Platform.SupportsSubAccounts()
}

// Validate checks the structural invariants of a connection record
func (c *Connection) Validate() error {
	if c.TenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if _, err := ParsePlatform(string(c.Platform)); err != nil {
		return err
	}
	if c.Status == StatusConnected && c.Credentials.IsEmpty() {
		return fmt.Errorf("%w: connected integration requires credentials", ErrValidation)
	}
	if !c.Platform.SupportsSubAccounts() && len(c.CandidateSubAccounts) > 0 {
		return fmt.Errorf("%w: %s does not expose sub-accounts", ErrUnsupportedOperation, c.Platform)
	}
	if c.PrimarySubAccountID != "" && !c.HasSubAccount(c.PrimarySubAccountID) {
		return fmt.Errorf("%w: %s", ErrUnknownSubAccount, c.PrimarySubAccountID)
	}
	return nil
}

// Clone returns a deep copy of the connection
func (c *Connection) Clone() *Connection {
	if c == nil {
		return nil
	}
	out := *c
	if c.Credentials.ExpiresAt != nil {
		t := *c.Credentials.ExpiresAt
		out.Credentials.ExpiresAt = &t
	}
	if c.Credentials.Scopes != nil {
		out.Credentials.Scopes = append([]string(nil), c.Credentials.Scopes...)
	}
	if c.ConnectedAt != nil {
		t := *c.ConnectedAt
		out.ConnectedAt = &t
	}
	if c.DisconnectedAt != nil {
		t := *c.DisconnectedAt
		out.DisconnectedAt = &t
	}
	if c.CandidateSubAccounts != nil {
		out.CandidateSubAccounts = append([]SubAccount(nil), c.CandidateSubAccounts...)
	}
	return &out
}
