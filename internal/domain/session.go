package domain

import "time"

// AuthorizationSession is the pending state of an OAuth redirect flow,
// keyed by the random state nonce handed to the platform.
// ConnectionVersion pins the CONNECTING record the flow created.
type AuthorizationSession struct {
	State             string    `json:"state"`
	TenantID          string    `json:"tenant_id"`
	Platform          Platform  `json:"platform"`
	Shop              string    `json:"shop,omitempty"`
	RedirectURI       string    `json:"redirect_uri"`
	ConnectionVersion int64     `json:"connection_version,omitempty"`
	ExpiresAt         time.Time `json:"expires_at"`
	CreatedAt         time.Time `json:"created_at"`
}
