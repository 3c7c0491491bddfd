package domain

import "time"

// VerifierKind names one of the two inbound credential checks
type VerifierKind string

const (
	VerifierAPIKey       VerifierKind = "API_KEY"
	VerifierSessionToken VerifierKind = "SESSION_TOKEN"
)

// CheckOutcome is the result of running (or not running) a verifier
type CheckOutcome string

const (
	OutcomeValid   CheckOutcome = "VALID"
	OutcomeInvalid CheckOutcome = "INVALID"
	OutcomeSkipped CheckOutcome = "SKIPPED"
)

// CredentialCheckResult is produced per request and never persisted
type CredentialCheckResult struct {
	Verifier VerifierKind
	Outcome  CheckOutcome
	Identity *Identity
}

// Identity is the claim set yielded by a successful session verification
type Identity struct {
	Subject  string
	TenantID string
	IssuedAt time.Time
}
