package auth

import (
	"net/http"

	"archie-core-integrations-layer/internal/domain"
)

// Verifier checks one kind of inbound credential on a request
type Verifier interface {
	Kind() domain.VerifierKind

	// Verify returns the identity the credential carries (nil for API keys),
	// or an authentication error
	Verify(r *http.Request) (*domain.Identity, error)
}
