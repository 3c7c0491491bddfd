package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"archie-core-integrations-layer/internal/domain"
)

// APIKeyHeader carries the service-to-service key
const APIKeyHeader = "X-API-Key"

// APIKeyVerifier compares the request's API key with the configured one
type APIKeyVerifier struct {
	key []byte
}

// NewAPIKeyVerifier creates a verifier for the given key
func NewAPIKeyVerifier(key string) *APIKeyVerifier {
	return &APIKeyVerifier{key: []byte(key)}
}

func (v *APIKeyVerifier) Kind() domain.VerifierKind {
	return domain.VerifierAPIKey
}

// Verify succeeds only when the header exactly matches the configured key
func (v *APIKeyVerifier) Verify(r *http.Request) (*domain.Identity, error) {
	presented := strings.TrimSpace(r.Header.Get(APIKeyHeader))
	if presented == "" || len(v.key) == 0 {
		return nil, domain.ErrInvalidAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(presented), v.key) != 1 {
		return nil, domain.ErrInvalidAPIKey
	}
	return nil, nil
}
