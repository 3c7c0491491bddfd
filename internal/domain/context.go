package domain

import "context"

type contextKey string

const (
	identityKey   contextKey = "identity"
	authChecksKey contextKey = "auth_checks"
)

// WithIdentity attaches a verified identity to ctx
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the verified identity, or nil when the request
// was not session-authenticated
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityKey).(*Identity)
	return identity
}

// TenantIDFromContext returns the tenant of the verified identity, or ""
func TenantIDFromContext(ctx context.Context) string {
	if identity := IdentityFromContext(ctx); identity != nil {
		return identity.TenantID
	}
	return ""
}

// WithCredentialChecks records the per-request verifier results on ctx
func WithCredentialChecks(ctx context.Context, checks []CredentialCheckResult) context.Context {
	return context.WithValue(ctx, authChecksKey, checks)
}

// CredentialChecksFromContext returns the verifier results recorded for the request
func CredentialChecksFromContext(ctx context.Context) []CredentialCheckResult {
	checks, _ := ctx.Value(authChecksKey).([]CredentialCheckResult)
	return checks
}
