package auth

import (
	"net/http"
	"strings"
	"time"

	"archie-core-integrations-layer/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims of a tenant session token
type SessionClaims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
}

// SessionVerifier validates HS256 signed session tokens sent as Bearer tokens
type SessionVerifier struct {
	secret []byte
	leeway time.Duration
}

// NewSessionVerifier creates a verifier for tokens signed with secret
func NewSessionVerifier(secret string) *SessionVerifier {
	return &SessionVerifier{
		secret: []byte(secret),
		leeway: 30 * time.Second,
	}
}

func (v *SessionVerifier) Kind() domain.VerifierKind {
	return domain.VerifierSessionToken
}

// Verify parses the Authorization header and returns the session identity
func (v *SessionVerifier) Verify(r *http.Request) (*domain.Identity, error) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	return v.Parse(token)
}

// Parse validates a raw session token
func (v *SessionVerifier) Parse(tokenString string) (*domain.Identity, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidOrExpiredToken
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	if !token.Valid || claims.TenantID == "" {
		return nil, domain.ErrInvalidOrExpiredToken
	}

	identity := &domain.Identity{
		Subject:  claims.Subject,
		TenantID: claims.TenantID,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	return identity, nil
}

// Issue signs a session token for a tenant. Used by tooling and tests.
func (v *SessionVerifier) Issue(subject, tenantID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID: tenantID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
