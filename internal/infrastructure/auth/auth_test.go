package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"archie-core-integrations-layer/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestAPIKeyVerifier(t *testing.T) {
	v := NewAPIKeyVerifier("service-key-0123456789")
	assert.Equal(t, domain.VerifierAPIKey, v.Kind())

	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"matching key", "service-key-0123456789", true},
		{"missing header", "", false},
		{"wrong key", "service-key-9876543210", false},
		{"prefix of key", "service-key", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/integrations", nil)
			if tt.header != "" {
				r.Header.Set(APIKeyHeader, tt.header)
			}
			identity, err := v.Verify(r)
			assert.Nil(t, identity)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
			}
		})
	}
}

func TestSessionVerifier_ValidToken(t *testing.T) {
	v := NewSessionVerifier(testSecret)
	token, err := v.Issue("user-1", "tenant-1", time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/integrations", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	identity, err := v.Verify(r)
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.Subject)
	assert.Equal(t, "tenant-1", identity.TenantID)
	assert.False(t, identity.IssuedAt.IsZero())
}

func TestSessionVerifier_Rejects(t *testing.T) {
	v := NewSessionVerifier(testSecret)
	now := time.Now()

	sign := func(claims jwt.Claims, method jwt.SigningMethod, key interface{}) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}

	expired := sign(&SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour))},
		TenantID:         "tenant-1",
	}, jwt.SigningMethodHS256, []byte(testSecret))
	wrongSecret := sign(&SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		TenantID:         "tenant-1",
	}, jwt.SigningMethodHS256, []byte("another-secret-another-secret-00"))
	noTenant := sign(&SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}, jwt.SigningMethodHS256, []byte(testSecret))
	noExpiry := sign(&SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u"},
		TenantID:         "tenant-1",
	}, jwt.SigningMethodHS256, []byte(testSecret))
	hs512 := sign(&SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		TenantID:         "tenant-1",
	}, jwt.SigningMethodHS512, []byte(testSecret))

	headers := map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"garbage":      "Bearer not-a-jwt",
		"expired":      "Bearer " + expired,
		"wrong secret": "Bearer " + wrongSecret,
		"no tenant":    "Bearer " + noTenant,
		"no expiry":    "Bearer " + noExpiry,
		"hs512":        "Bearer " + hs512,
	}
	for name, header := range headers {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/integrations", nil)
			if header != "" {
				r.Header.Set("Authorization", header)
			}
			_, err := v.Verify(r)
			assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer abc"))
	assert.Equal(t, "", bearerToken("Bearer "))
	assert.Equal(t, "", bearerToken("Token abc"))
}
