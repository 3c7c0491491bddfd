package ports

import (
	"context"
	"encoding/json"
	"net/http"

	"archie-core-integrations-layer/internal/domain"
)

// PlatformCredential identifies the credential an outbound call is made with.
// Throttle state is scoped to it.
type PlatformCredential struct {
	TenantID    string
	Platform    domain.Platform
	Shop        string
	AccessToken string
}

// Key identifies the credential for per-credential bookkeeping
func (c PlatformCredential) Key() string {
	return c.TenantID + "|" + string(c.Platform) + "|" + c.Shop
}

// GraphQLRequest is one GraphQL operation
type GraphQLRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

// GraphQLError is an entry of the top-level errors array
type GraphQLError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Code returns extensions.code, if present
func (e GraphQLError) Code() string {
	if e.Extensions == nil {
		return ""
	}
	code, _ := e.Extensions["code"].(string)
	return code
}

// GraphQLResponse is a parsed GraphQL answer plus the raw HTTP metadata
type GraphQLResponse struct {
	StatusCode int
	Header     http.Header
	Data       json.RawMessage
	Errors     []GraphQLError
	Cost       *domain.QueryCost
}

// GraphQLTransport issues one authenticated GraphQL POST. It returns an error
// only when no HTTP answer was obtained; non-2xx answers are returned as responses.
type GraphQLTransport interface {
	Do(ctx context.Context, credential PlatformCredential, request GraphQLRequest) (*GraphQLResponse, error)
}

// WebPixelCreator creates web pixels through the rate-limited client
type WebPixelCreator interface {
	CreateWebPixel(ctx context.Context, credential PlatformCredential, settings string) (*domain.WebPixel, error)
}

// AuthorizationRequest is what a provider needs to build an authorization URL
type AuthorizationRequest struct {
	State       string
	RedirectURI string
	Shop        string
}

// AuthorizationGrant is what a provider needs to exchange a code for tokens
type AuthorizationGrant struct {
	Code        string
	RedirectURI string
	Shop        string
}

// OAuthProvider performs a platform's OAuth handshake
type OAuthProvider interface {
	Platform() domain.Platform
	AuthorizationURL(req AuthorizationRequest) (string, error)
	Exchange(ctx context.Context, grant AuthorizationGrant) (domain.Credentials, error)
}

// SubAccountDiscoverer lists the candidate sub-accounts reachable with a credential
type SubAccountDiscoverer interface {
	Platform() domain.Platform
	Discover(ctx context.Context, credentials domain.Credentials) ([]domain.SubAccount, error)
}
