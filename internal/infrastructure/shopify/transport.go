package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

const maxResponseBytes = 10 << 20

// HTTPTransport posts GraphQL operations to the Shopify Admin API
type HTTPTransport struct {
	httpClient *http.Client
	apiVersion string
	endpoint   func(shop, apiVersion string) string
}

// TransportOption customizes an HTTPTransport
type TransportOption func(*HTTPTransport)

// WithEndpoint overrides how the GraphQL URL is built for a shop
func WithEndpoint(endpoint func(shop, apiVersion string) string) TransportOption {
	return func(t *HTTPTransport) {
		t.endpoint = endpoint
	}
}

// NewHTTPTransport creates a transport for the given Admin API version
func NewHTTPTransport(httpClient *http.Client, apiVersion string, opts ...TransportOption) *HTTPTransport {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	t := &HTTPTransport{
		httpClient: httpClient,
		apiVersion: apiVersion,
		endpoint:   adminGraphQLURL,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func adminGraphQLURL(shop, apiVersion string) string {
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", goshopify.ShopFullName(shop), apiVersion)
}

type graphQLEnvelope struct {
	Data       json.RawMessage      `json:"data"`
	Errors     []ports.GraphQLError `json:"errors"`
	Extensions struct {
		Cost *domain.QueryCost `json:"cost"`
	} `json:"extensions"`
}

// Do issues one POST. Non-2xx answers are returned as responses, with the
// body parsed when it is a GraphQL envelope.
func (t *HTTPTransport) Do(ctx context.Context, credential ports.PlatformCredential, request ports.GraphQLRequest) (*ports.GraphQLResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(credential.Shop, t.apiVersion), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", credential.AccessToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read graphql response: %w", err)
	}

	out := &ports.GraphQLResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}
	if !looksLikeJSON(resp.Header.Get("Content-Type"), raw) {
		return out, nil
	}

	var envelope graphQLEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return out, nil
		}
		return nil, fmt.Errorf("failed to decode graphql response: %w", err)
	}
	out.Data = envelope.Data
	out.Errors = envelope.Errors
	out.Cost = envelope.Extensions.Cost
	return out, nil
}

func looksLikeJSON(contentType string, raw []byte) bool {
	if strings.Contains(contentType, "json") {
		return true
	}
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
