package shopify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const costExtension = `"extensions":{"cost":{"requestedQueryCost":10,"actualQueryCost":10,"throttleStatus":{"maximumAvailable":2000,"currentlyAvailable":1990,"restoreRate":100}}}`

func newPixelServer(t *testing.T, body string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/api/2024-10/graphql.json", r.URL.Path)
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req ports.GraphQLRequest
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Contains(t, req.Query, "webPixelCreate")
		webPixel, ok := req.Variables["webPixel"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, `{"accountID":"tenant-1"}`, webPixel["settings"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newPixelService(srv *httptest.Server) (*WebPixelService, *GraphQLClient) {
	transport := NewHTTPTransport(srv.Client(), "2024-10", WithEndpoint(func(_, apiVersion string) string {
		return srv.URL + "/admin/api/" + apiVersion + "/graphql.json"
	}))
	client := NewGraphQLClient(transport, DefaultRetryConfig(), zerolog.Nop(), WithClock(newFakeClock()))
	return NewWebPixelService(client), client
}

func TestWebPixelService_Created(t *testing.T) {
	srv, calls := newPixelServer(t, `{"data":{"webPixelCreate":{"userErrors":[],"webPixel":{"id":"gid://shopify/WebPixel/42","settings":"{\"accountID\":\"tenant-1\"}"}}},`+costExtension+`}`)
	svc, client := newPixelService(srv)

	pixel, err := svc.CreateWebPixel(context.Background(), testCredential, `{"accountID":"tenant-1"}`)
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/WebPixel/42", pixel.ID)
	assert.Equal(t, `{"accountID":"tenant-1"}`, pixel.Settings)
	assert.Equal(t, 1, *calls)

	state, ok := client.throttle.Snapshot(testCredential.Key())
	require.True(t, ok)
	assert.Equal(t, 1990.0, state.CurrentlyAvailable)
	assert.Equal(t, 100.0, state.RestoreRatePerSecond)
}

func TestWebPixelService_UserErrors(t *testing.T) {
	srv, calls := newPixelServer(t, `{"data":{"webPixelCreate":{"userErrors":[{"code":"INVALID_SETTINGS","field":["settings"],"message":"Settings are invalid"},{"code":"TAKEN","field":["webPixel"],"message":"Web pixel is taken"}],"webPixel":null}},`+costExtension+`}`)
	svc, _ := newPixelService(srv)

	_, err := svc.CreateWebPixel(context.Background(), testCredential, `{"accountID":"tenant-1"}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPixelCreationRejected)
	assert.Equal(t, domain.KindPixelRejected, domain.KindOf(err))

	var rejected *domain.PixelCreationRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, []string{"Settings are invalid", "Web pixel is taken"}, rejected.Messages)
	assert.Equal(t, 1, *calls)
}

func TestWebPixelService_NoPixelReturned(t *testing.T) {
	srv, _ := newPixelServer(t, `{"data":{"webPixelCreate":{"userErrors":[],"webPixel":null}}}`)
	svc, _ := newPixelService(srv)

	_, err := svc.CreateWebPixel(context.Background(), testCredential, `{"accountID":"tenant-1"}`)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPixelCreationRejected)
}

func TestHTTPTransport_NonJSONServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	}))
	defer srv.Close()

	transport := NewHTTPTransport(srv.Client(), "2024-10", WithEndpoint(func(_, _ string) string { return srv.URL }))
	resp, err := transport.Do(context.Background(), testCredential, ports.GraphQLRequest{Query: shopQuery})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Nil(t, resp.Cost)
}

func TestAdminGraphQLURL(t *testing.T) {
	assert.Equal(t, "https://shop.myshopify.com/admin/api/2024-10/graphql.json", adminGraphQLURL("shop", "2024-10"))
	assert.Equal(t, "https://shop.myshopify.com/admin/api/2024-10/graphql.json", adminGraphQLURL("shop.myshopify.com", "2024-10"))
}
