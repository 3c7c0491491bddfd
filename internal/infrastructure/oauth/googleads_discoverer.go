package oauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"archie-core-integrations-layer/internal/domain"

	"github.com/rs/zerolog"
)

const defaultGoogleAdsBaseURL = "https://googleads.googleapis.com/v17"

// GoogleAdsDiscoverer lists the customer accounts a Google user can access
type GoogleAdsDiscoverer struct {
	baseURL        string
	developerToken string
	httpClient     *http.Client
	logger         zerolog.Logger
}

// NewGoogleAdsDiscoverer creates a discoverer against the Google Ads API at
// baseURL (empty for the default)
func NewGoogleAdsDiscoverer(baseURL, developerToken string, httpClient *http.Client, logger zerolog.Logger) *GoogleAdsDiscoverer {
	if baseURL == "" {
		baseURL = defaultGoogleAdsBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &GoogleAdsDiscoverer{
		baseURL:        baseURL,
		developerToken: developerToken,
		httpClient:     httpClient,
		logger:         logger,
	}
}

func (d *GoogleAdsDiscoverer) Platform() domain.Platform {
	return domain.PlatformGoogleAds
}

// Discover calls customers:listAccessibleCustomers
func (d *GoogleAdsDiscoverer) Discover(ctx context.Context, credentials domain.Credentials) ([]domain.SubAccount, error) {
	if d.developerToken == "" {
		return nil, fmt.Errorf("%w: google ads developer token is not configured", domain.ErrUnsupportedOperation)
	}
	client := bearerClient(ctx, d.httpClient, credentials)

	var body struct {
		ResourceNames []string `json:"resourceNames"`
	}
	headers := map[string]string{"developer-token": d.developerToken}
	if err := getJSON(ctx, client, d.baseURL+"/customers:listAccessibleCustomers", headers, &body); err != nil {
		return nil, fmt.Errorf("failed to list accessible customers: %w", err)
	}

	accounts := make([]domain.SubAccount, 0, len(body.ResourceNames))
	for _, name := range body.ResourceNames {
		id := strings.TrimPrefix(name, "customers/")
		if id == "" {
			continue
		}
		accounts = append(accounts, domain.SubAccount{ID: id, DisplayName: formatCustomerID(id)})
	}

	d.logger.Debug().Int("customers", len(accounts)).Msg("Discovered Google Ads customers")
	return accounts, nil
}

// formatCustomerID renders 1234567890 as 123-456-7890
func formatCustomerID(id string) string {
	if len(id) != 10 {
		return id
	}
	return id[:3] + "-" + id[3:6] + "-" + id[6:]
}
