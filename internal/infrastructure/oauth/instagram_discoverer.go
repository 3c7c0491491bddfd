package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"archie-core-integrations-layer/internal/domain"

	"github.com/rs/zerolog"
)

const (
	defaultGraphBaseURL = "https://graph.facebook.com/v19.0"
	maxGraphPages       = 10
)

// InstagramDiscoverer lists the Instagram business accounts linked to the
// Facebook pages the user manages
type InstagramDiscoverer struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewInstagramDiscoverer creates a discoverer against the Graph API at baseURL
// (empty for the default)
func NewInstagramDiscoverer(baseURL string, httpClient *http.Client, logger zerolog.Logger) *InstagramDiscoverer {
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &InstagramDiscoverer{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (d *InstagramDiscoverer) Platform() domain.Platform {
	return domain.PlatformInstagram
}

type graphPagesResponse struct {
	Data []struct {
		ID                       string `json:"id"`
		Name                     string `json:"name"`
		InstagramBusinessAccount *struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Name     string `json:"name"`
		} `json:"instagram_business_account"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Discover walks /me/accounts and collects every linked Instagram account
func (d *InstagramDiscoverer) Discover(ctx context.Context, credentials domain.Credentials) ([]domain.SubAccount, error) {
	client := bearerClient(ctx, d.httpClient, credentials)

	query := url.Values{}
	query.Set("fields", "name,instagram_business_account{id,username,name}")
	query.Set("limit", "100")
	next := d.baseURL + "/me/accounts?" + query.Encode()

	var accounts []domain.SubAccount
	for page := 0; next != "" && page < maxGraphPages; page++ {
		var body graphPagesResponse
		if err := getJSON(ctx, client, next, nil, &body); err != nil {
			return nil, fmt.Errorf("failed to list facebook pages: %w", err)
		}
		if body.Error != nil {
			return nil, graphError(body.Error.Code, body.Error.Message)
		}

		for _, p := range body.Data {
			ig := p.InstagramBusinessAccount
			if ig == nil || ig.ID == "" {
				continue
			}
			name := ig.Username
			if name == "" {
				name = ig.Name
			}
			if name == "" {
				name = p.Name
			}
			accounts = append(accounts, domain.SubAccount{ID: ig.ID, DisplayName: name})
		}
		next = body.Paging.Next
	}

	d.logger.Debug().Int("accounts", len(accounts)).Msg("Discovered Instagram business accounts")
	return accounts, nil
}

// graphError maps a Graph API error object. Code 190 is an invalid token and
// 10 or 200-299 a missing permission.
func graphError(code int, message string) error {
	if code == 190 || code == 10 || (code >= 200 && code < 300) {
		return fmt.Errorf("%w: graph api error %d: %s", domain.ErrPlatformUnauthorized, code, message)
	}
	return &domain.TransportError{Err: fmt.Errorf("graph api error %d: %s", code, message)}
}
