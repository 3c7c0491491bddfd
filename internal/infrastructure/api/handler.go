package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"archie-core-integrations-layer/internal/application"
	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/infrastructure/pubsub"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// IntegrationOperations is the tenant-facing surface of the integration service
type IntegrationOperations interface {
	Connect(ctx context.Context, input application.ConnectInput) (*domain.Connection, error)
	BeginConnect(ctx context.Context, input application.BeginConnectInput) (*application.BeginConnectResult, error)
	CompleteConnect(ctx context.Context, input application.CompleteConnectInput) (*domain.Connection, error)
	Disconnect(ctx context.Context, tenantID string, platformName string) error
	SelectInstagramAccount(ctx context.Context, tenantID string, instagramAccountID string) (*domain.Connection, error)
	SelectGoogleAdsCustomer(ctx context.Context, tenantID string, customerID string) (*domain.Connection, error)
	CreateWebPixel(ctx context.Context, tenantID string, name string) (*domain.WebPixel, error)
	GetConnection(ctx context.Context, tenantID string, platformName string) (*domain.Connection, error)
	ListConnections(ctx context.Context, tenantID string) ([]*domain.Connection, error)
}

// WebhookProcessor dispatches verified webhooks
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, event *domain.WebhookEvent) error
}

// RequestVerifier authenticates a webhook request and returns its body
type RequestVerifier interface {
	Verify(r *http.Request) ([]byte, error)
}

// CallbackVerifier checks the signature platforms attach to OAuth callbacks
type CallbackVerifier interface {
	VerifyCallback(u *url.URL) bool
}

// Handler serves the integrations HTTP API
type Handler struct {
	integrations     IntegrationOperations
	webhooks         WebhookProcessor
	webhookVerifier  RequestVerifier
	callbackVerifier CallbackVerifier
	events           *pubsub.ConnectionPubSub
	validate         *validator.Validate
	logger           zerolog.Logger
}

// NewHandler creates a new API handler. webhookVerifier and callbackVerifier
// may be nil when Shopify is not configured.
func NewHandler(
	integrations IntegrationOperations,
	webhooks WebhookProcessor,
	webhookVerifier RequestVerifier,
	callbackVerifier CallbackVerifier,
	events *pubsub.ConnectionPubSub,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		integrations:     integrations,
		webhooks:         webhooks,
		webhookVerifier:  webhookVerifier,
		callbackVerifier: callbackVerifier,
		events:           events,
		validate:         validator.New(validator.WithRequiredStructEnabled()),
		logger:           logger,
	}
}

type connectRequest struct {
	Platform    string `json:"platform" validate:"required"`
	Code        string `json:"code" validate:"required"`
	Shop        string `json:"shop,omitempty"`
	RedirectURI string `json:"redirectUri,omitempty" validate:"omitempty,url"`
}

type beginConnectRequest struct {
	Platform string `json:"platform" validate:"required"`
	Shop     string `json:"shop,omitempty"`
}

type disconnectRequest struct {
	Platform string `json:"platform" validate:"required"`
}

type selectInstagramRequest struct {
	InstagramAccountID string `json:"instagramAccountId" validate:"required"`
}

type selectGoogleAdsRequest struct {
	PrimaryCustomerAccount string `json:"primaryCustomerAccount" validate:"required"`
}

type createWebPixelRequest struct {
	Name string `json:"name" validate:"required"`
}

// decode reads a JSON body into dst and validates it
func (h *Handler) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", domain.ErrValidation, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// tenant returns the tenant of the session identity
func tenant(r *http.Request) (string, error) {
	tenantID := domain.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return "", domain.ErrInvalidOrExpiredToken
	}
	return tenantID, nil
}

// Connect handles POST /integrations/connect
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req connectRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	conn, err := h.integrations.Connect(r.Context(), application.ConnectInput{
		TenantID:    tenantID,
		Platform:    req.Platform,
		Code:        req.Code,
		Shop:        req.Shop,
		RedirectURI: req.RedirectURI,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// BeginConnect handles POST /integrations/authorize
func (h *Handler) BeginConnect(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req beginConnectRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.integrations.BeginConnect(r.Context(), application.BeginConnectInput{
		TenantID: tenantID,
		Platform: req.Platform,
		Shop:     req.Shop,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authorizationUrl": result.AuthorizationURL,
		"state":            result.State,
		"expiresAt":        result.ExpiresAt,
	})
}

// OAuthCallback handles GET /integrations/oauth/callback. The platform
// redirects the browser here, so neither credential check applies; the state
// nonce binds the request to the tenant that began the flow. A Shopify
// callback, recognised by its shop or hmac parameter, must carry a valid hmac.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	signed := query.Get("hmac") != "" || query.Get("shop") != ""
	if signed && h.callbackVerifier != nil && !h.callbackVerifier.VerifyCallback(r.URL) {
		h.logger.Warn().Str("shop", query.Get("shop")).Msg("OAuth callback signature verification failed")
		writeError(w, h.logger, fmt.Errorf("%w: invalid callback signature", domain.ErrValidation))
		return
	}
	if errMsg := query.Get("error"); errMsg != "" {
		writeError(w, h.logger, fmt.Errorf("%w: authorization denied: %s", domain.ErrValidation, errMsg))
		return
	}

	conn, err := h.integrations.CompleteConnect(r.Context(), application.CompleteConnectInput{
		State: query.Get("state"),
		Code:  query.Get("code"),
		Shop:  query.Get("shop"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// Disconnect handles POST /integrations/disconnect
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req disconnectRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Unknown platforms never reach the service
	if _, err := domain.ParsePlatform(req.Platform); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.integrations.Disconnect(r.Context(), tenantID, req.Platform); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SelectInstagramAccount handles POST /integrations/instagram/select
func (h *Handler) SelectInstagramAccount(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req selectInstagramRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	conn, err := h.integrations.SelectInstagramAccount(r.Context(), tenantID, req.InstagramAccountID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// SelectGoogleAdsCustomer handles POST /integrations/google-ads/select
func (h *Handler) SelectGoogleAdsCustomer(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req selectGoogleAdsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	conn, err := h.integrations.SelectGoogleAdsCustomer(r.Context(), tenantID, req.PrimaryCustomerAccount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// CreateWebPixel handles POST /integrations/shopify/web-pixels
func (h *Handler) CreateWebPixel(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req createWebPixelRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	pixel, err := h.integrations.CreateWebPixel(r.Context(), tenantID, req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, pixel)
}

// ListConnections handles GET /integrations
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	conns, err := h.integrations.ListConnections(r.Context(), tenantID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if conns == nil {
		conns = []*domain.Connection{}
	}
	writeJSON(w, http.StatusOK, conns)
}

// GetConnection handles GET /integrations/{platform}
func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.writeConnection(w, r, tenantID)
}

// GetTenantConnection handles GET /internal/tenants/{tenantId}/integrations/{platform}
func (h *Handler) GetTenantConnection(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	if strings.TrimSpace(tenantID) == "" {
		writeError(w, h.logger, fmt.Errorf("%w: tenantId is required", domain.ErrValidation))
		return
	}
	h.writeConnection(w, r, tenantID)
}

func (h *Handler) writeConnection(w http.ResponseWriter, r *http.Request, tenantID string) {
	platform := strings.ToUpper(chi.URLParam(r, "platform"))
	conn, err := h.integrations.GetConnection(r.Context(), tenantID, platform)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}
