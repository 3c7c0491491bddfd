package api

import (
	"encoding/json"
	"net/http"

	"archie-core-integrations-layer/internal/infrastructure/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SwaggerDocPath is where the OpenAPI document is read from
var SwaggerDocPath = "./docs/swagger.json"

// RegisterRoutes declares every route together with its credential policy
func (h *Handler) RegisterRoutes(r *middleware.GuardedRouter) {
	// Operational surface
	r.Handle(http.MethodGet, "/health", middleware.PublicPolicy, http.HandlerFunc(health))
	r.Handle(http.MethodGet, "/metrics", middleware.PublicPolicy, promhttp.Handler())
	r.Handle(http.MethodGet, "/swagger/doc.json", middleware.PublicPolicy, http.HandlerFunc(swaggerDoc))
	r.Handle(http.MethodGet, "/swagger/*", middleware.PublicPolicy, httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Platform callbacks
	r.Handle(http.MethodGet, "/integrations/oauth/callback", middleware.PublicPolicy, http.HandlerFunc(h.OAuthCallback))
	r.Handle(http.MethodPost, "/webhooks/shopify/{tenantId}", middleware.PublicPolicy, http.HandlerFunc(h.ShopifyWebhook))

	// Service-to-service
	r.Handle(http.MethodGet, "/internal/tenants/{tenantId}/integrations/{platform}", middleware.ServicePolicy, http.HandlerFunc(h.GetTenantConnection))

	// Tenant routes
	r.Get("/integrations", h.ListConnections)
	r.Get("/integrations/events", h.StreamEvents)
	r.Get("/integrations/{platform}", h.GetConnection)
	r.Post("/integrations/connect", h.Connect)
	r.Post("/integrations/authorize", h.BeginConnect)
	r.Post("/integrations/disconnect", h.Disconnect)
	r.Post("/integrations/instagram/select", h.SelectInstagramAccount)
	r.Post("/integrations/google-ads/select", h.SelectGoogleAdsCustomer)
	r.Post("/integrations/shopify/web-pixels", h.CreateWebPixel)
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func swaggerDoc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, SwaggerDocPath)
}
