package api

import (
	"net/http"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/infrastructure/metrics"

	"github.com/go-chi/chi/v5"
)

const (
	shopifyTopicHeader = "X-Shopify-Topic"
	shopifyShopHeader  = "X-Shopify-Shop-Domain"
)

// ShopifyWebhook handles POST /webhooks/shopify/{tenantId}
func (h *Handler) ShopifyWebhook(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	topic := r.Header.Get(shopifyTopicHeader)

	if h.webhookVerifier == nil {
		metrics.WebhooksReceived.WithLabelValues(topic, "disabled").Inc()
		http.Error(w, "Shopify webhooks are not configured", http.StatusNotFound)
		return
	}
	if topic == "" {
		metrics.WebhooksReceived.WithLabelValues(topic, "rejected").Inc()
		http.Error(w, "Missing X-Shopify-Topic header", http.StatusBadRequest)
		return
	}

	payload, err := h.webhookVerifier.Verify(r)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(topic, "invalid_signature").Inc()
		h.logger.Warn().
			Err(err).
			Str("tenantId", tenantID).
			Str("topic", topic).
			Msg("Webhook signature verification failed")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	event := &domain.WebhookEvent{
		Topic:    topic,
		Shop:     r.Header.Get(shopifyShopHeader),
		TenantID: tenantID,
		Payload:  payload,
		Verified: true,
	}

	if err := h.webhooks.ProcessWebhook(r.Context(), event); err != nil {
		metrics.WebhooksReceived.WithLabelValues(topic, "failed").Inc()
		h.logger.Error().
			Err(err).
			Str("tenantId", tenantID).
			Str("topic", topic).
			Msg("Failed to process webhook event")
		// 5xx makes Shopify retry the delivery
		http.Error(w, "Failed to process webhook event", http.StatusInternalServerError)
		return
	}

	metrics.WebhooksReceived.WithLabelValues(topic, "processed").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
}
