package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"archie-core-integrations-layer/internal/infrastructure/pubsub"
)

var heartbeatInterval = 25 * time.Second

// StreamEvents handles GET /integrations/events as a Server-Sent Events stream
// of the session tenant's connection lifecycle events.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := h.events.Subscribe(r.Context(), &pubsub.ConnectionEventFilter{TenantID: tenantID})
	defer h.events.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error().Err(err).Msg("Failed to encode connection event")
				continue
			}
			fmt.Fprintf(w, "event: connection\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
