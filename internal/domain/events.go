package domain

import "time"

// ConnectionEvent is published on every connection lifecycle transition
type ConnectionEvent struct {
	TenantID            string           `json:"tenant_id"`
	Platform            Platform         `json:"platform"`
	Status              ConnectionStatus `json:"status"`
	PrimarySubAccountID string           `json:"primary_sub_account_id,omitempty"`
	Reason              string           `json:"reason,omitempty"`
	OccurredAt          time.Time        `json:"occurred_at"`
}

// EventFromConnection snapshots a connection into an event
func EventFromConnection(c *Connection, at time.Time) *ConnectionEvent {
	return &ConnectionEvent{
		TenantID:            c.TenantID,
		Platform:            c.Platform,
		Status:              c.Status,
		PrimarySubAccountID: c.PrimarySubAccountID,
		Reason:              c.DisconnectReason,
		OccurredAt:          at,
	}
}

// WebhookEvent is a verified inbound platform webhook
type WebhookEvent struct {
	Topic    string
	Shop     string
	TenantID string
	Payload  []byte
	Verified bool
}
