package entity

import (
	"time"

	"archie-core-integrations-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoWebhookDoc represents a received webhook in MongoDB
type MongoWebhookDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	TenantID  string             `bson:"tenantId"`
	Topic     string             `bson:"topic"`
	Shop      string             `bson:"shop,omitempty"`
	Payload   string             `bson:"payload"`
	Verified  bool               `bson:"verified"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// MongoWebhookDocFromDomain converts a webhook event to a MongoDB document
func MongoWebhookDocFromDomain(event *domain.WebhookEvent) *MongoWebhookDoc {
	return &MongoWebhookDoc{
		TenantID: event.TenantID,
		Topic:    event.Topic,
		Shop:     event.Shop,
		Payload:  string(event.Payload),
		Verified: event.Verified,
	}
}
