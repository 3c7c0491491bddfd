package repository

import (
	"context"
	"fmt"
	"time"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/infrastructure/repository/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WebhookRetention is how long received webhooks are kept
const WebhookRetention = 30 * 24 * time.Hour

// MongoWebhookLogRepository records received webhooks in MongoDB
type MongoWebhookLogRepository struct {
	collection *mongo.Collection
}

// NewMongoWebhookLogRepository creates a new webhook log repository
func NewMongoWebhookLogRepository(db *mongo.Database) *MongoWebhookLogRepository {
	return &MongoWebhookLogRepository{
		collection: db.Collection("webhook_events"),
	}
}

// EnsureIndexes creates the retention TTL index and the tenant lookup index
func (r *MongoWebhookLogRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(WebhookRetention.Seconds())).SetName("webhook_retention"),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "topic", Value: 1}},
			Options: options.Index().SetName("tenant_topic"),
		},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create webhook indexes: %w", err)
	}
	return nil
}

// LogWebhook logs a webhook event
func (r *MongoWebhookLogRepository) LogWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	doc := entity.MongoWebhookDocFromDomain(event)
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = time.Now().UTC()

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to log webhook: %w", err)
	}
	return nil
}
