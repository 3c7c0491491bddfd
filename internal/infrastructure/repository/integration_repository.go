package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/infrastructure/repository/entity"
	"archie-core-integrations-layer/internal/ports"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const maxMutateAttempts = 8

var errConcurrentModification = errors.New("concurrent modification")

// MongoConnectionRepository implements ConnectionRepository using MongoDB.
// Per-key atomicity uses a version field as compare-and-swap guard.
type MongoConnectionRepository struct {
	collection *mongo.Collection
	encryption ports.EncryptionService
	logger     zerolog.Logger
}

// NewMongoConnectionRepository creates a new MongoDB connection repository
func NewMongoConnectionRepository(db *mongo.Database, encryption ports.EncryptionService, logger zerolog.Logger) *MongoConnectionRepository {
	return &MongoConnectionRepository{
		collection: db.Collection("integration_connections"),
		encryption: encryption,
		logger:     logger,
	}
}

// EnsureIndexes creates the unique (tenantId, platform) index
func (r *MongoConnectionRepository) EnsureIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "platform", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("tenant_platform_unique"),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("failed to create connection index: %w", err)
	}
	return nil
}

// Get retrieves the connection for a tenant and platform
func (r *MongoConnectionRepository) Get(ctx context.Context, tenantID string, platform domain.Platform) (*domain.Connection, error) {
	var doc entity.MongoConnectionDoc
	filter := bson.M{"tenantId": tenantID, "platform": string(platform)}

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	return doc.ToDomain(r.encryption)
}

// ListByTenant retrieves all connections of a tenant
func (r *MongoConnectionRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Connection, error) {
	opts := options.Find().SetSort(bson.D{{Key: "platform", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"tenantId": tenantID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer cursor.Close(ctx)

	var connections []*domain.Connection
	for cursor.Next(ctx) {
		var doc entity.MongoConnectionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode connection: %w", err)
		}
		conn, err := doc.ToDomain(r.encryption)
		if err != nil {
			return nil, err
		}
		connections = append(connections, conn)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return connections, nil
}

// Mutate performs an optimistic read-modify-write, retrying when another
// writer changed the record between the read and the write.
func (r *MongoConnectionRepository) Mutate(ctx context.Context, tenantID string, platform domain.Platform, mutate ports.ConnectionMutation) (*domain.Connection, error) {
	for attempt := 1; attempt <= maxMutateAttempts; attempt++ {
		current, err := r.Get(ctx, tenantID, platform)
		if err != nil {
			return nil, err
		}

		next, err := mutate(current.Clone())
		if err != nil {
			return nil, err
		}
		if next == nil {
			return current, nil
		}

		err = r.write(ctx, current, next)
		if errors.Is(err, errConcurrentModification) {
			r.logger.Debug().
				Str("tenantId", tenantID).
				Str("platform", string(platform)).
				Int("attempt", attempt).
				Msg("Connection changed concurrently, retrying mutation")
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}

	return nil, fmt.Errorf("failed to update connection: %w", errConcurrentModification)
}

func (r *MongoConnectionRepository) write(ctx context.Context, current, next *domain.Connection) error {
	now := time.Now().UTC()
	next.UpdatedAt = now

	if current == nil {
		next.Version = 1
		next.CreatedAt = now
		doc, err := entity.MongoConnectionDocFromDomain(next, r.encryption)
		if err != nil {
			return err
		}
		result, err := r.collection.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) {
			return errConcurrentModification
		}
		if err != nil {
			return fmt.Errorf("failed to create connection: %w", err)
		}
		if id, ok := result.InsertedID.(interface{ Hex() string }); ok {
			next.ID = id.Hex()
		}
		return nil
	}

	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	doc, err := entity.MongoConnectionDocFromDomain(next, r.encryption)
	if err != nil {
		return err
	}

	filter := bson.M{
		"tenantId": current.TenantID,
		"platform": string(current.Platform),
		"version":  current.Version,
	}
	result, err := r.collection.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}
	if result.MatchedCount == 0 {
		return errConcurrentModification
	}
	return nil
}
