package entity

import (
	"fmt"
	"time"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoSubAccountDoc represents a candidate sub-account in MongoDB
type MongoSubAccountDoc struct {
	ID          string `bson:"id"`
	DisplayName string `bson:"displayName"`
}

// MongoConnectionDoc represents an integration connection in MongoDB.
// Tokens are stored sealed.
type MongoConnectionDoc struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty"`
	TenantID             string               `bson:"tenantId"`
	Platform             string               `bson:"platform"`
	Status               string               `bson:"status"`
	EncryptedAccessToken string               `bson:"encryptedAccessToken,omitempty"`
	EncryptedRefresh     string               `bson:"encryptedRefreshToken,omitempty"`
	TokenExpiresAt       *time.Time           `bson:"tokenExpiresAt,omitempty"`
	Scopes               []string             `bson:"scopes,omitempty"`
	ExternalAccountID    string               `bson:"externalAccountId,omitempty"`
	ConnectedAt          *time.Time           `bson:"connectedAt,omitempty"`
	DisconnectedAt       *time.Time           `bson:"disconnectedAt,omitempty"`
	DisconnectReason     string               `bson:"disconnectReason,omitempty"`
	CandidateSubAccounts []MongoSubAccountDoc `bson:"candidateSubAccounts"`
	PrimarySubAccountID  string               `bson:"primarySubAccountId,omitempty"`
	Version              int64                `bson:"version"`
	CreatedAt            time.Time            `bson:"createdAt"`
	UpdatedAt            time.Time            `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity, opening sealed tokens
func (d *MongoConnectionDoc) ToDomain(enc ports.EncryptionService) (*domain.Connection, error) {
	accessToken, err := enc.Decrypt(d.EncryptedAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refreshToken, err := enc.Decrypt(d.EncryptedRefresh)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	var subAccounts []domain.SubAccount
	for _, sa := range d.CandidateSubAccounts {
		subAccounts = append(subAccounts, domain.SubAccount{ID: sa.ID, DisplayName: sa.DisplayName})
	}

	return &domain.Connection{
		ID:       d.ID.Hex(),
		TenantID: d.TenantID,
		Platform: domain.Platform(d.Platform),
		Status:   domain.ConnectionStatus(d.Status),
		Credentials: domain.Credentials{
			AccessToken:       accessToken,
			RefreshToken:      refreshToken,
			ExpiresAt:         d.TokenExpiresAt,
			Scopes:            d.Scopes,
			ExternalAccountID: d.ExternalAccountID,
		},
		ConnectedAt:          d.ConnectedAt,
		DisconnectedAt:       d.DisconnectedAt,
		DisconnectReason:     d.DisconnectReason,
		CandidateSubAccounts: subAccounts,
		PrimarySubAccountID:  d.PrimarySubAccountID,
		Version:              d.Version,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}, nil
}

// MongoConnectionDocFromDomain converts a domain entity to a MongoDB document, sealing tokens
func MongoConnectionDocFromDomain(c *domain.Connection, enc ports.EncryptionService) (*MongoConnectionDoc, error) {
	accessToken, err := enc.Encrypt(c.Credentials.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshToken, err := enc.Encrypt(c.Credentials.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	subAccounts := make([]MongoSubAccountDoc, 0, len(c.CandidateSubAccounts))
	for _, sa := range c.CandidateSubAccounts {
		subAccounts = append(subAccounts, MongoSubAccountDoc{ID: sa.ID, DisplayName: sa.DisplayName})
	}

	doc := &MongoConnectionDoc{
		TenantID:             c.TenantID,
		Platform:             string(c.Platform),
		Status:               string(c.Status),
		EncryptedAccessToken: accessToken,
		EncryptedRefresh:     refreshToken,
		TokenExpiresAt:       c.Credentials.ExpiresAt,
		Scopes:               c.Credentials.Scopes,
		ExternalAccountID:    c.Credentials.ExternalAccountID,
		ConnectedAt:          c.ConnectedAt,
		DisconnectedAt:       c.DisconnectedAt,
		DisconnectReason:     c.DisconnectReason,
		CandidateSubAccounts: subAccounts,
		PrimarySubAccountID:  c.PrimarySubAccountID,
		Version:              c.Version,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}

	if c.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(c.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc, nil
}
