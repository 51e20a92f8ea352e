package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/pkg/mongodb"
	"github.com/white/crm-backend/pkg/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoSessionRepository stores login sessions keyed by refresh token hash.
type MongoSessionRepository struct {
	client     *mongodb.Client
	collection *mongo.Collection
}

func NewMongoSessionRepository(client *mongodb.Client) *MongoSessionRepository {
	return &MongoSessionRepository{
		client:     client,
		collection: client.Collection("sessions"),
	}
}

func (r *MongoSessionRepository) Create(ctx context.Context, s *models.Session) error {
	if s.ID == "" {
		s.ID = uuid.MustNewUUID()
	}
	if _, err := r.collection.InsertOne(ctx, s); err != nil {
		return fmt.Errorf("error creating session: %w", err)
	}
	return nil
}

func (r *MongoSessionRepository) GetByTokenHash(ctx context.Context, hash string) (*models.Session, error) {
	var s models.Session
	err := r.collection.FindOne(ctx, bson.M{"token_hash": hash}).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, WrapNotFound(err, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("error finding session: %w", err)
	}
	return &s, nil
}

// Revoke stamps revoked_at. Revoking twice is not an error.
func (r *MongoSessionRepository) Revoke(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{"revoked_at": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("error revoking session: %w", err)
	}
	if result.MatchedCount == 0 {
		return NotFound(ErrSessionNotFound)
	}
	return nil
}

// RevokeAllForUser ends every open session of a user
func (r *MongoSessionRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID, "revoked_at": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"revoked_at": time.Now().UTC()}}
	if _, err := r.collection.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("error revoking sessions: %w", err)
	}
	return nil
}
