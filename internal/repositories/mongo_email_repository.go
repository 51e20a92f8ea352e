package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/pkg/mongodb"
	"github.com/white/crm-backend/pkg/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoEmailRepository handles sent and received email records with MongoDB
type MongoEmailRepository struct {
	client     *mongodb.Client
	collection *mongo.Collection
}

func NewMongoEmailRepository(client *mongodb.Client) *MongoEmailRepository {
	return &MongoEmailRepository{
		client:     client,
		collection: client.Collection("emails"),
	}
}

// Create inserts an email record. A record already carrying an id keeps it.
func (r *MongoEmailRepository) Create(ctx context.Context, email *models.EmailRecord) error {
	if email.ID == "" {
		email.ID = uuid.MustNewUUID()
	}
	if email.CreatedAt.IsZero() {
		email.CreatedAt = time.Now().UTC()
	}
	if _, err := r.collection.InsertOne(ctx, email); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: email %s", ErrDuplicateKey, email.ID)
		}
		return fmt.Errorf("error creating email record: %w", err)
	}
	return nil
}

// GetByID retrieves an email record by ID
func (r *MongoEmailRepository) GetByID(ctx context.Context, tenantID, id string) (*models.EmailRecord, error) {
	var email models.EmailRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, WrapNotFound(err, ErrEmailNotFound)
		}
		return nil, fmt.Errorf("error finding email: %w", err)
	}
	return &email, nil
}

// GetByMessageID finds the record a provider Message-ID belongs to
func (r *MongoEmailRepository) GetByMessageID(ctx context.Context, tenantID, messageID string) (*models.EmailRecord, error) {
	var email models.EmailRecord
	err := r.collection.FindOne(ctx, bson.M{"tenant_id": tenantID, "message_id": messageID}).Decode(&email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, WrapNotFound(err, ErrEmailNotFound)
		}
		return nil, fmt.Errorf("error finding email by message id: %w", err)
	}
	return &email, nil
}

// List returns the tenant's email records, newest first
func (r *MongoEmailRepository) List(ctx context.Context, tenantID string, limit int) ([]*models.EmailRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing emails: %w", err)
	}
	defer cursor.Close(ctx)

	emails := []*models.EmailRecord{}
	if err := cursor.All(ctx, &emails); err != nil {
		return nil, fmt.Errorf("error decoding emails: %w", err)
	}
	return emails, nil
}

// MarkRead stamps read_at unless the record was already read
func (r *MongoEmailRepository) MarkRead(ctx context.Context, tenantID, id string, at time.Time) error {
	filter := bson.M{"_id": id, "tenant_id": tenantID}
	update := bson.M{"$min": bson.M{"read_at": at}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("error marking email read: %w", err)
	}
	if result.MatchedCount == 0 {
		return NotFound(ErrEmailNotFound)
	}
	return nil
}

// UpdateStatus records the provider outcome of a send
func (r *MongoEmailRepository) UpdateStatus(ctx context.Context, email *models.EmailRecord) error {
	filter := bson.M{"_id": email.ID, "tenant_id": email.TenantID}
	update := bson.M{"$set": bson.M{
		"status":         email.Status,
		"failure_reason": email.FailureReason,
		"sent_at":        email.SentAt,
	}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("error updating email status: %w", err)
	}
	if result.MatchedCount == 0 {
		return NotFound(ErrEmailNotFound)
	}
	return nil
}

func (r *MongoEmailRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("error deleting email: %w", err)
	}
	if result.DeletedCount == 0 {
		return NotFound(ErrEmailNotFound)
	}
	return nil
}
