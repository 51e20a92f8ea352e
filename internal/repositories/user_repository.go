package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/pkg/mongodb"
	"github.com/white/crm-backend/pkg/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoUserRepository struct {
	client     *mongodb.Client
	collection *mongo.Collection
}

func NewMongoUserRepository(client *mongodb.Client) *MongoUserRepository {
	return &MongoUserRepository{
		client:     client,
		collection: client.Collection("users"),
	}
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, WrapNotFound(err, ErrUserNotFound)
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}

	return &user, nil
}

// GetByEmail retrieves a user by their email address. Emails are unique
// across tenants so login needs no tenant hint.
func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User

	filter := bson.M{"email": strings.ToLower(strings.TrimSpace(email))}
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, WrapNotFound(mongo.ErrNoDocuments, ErrUserNotFound)
		}
		return nil, fmt.Errorf("error finding user by email: %w", err)
	}

	return &user, nil
}

// ListByTenant returns the active members of a tenant ordered by name
func (r *MongoUserRepository) ListByTenant(ctx context.Context, tenantID string) ([]*models.User, error) {
	filter := bson.M{"tenant_id": tenantID, "is_active": true}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []*models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("error decoding users: %w", err)
	}
	return users, nil
}

// Create inserts a new user document
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.ID = uuid.MustNewUUID()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: user with email %s already exists", ErrDuplicateKey, user.Email)
		}
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps a successful login
func (r *MongoUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	update := bson.M{"$set": bson.M{"last_login_at": at, "updated_at": at}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("error updating last login: %w", err)
	}
	if result.MatchedCount == 0 {
		return NotFound(ErrUserNotFound)
	}
	return nil
}

// Delete removes a member from a tenant
func (r *MongoUserRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}
	if result.DeletedCount == 0 {
		return NotFound(ErrUserNotFound)
	}
	return nil
}
