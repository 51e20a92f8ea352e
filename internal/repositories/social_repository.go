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

// MongoSocialRepository stores connected pages, their posts and captured leads
type MongoSocialRepository struct {
	client   *mongodb.Client
	accounts *mongo.Collection
	posts    *mongo.Collection
	leads    *mongo.Collection
}

func NewMongoSocialRepository(client *mongodb.Client) *MongoSocialRepository {
	return &MongoSocialRepository{
		client:   client,
		accounts: client.Collection("social_accounts"),
		posts:    client.Collection("social_posts"),
		leads:    client.Collection("social_leads"),
	}
}

func (r *MongoSocialRepository) ListAccounts(ctx context.Context, tenantID string) ([]*models.SocialAccount, error) {
	opts := options.Find().SetSort(bson.D{{Key: "connected_at", Value: -1}})
	cursor, err := r.accounts.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing social accounts: %w", err)
	}
	defer cursor.Close(ctx)

	accounts := []*models.SocialAccount{}
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("error decoding social accounts: %w", err)
	}
	return accounts, nil
}

func (r *MongoSocialRepository) GetAccount(ctx context.Context, tenantID, id string) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := r.accounts.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, WrapNotFound(err, ErrSocialAccountNotFound)
		}
		return nil, fmt.Errorf("error finding social account: %w", err)
	}
	return &account, nil
}

// DeleteAccount disconnects a page along with its scheduled posts
func (r *MongoSocialRepository) DeleteAccount(ctx context.Context, tenantID, id string) error {
	result, err := r.accounts.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("error deleting social account: %w", err)
	}
	if result.DeletedCount == 0 {
		return NotFound(ErrSocialAccountNotFound)
	}
	filter := bson.M{"tenant_id": tenantID, "account_id": id, "status": models.PostScheduled}
	if _, err := r.posts.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("error deleting scheduled posts: %w", err)
	}
	return nil
}

func (r *MongoSocialRepository) CreatePost(ctx context.Context, post *models.SocialPost) error {
	post.ID = uuid.MustNewUUID()
	post.CreatedAt = time.Now().UTC()
	if _, err := r.posts.InsertOne(ctx, post); err != nil {
		return fmt.Errorf("error creating social post: %w", err)
	}
	return nil
}

func (r *MongoSocialRepository) ListPosts(ctx context.Context, tenantID string) ([]*models.SocialPost, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.posts.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing social posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := []*models.SocialPost{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("error decoding social posts: %w", err)
	}
	return posts, nil
}

func (r *MongoSocialRepository) ListLeads(ctx context.Context, tenantID string) ([]*models.Lead, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.leads.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing leads: %w", err)
	}
	defer cursor.Close(ctx)

	leads := []*models.Lead{}
	if err := cursor.All(ctx, &leads); err != nil {
		return nil, fmt.Errorf("error decoding leads: %w", err)
	}
	return leads, nil
}
