package repositories

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/pkg/mongodb"
	"github.com/white/crm-backend/pkg/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoContactRepository struct {
	client     *mongodb.Client
	collection *mongo.Collection
}

func NewMongoContactRepository(client *mongodb.Client) *MongoContactRepository {
	return &MongoContactRepository{
		client:     client,
		collection: client.Collection("contacts"),
	}
}

// Create inserts a new contact
func (r *MongoContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	now := time.Now().UTC()
	contact.ID = uuid.MustNewUUID()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, contact); err != nil {
		return fmt.Errorf("error creating contact: %w", err)
	}
	return nil
}

func (r *MongoContactRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Contact, error) {
	var contact models.Contact
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&contact)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, WrapNotFound(err, ErrContactNotFound)
		}
		return nil, fmt.Errorf("error finding contact: %w", err)
	}
	return &contact, nil
}

// List returns one page of contacts and the total matching count.
// Search matches name, email and company case-insensitively.
func (r *MongoContactRepository) List(ctx context.Context, tenantID string, q models.ContactQuery) ([]*models.Contact, int64, error) {
	filter := bson.M{"tenant_id": tenantID}
	if q.Search != "" {
		pattern := primitiveRegex(q.Search)
		filter["$or"] = bson.A{
			bson.M{"first_name": pattern},
			bson.M{"last_name": pattern},
			bson.M{"email": pattern},
			bson.M{"company": pattern},
		}
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting contacts: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "first_name", Value: 1}, {Key: "last_name", Value: 1}})
	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * q.Limit)).SetLimit(int64(q.Limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing contacts: %w", err)
	}
	defer cursor.Close(ctx)

	contacts := []*models.Contact{}
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, 0, fmt.Errorf("error decoding contacts: %w", err)
	}
	return contacts, total, nil
}

func (r *MongoContactRepository) Update(ctx context.Context, contact *models.Contact) error {
	contact.UpdatedAt = time.Now().UTC()

	filter := bson.M{"_id": contact.ID, "tenant_id": contact.TenantID}
	update := bson.M{
		"$set": bson.M{
			"first_name": contact.FirstName,
			"last_name":  contact.LastName,
			"email":      contact.Email,
			"phone":      contact.Phone,
			"company":    contact.Company,
			"job_title":  contact.JobTitle,
			"owner_id":   contact.OwnerID,
			"tags":       contact.Tags,
			"updated_at": contact.UpdatedAt,
		},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("error updating contact: %w", err)
	}
	if result.MatchedCount == 0 {
		return NotFound(ErrContactNotFound)
	}
	return nil
}

func (r *MongoContactRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("error deleting contact: %w", err)
	}
	if result.DeletedCount == 0 {
		return NotFound(ErrContactNotFound)
	}
	return nil
}

// Count returns the number of contacts the tenant owns
func (r *MongoContactRepository) Count(ctx context.Context, tenantID string) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return 0, fmt.Errorf("error counting contacts: %w", err)
	}
	return n, nil
}

func primitiveRegex(search string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
}
