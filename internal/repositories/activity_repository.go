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

// activityDocument is the stored shape of an activity. The variant lives in
// custom_fields and is decoded according to type.
type activityDocument struct {
	ID           string              `bson:"_id"`
	TenantID     string              `bson:"tenant_id"`
	Type         models.ActivityType `bson:"type"`
	Subject      string              `bson:"subject"`
	Description  string              `bson:"description,omitempty"`
	Priority     models.Priority     `bson:"priority,omitempty"`
	AssignedTo   string              `bson:"assigned_to,omitempty"`
	ContactID    string              `bson:"contact_id,omitempty"`
	DealID       string              `bson:"deal_id,omitempty"`
	IsCompleted  bool                `bson:"is_completed"`
	CompletedAt  *time.Time          `bson:"completed_at,omitempty"`
	ScheduledAt  *time.Time          `bson:"scheduled_at,omitempty"`
	DueDate      *time.Time          `bson:"due_date,omitempty"`
	Progress     *int                `bson:"progress,omitempty"`
	CreatedBy    string              `bson:"created_by,omitempty"`
	CreatedAt    time.Time           `bson:"created_at"`
	UpdatedAt    time.Time           `bson:"updated_at"`
	CustomFields bson.Raw            `bson:"custom_fields,omitempty"`
}

func toActivityDocument(a *models.Activity) (*activityDocument, error) {
	doc := &activityDocument{
		ID:          a.ID,
		TenantID:    a.TenantID,
		Type:        a.Type,
		Subject:     a.Subject,
		Description: a.Description,
		Priority:    a.Priority,
		AssignedTo:  a.AssignedTo,
		ContactID:   a.ContactID,
		DealID:      a.DealID,
		IsCompleted: a.IsCompleted,
		CompletedAt: a.CompletedAt,
		ScheduledAt: a.ScheduledAt,
		DueDate:     a.DueDate,
		Progress:    a.Progress,
		CreatedBy:   a.CreatedBy,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	if a.Details != nil {
		raw, err := bson.Marshal(a.Details)
		if err != nil {
			return nil, fmt.Errorf("error encoding %s fields: %w", a.Type, err)
		}
		doc.CustomFields = raw
	}
	return doc, nil
}

func (d *activityDocument) toModel() (*models.Activity, error) {
	a := &models.Activity{
		ID:          d.ID,
		TenantID:    d.TenantID,
		Type:        d.Type,
		Subject:     d.Subject,
		Description: d.Description,
		Priority:    d.Priority,
		AssignedTo:  d.AssignedTo,
		ContactID:   d.ContactID,
		DealID:      d.DealID,
		IsCompleted: d.IsCompleted,
		CompletedAt: d.CompletedAt,
		ScheduledAt: d.ScheduledAt,
		DueDate:     d.DueDate,
		Progress:    d.Progress,
		CreatedBy:   d.CreatedBy,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	details := models.NewDetails(d.Type)
	if details == nil {
		return nil, fmt.Errorf("activity %s has unknown type %q", d.ID, d.Type)
	}
	if len(d.CustomFields) > 0 {
		if err := bson.Unmarshal(d.CustomFields, details); err != nil {
			return nil, fmt.Errorf("error decoding %s fields of activity %s: %w", d.Type, d.ID, err)
		}
	}
	a.Details = details
	return a, nil
}

// MongoActivityRepository handles activity data access with MongoDB.
// Every query is scoped by tenant.
type MongoActivityRepository struct {
	client     *mongodb.Client
	collection *mongo.Collection
}

// NewMongoActivityRepository creates a new MongoActivityRepository
func NewMongoActivityRepository(client *mongodb.Client) *MongoActivityRepository {
	return &MongoActivityRepository{
		client:     client,
		collection: client.Collection("activities"),
	}
}

// Create inserts a new activity, assigning its id and timestamps
func (r *MongoActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	now := time.Now().UTC()
	activity.ID = uuid.MustNewUUID()
	activity.CreatedAt = now
	activity.UpdatedAt = now

	doc, err := toActivityDocument(activity)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("error creating activity: %w", err)
	}
	return nil
}

// GetByID retrieves one activity of the tenant
func (r *MongoActivityRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Activity, error) {
	filter := bson.M{"_id": id, "tenant_id": tenantID}

	var doc activityDocument
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, WrapNotFound(err, ErrActivityNotFound)
		}
		return nil, fmt.Errorf("error querying activity: %w", err)
	}
	return doc.toModel()
}

// List returns the tenant's activities, newest first
func (r *MongoActivityRepository) List(ctx context.Context, tenantID string, f models.ActivityFilter) ([]*models.Activity, error) {
	filter := bson.M{"tenant_id": tenantID}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	if f.IsCompleted != nil {
		filter["is_completed"] = *f.IsCompleted
	}
	if f.AssignedTo != "" {
		filter["assigned_to"] = f.AssignedTo
	}
	if f.ContactID != "" {
		filter["contact_id"] = f.ContactID
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing activities: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []activityDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding activities: %w", err)
	}

	activities := make([]*models.Activity, 0, len(docs))
	for i := range docs {
		a, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, nil
}

// Update replaces the stored activity
func (r *MongoActivityRepository) Update(ctx context.Context, activity *models.Activity) error {
	activity.UpdatedAt = time.Now().UTC()

	doc, err := toActivityDocument(activity)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": activity.ID, "tenant_id": activity.TenantID}
	result, err := r.collection.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return fmt.Errorf("error updating activity: %w", err)
	}
	if result.MatchedCount == 0 {
		return NotFound(ErrActivityNotFound)
	}
	return nil
}

// Delete removes an activity
func (r *MongoActivityRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("error deleting activity: %w", err)
	}
	if result.DeletedCount == 0 {
		return NotFound(ErrActivityNotFound)
	}
	return nil
}
