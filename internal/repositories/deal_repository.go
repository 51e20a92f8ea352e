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

// MongoDealRepository stores pipelines and the deals moving through them
type MongoDealRepository struct {
	client              *mongodb.Client
	dealsCollection     *mongo.Collection
	pipelinesCollection *mongo.Collection
}

func NewMongoDealRepository(client *mongodb.Client) *MongoDealRepository {
	return &MongoDealRepository{
		client:              client,
		dealsCollection:     client.Collection("deals"),
		pipelinesCollection: client.Collection("pipelines"),
	}
}

// CreatePipeline inserts a pipeline, assigning ids to its stages
func (r *MongoDealRepository) CreatePipeline(ctx context.Context, p *models.Pipeline) error {
	p.ID = uuid.MustNewUUID()
	p.CreatedAt = time.Now().UTC()
	for i := range p.Stages {
		if p.Stages[i].ID == "" {
			p.Stages[i].ID = uuid.MustNewUUID()
		}
	}
	if _, err := r.pipelinesCollection.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("tenant already has a default pipeline: %w", ErrDuplicateKey)
		}
		return fmt.Errorf("error creating pipeline: %w", err)
	}
	return nil
}

func (r *MongoDealRepository) GetPipeline(ctx context.Context, tenantID, id string) (*models.Pipeline, error) {
	var p models.Pipeline
	err := r.pipelinesCollection.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, WrapNotFound(err, ErrPipelineNotFound)
		}
		return nil, fmt.Errorf("error finding pipeline: %w", err)
	}
	return &p, nil
}

func (r *MongoDealRepository) ListPipelines(ctx context.Context, tenantID string) ([]*models.Pipeline, error) {
	opts := options.Find().SetSort(bson.D{{Key: "is_default", Value: -1}, {Key: "created_at", Value: 1}})
	cursor, err := r.pipelinesCollection.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing pipelines: %w", err)
	}
	defer cursor.Close(ctx)

	pipelines := []*models.Pipeline{}
	if err := cursor.All(ctx, &pipelines); err != nil {
		return nil, fmt.Errorf("error decoding pipelines: %w", err)
	}
	return pipelines, nil
}

func (r *MongoDealRepository) CreateDeal(ctx context.Context, d *models.Deal) error {
	now := time.Now().UTC()
	d.ID = uuid.MustNewUUID()
	d.CreatedAt = now
	d.UpdatedAt = now
	if _, err := r.dealsCollection.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("error creating deal: %w", err)
	}
	return nil
}

func (r *MongoDealRepository) GetDeal(ctx context.Context, tenantID, id string) (*models.Deal, error) {
	var d models.Deal
	err := r.dealsCollection.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, WrapNotFound(err, ErrDealNotFound)
		}
		return nil, fmt.Errorf("error finding deal: %w", err)
	}
	return &d, nil
}

func (r *MongoDealRepository) ListDeals(ctx context.Context, tenantID string, f models.DealFilter) ([]*models.Deal, error) {
	filter := bson.M{"tenant_id": tenantID}
	if f.PipelineID != "" {
		filter["pipeline_id"] = f.PipelineID
	}
	if f.StageID != "" {
		filter["stage_id"] = f.StageID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.dealsCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing deals: %w", err)
	}
	defer cursor.Close(ctx)

	deals := []*models.Deal{}
	if err := cursor.All(ctx, &deals); err != nil {
		return nil, fmt.Errorf("error decoding deals: %w", err)
	}
	return deals, nil
}

func (r *MongoDealRepository) UpdateDeal(ctx context.Context, d *models.Deal) error {
	d.UpdatedAt = time.Now().UTC()
	result, err := r.dealsCollection.ReplaceOne(ctx, bson.M{"_id": d.ID, "tenant_id": d.TenantID}, d)
	if err != nil {
		return fmt.Errorf("error updating deal: %w", err)
	}
	if result.MatchedCount == 0 {
		return NotFound(ErrDealNotFound)
	}
	return nil
}

func (r *MongoDealRepository) DeleteDeal(ctx context.Context, tenantID, id string) error {
	result, err := r.dealsCollection.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("error deleting deal: %w", err)
	}
	if result.DeletedCount == 0 {
		return NotFound(ErrDealNotFound)
	}
	return nil
}
