package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/internal/repositories"
)

type DealService struct {
	repo  DealRepository
	audit *events.AuditPublisher
}

func NewDealService(repo DealRepository, audit *events.AuditPublisher) *DealService {
	return &DealService{repo: repo, audit: audit}
}

// ListPipelines returns the tenant's pipelines, seeding the default one for
// a tenant that has none. A tenant holds at most one default pipeline, so a
// concurrent seed losing the insert re-reads the winner's.
func (s *DealService) ListPipelines(ctx context.Context, tenantID string) ([]*models.Pipeline, error) {
	pipelines, err := s.repo.ListPipelines(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	if len(pipelines) > 0 {
		return pipelines, nil
	}

	seed := &models.Pipeline{
		TenantID:  tenantID,
		Name:      "Sales Pipeline",
		Stages:    models.DefaultStages(),
		IsDefault: true,
	}
	err = s.repo.CreatePipeline(ctx, seed)
	if repositories.IsDuplicateKey(err) {
		pipelines, err = s.repo.ListPipelines(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to list pipelines: %w", err)
		}
		return pipelines, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to seed default pipeline: %w", err)
	}
	return []*models.Pipeline{seed}, nil
}

func (s *DealService) CreatePipeline(ctx context.Context, actor events.Actor, p *models.Pipeline) (*models.Pipeline, error) {
	p.TenantID = actor.TenantID
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sort.SliceStable(p.Stages, func(i, j int) bool { return p.Stages[i].Order < p.Stages[j].Order })
	for i := range p.Stages {
		p.Stages[i].Order = i + 1
	}
	if err := s.repo.CreatePipeline(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return p, nil
}

func (s *DealService) ListDeals(ctx context.Context, tenantID string, f models.DealFilter) ([]*models.Deal, error) {
	deals, err := s.repo.ListDeals(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	return deals, nil
}

// CreateDeal stores a deal. Without an explicit probability the deal takes
// its stage's probability.
func (s *DealService) CreateDeal(ctx context.Context, actor events.Actor, d *models.Deal) (*models.Deal, error) {
	d.TenantID = actor.TenantID
	if d.OwnerID == "" {
		d.OwnerID = actor.UserID
	}
	if d.Status == "" {
		d.Status = models.DealOpen
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	stage, err := s.resolveStage(ctx, d)
	if err != nil {
		return nil, err
	}
	if d.Probability == nil {
		p := stage.Probability
		d.Probability = &p
	}

	if err := s.repo.CreateDeal(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}
	s.audit.PublishFromRequest(nil, actor, events.ActionDealCreated, events.ResourceDeal, d.ID, d.Title, true,
		map[string]interface{}{"stage": stage.Name})
	return d, nil
}

// resolveStage loads the deal's pipeline and normalizes StageID, which may be
// given as a stage name.
func (s *DealService) resolveStage(ctx context.Context, d *models.Deal) (*models.Stage, error) {
	if d.PipelineID == "" {
		pipelines, err := s.ListPipelines(ctx, d.TenantID)
		if err != nil {
			return nil, err
		}
		d.PipelineID = defaultPipeline(pipelines).ID
	}
	pipeline, err := s.repo.GetPipeline(ctx, d.TenantID, d.PipelineID)
	if err != nil {
		return nil, err
	}
	if d.StageID == "" {
		if len(pipeline.Stages) == 0 {
			return nil, models.NewValidationError("stage_id", "pipeline has no stages")
		}
		d.StageID = pipeline.Stages[0].ID
	}
	stage, ok := pipeline.Stage(d.StageID)
	if !ok {
		return nil, models.NewValidationError("stage_id", fmt.Sprintf("unknown stage %q", d.StageID))
	}
	d.StageID = stage.ID
	return stage, nil
}

func defaultPipeline(pipelines []*models.Pipeline) *models.Pipeline {
	for _, p := range pipelines {
		if p.IsDefault {
			return p
		}
	}
	return pipelines[0]
}

// UpdateDeal overlays body onto the stored deal. Moving to another stage
// without an explicit probability adopts the new stage's probability.
func (s *DealService) UpdateDeal(ctx context.Context, actor events.Actor, id string, body []byte) (*models.Deal, error) {
	current, err := s.repo.GetDeal(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return nil, models.NewValidationError("", "request body must be a deal object")
	}
	updated := *current
	if current.Probability != nil {
		p := *current.Probability
		updated.Probability = &p
	}
	if err := json.Unmarshal(body, &updated); err != nil {
		return nil, models.NewValidationError("", "request body must be a deal object")
	}
	updated.ID = current.ID
	updated.TenantID = current.TenantID
	updated.CreatedAt = current.CreatedAt
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	stage, err := s.resolveStage(ctx, &updated)
	if err != nil {
		return nil, err
	}
	moved := updated.StageID != current.StageID
	if _, explicit := keys["probability"]; moved && !explicit {
		p := stage.Probability
		updated.Probability = &p
	}

	if err := s.repo.UpdateDeal(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update deal: %w", err)
	}
	if moved {
		s.audit.PublishFromRequest(nil, actor, events.ActionDealMoved, events.ResourceDeal, updated.ID, updated.Title, true,
			map[string]interface{}{"from": current.StageID, "to": stage.Name})
	}
	return &updated, nil
}

func (s *DealService) DeleteDeal(ctx context.Context, actor events.Actor, id string) error {
	if err := s.repo.DeleteDeal(ctx, actor.TenantID, id); err != nil {
		return err
	}
	s.audit.PublishFromRequest(nil, actor, events.ActionDealDeleted, events.ResourceDeal, id, "", true, nil)
	return nil
}

// DealSummary is the pipeline figure shown on the dashboard.
type DealSummary struct {
	Open          int     `json:"open"`
	PipelineValue float64 `json:"pipeline_value"`
	WeightedValue float64 `json:"weighted_value"`
	Won           int     `json:"won"`
}

func (s *DealService) Summary(ctx context.Context, tenantID string) (*DealSummary, error) {
	deals, err := s.ListDeals(ctx, tenantID, models.DealFilter{})
	if err != nil {
		return nil, err
	}
	summary := &DealSummary{}
	for _, d := range deals {
		switch d.Status {
		case models.DealWon:
			summary.Won++
		case models.DealLost:
		default:
			summary.Open++
			summary.PipelineValue += d.Value
			summary.WeightedValue += d.WeightedValue()
		}
	}
	return summary, nil
}
