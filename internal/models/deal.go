package models

import (
	"fmt"
	"strings"
	"time"
)

// Stage is one named step of a pipeline weighted by win probability.
type Stage struct {
	ID          string `bson:"id" json:"id"`
	Name        string `bson:"name" json:"name"`
	Probability int    `bson:"probability" json:"probability"`
	Order       int    `bson:"order" json:"order"`
}

// Pipeline is an ordered sequence of deal stages.
type Pipeline struct {
	ID        string    `bson:"_id" json:"id"`
	TenantID  string    `bson:"tenant_id" json:"tenant_id,omitempty"`
	Name      string    `bson:"name" json:"name"`
	Stages    []Stage   `bson:"stages" json:"stages"`
	IsDefault bool      `bson:"is_default" json:"is_default"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Stage looks up a stage by id or, failing that, by case-insensitive name.
func (p *Pipeline) Stage(ref string) (*Stage, bool) {
	for i := range p.Stages {
		if p.Stages[i].ID == ref {
			return &p.Stages[i], true
		}
	}
	for i := range p.Stages {
		if strings.EqualFold(p.Stages[i].Name, ref) {
			return &p.Stages[i], true
		}
	}
	return nil, false
}

// Validate checks stage probabilities and names.
func (p *Pipeline) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", "pipeline name is required")
	}
	if len(p.Stages) == 0 {
		return NewValidationError("stages", "a pipeline needs at least one stage")
	}
	for _, s := range p.Stages {
		if strings.TrimSpace(s.Name) == "" {
			return NewValidationError("stages", "stage name is required")
		}
		if s.Probability < 0 || s.Probability > 100 {
			return NewValidationError("stages", fmt.Sprintf("stage %s probability must be between 0 and 100", s.Name))
		}
	}
	return nil
}

// DefaultStages seeds a new tenant's sales pipeline.
func DefaultStages() []Stage {
	return []Stage{
		{Name: "Lead", Probability: 10, Order: 1},
		{Name: "Qualified", Probability: 30, Order: 2},
		{Name: "Proposal", Probability: 60, Order: 3},
		{Name: "Negotiation", Probability: 80, Order: 4},
		{Name: "Closed Won", Probability: 100, Order: 5},
		{Name: "Closed Lost", Probability: 0, Order: 6},
	}
}

type DealStatus string

const (
	DealOpen DealStatus = "open"
	DealWon  DealStatus = "won"
	DealLost DealStatus = "lost"
)

type Deal struct {
	ID                string     `bson:"_id" json:"id"`
	TenantID          string     `bson:"tenant_id" json:"tenant_id,omitempty"`
	Title             string     `bson:"title" json:"title"`
	Value             float64    `bson:"value" json:"value"`
	Currency          string     `bson:"currency,omitempty" json:"currency,omitempty"`
	PipelineID        string     `bson:"pipeline_id" json:"pipeline_id"`
	StageID           string     `bson:"stage_id" json:"stage_id"`
	Probability       *int       `bson:"probability,omitempty" json:"probability,omitempty"`
	ContactID         string     `bson:"contact_id,omitempty" json:"contact_id,omitempty"`
	OwnerID           string     `bson:"owner_id,omitempty" json:"owner_id,omitempty"`
	ExpectedCloseDate *time.Time `bson:"expected_close_date,omitempty" json:"expected_close_date,omitempty"`
	Status            DealStatus `bson:"status" json:"status"`
	CreatedAt         time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at" json:"updated_at"`
}

// WeightedValue is value scaled by win probability.
func (d *Deal) WeightedValue() float64 {
	if d.Probability == nil {
		return 0
	}
	return d.Value * float64(*d.Probability) / 100
}

// Validate checks the required deal fields.
func (d *Deal) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return NewValidationError("title", "deal title is required")
	}
	if d.Value < 0 {
		return NewValidationError("value", "deal value cannot be negative")
	}
	if d.Probability != nil && (*d.Probability < 0 || *d.Probability > 100) {
		return NewValidationError("probability", "probability must be between 0 and 100")
	}
	switch d.Status {
	case "", DealOpen, DealWon, DealLost:
	default:
		return NewValidationError("status", fmt.Sprintf("invalid deal status %q", d.Status))
	}
	return nil
}

// DealFilter narrows deal listings.
type DealFilter struct {
	PipelineID string
	StageID    string
	Status     DealStatus
}
