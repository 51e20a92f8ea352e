package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ContactService struct {
	repo  ContactRepository
	audit *events.AuditPublisher
}

func NewContactService(repo ContactRepository, audit *events.AuditPublisher) *ContactService {
	return &ContactService{repo: repo, audit: audit}
}

// List returns one page of contacts and the pagination summary.
func (s *ContactService) List(ctx context.Context, tenantID string, q models.ContactQuery) ([]*models.Contact, models.Pagination, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	q.Search = strings.TrimSpace(q.Search)

	contacts, total, err := s.repo.List(ctx, tenantID, q)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, models.NewPagination(q.Page, q.Limit, total), nil
}

func (s *ContactService) Get(ctx context.Context, tenantID, id string) (*models.Contact, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *ContactService) Create(ctx context.Context, actor events.Actor, contact *models.Contact) (*models.Contact, error) {
	contact.TenantID = actor.TenantID
	contact.Email = strings.TrimSpace(contact.Email)
	if contact.OwnerID == "" {
		contact.OwnerID = actor.UserID
	}
	if err := contact.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, contact); err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return contact, nil
}

// Update overlays body onto the stored contact. Absent keys keep their value.
func (s *ContactService) Update(ctx context.Context, actor events.Actor, id string, body []byte) (*models.Contact, error) {
	current, err := s.repo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	updated := *current
	if err := json.Unmarshal(body, &updated); err != nil {
		return nil, models.NewValidationError("", "request body must be a contact object")
	}
	updated.ID = current.ID
	updated.TenantID = current.TenantID
	updated.CreatedAt = current.CreatedAt
	updated.Email = strings.TrimSpace(updated.Email)

	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	return &updated, nil
}

func (s *ContactService) Delete(ctx context.Context, actor events.Actor, id string) error {
	if err := s.repo.Delete(ctx, actor.TenantID, id); err != nil {
		return err
	}
	s.audit.PublishFromRequest(nil, actor, events.ActionContactDeleted, events.ResourceContact, id, "", true, nil)
	return nil
}
