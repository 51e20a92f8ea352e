package services

import (
	"context"
	"fmt"
	"time"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/models"
)

// SocialService manages connected pages, queued posts and captured leads.
// Publishing to the providers happens outside this service.
type SocialService struct {
	repo  SocialRepository
	audit *events.AuditPublisher
	now   func() time.Time
}

func NewSocialService(repo SocialRepository, audit *events.AuditPublisher) *SocialService {
	return &SocialService{repo: repo, audit: audit, now: time.Now}
}

func (s *SocialService) ListAccounts(ctx context.Context, tenantID string) ([]*models.SocialAccount, error) {
	accounts, err := s.repo.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list social accounts: %w", err)
	}
	return accounts, nil
}

// DisconnectAccount removes a page and its scheduled posts.
func (s *SocialService) DisconnectAccount(ctx context.Context, actor events.Actor, id string) error {
	account, err := s.repo.GetAccount(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAccount(ctx, actor.TenantID, id); err != nil {
		return err
	}
	s.audit.PublishFromRequest(nil, actor, events.ActionPageDisconnected, events.ResourceSocial, id,
		account.PageName, true, map[string]interface{}{"provider": account.Provider})
	return nil
}

func (s *SocialService) ListPosts(ctx context.Context, tenantID string) ([]*models.SocialPost, error) {
	posts, err := s.repo.ListPosts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// CreatePost queues a post as a draft, or as scheduled when it has a time.
func (s *SocialService) CreatePost(ctx context.Context, actor events.Actor, post *models.SocialPost) (*models.SocialPost, error) {
	now := s.now().UTC()
	if err := post.Validate(now); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetAccount(ctx, actor.TenantID, post.AccountID); err != nil {
		return nil, err
	}

	post.TenantID = actor.TenantID
	post.CreatedBy = actor.UserID
	post.PublishedAt = nil
	post.Status = models.PostDraft
	if post.ScheduledAt != nil {
		post.Status = models.PostScheduled
	}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return post, nil
}

func (s *SocialService) ListLeads(ctx context.Context, tenantID string) ([]*models.Lead, error) {
	leads, err := s.repo.ListLeads(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}
