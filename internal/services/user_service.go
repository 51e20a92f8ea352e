package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/models"
)

type UserService struct {
	users    UserRepository
	sessions SessionRepository
	audit    *events.AuditPublisher
}

func NewUserService(users UserRepository, sessions SessionRepository, audit *events.AuditPublisher) *UserService {
	return &UserService{users: users, sessions: sessions, audit: audit}
}

// List returns the tenant's active users as profiles.
func (s *UserService) List(ctx context.Context, tenantID string) ([]models.UserProfile, error) {
	users, err := s.users.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	profiles := make([]models.UserProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.ToProfile())
	}
	return profiles, nil
}

// Delete removes a team member and revokes their sessions. Callers cannot
// remove themselves.
func (s *UserService) Delete(ctx context.Context, actor events.Actor, id string) error {
	if id == actor.UserID {
		return models.NewValidationError("id", "you cannot remove your own account")
	}
	if err := s.users.Delete(ctx, actor.TenantID, id); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllForUser(ctx, id); err != nil {
		zap.L().Warn("Failed to revoke sessions of removed user", zap.String("user_id", id), zap.Error(err))
	}
	s.audit.PublishFromRequest(nil, actor, events.ActionTeamMemberRemoved, events.ResourceUser, id, "", true, nil)
	return nil
}
