package services

import (
	"context"
	"time"

	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/internal/ratelimit"
	"github.com/white/crm-backend/internal/utils"
	"github.com/white/crm-backend/pkg/smtp"
)

// The interfaces below are satisfied by the Mongo repositories in
// internal/repositories and by the in-memory fakes in the tests.

type ActivityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	GetByID(ctx context.Context, tenantID, id string) (*models.Activity, error)
	List(ctx context.Context, tenantID string, f models.ActivityFilter) ([]*models.Activity, error)
	Update(ctx context.Context, activity *models.Activity) error
	Delete(ctx context.Context, tenantID, id string) error
}

type ContactRepository interface {
	Create(ctx context.Context, contact *models.Contact) error
	GetByID(ctx context.Context, tenantID, id string) (*models.Contact, error)
	List(ctx context.Context, tenantID string, q models.ContactQuery) ([]*models.Contact, int64, error)
	Update(ctx context.Context, contact *models.Contact) error
	Delete(ctx context.Context, tenantID, id string) error
	Count(ctx context.Context, tenantID string) (int64, error)
}

type DealRepository interface {
	CreatePipeline(ctx context.Context, p *models.Pipeline) error
	GetPipeline(ctx context.Context, tenantID, id string) (*models.Pipeline, error)
	ListPipelines(ctx context.Context, tenantID string) ([]*models.Pipeline, error)
	CreateDeal(ctx context.Context, d *models.Deal) error
	GetDeal(ctx context.Context, tenantID, id string) (*models.Deal, error)
	ListDeals(ctx context.Context, tenantID string, f models.DealFilter) ([]*models.Deal, error)
	UpdateDeal(ctx context.Context, d *models.Deal) error
	DeleteDeal(ctx context.Context, tenantID, id string) error
}

type EmailRepository interface {
	Create(ctx context.Context, email *models.EmailRecord) error
	GetByID(ctx context.Context, tenantID, id string) (*models.EmailRecord, error)
	GetByMessageID(ctx context.Context, tenantID, messageID string) (*models.EmailRecord, error)
	List(ctx context.Context, tenantID string, limit int) ([]*models.EmailRecord, error)
	MarkRead(ctx context.Context, tenantID, id string, at time.Time) error
	UpdateStatus(ctx context.Context, email *models.EmailRecord) error
	Delete(ctx context.Context, tenantID, id string) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, tenantID, id string) error
}

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	GetByTokenHash(ctx context.Context, hash string) (*models.Session, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

type SocialRepository interface {
	ListAccounts(ctx context.Context, tenantID string) ([]*models.SocialAccount, error)
	GetAccount(ctx context.Context, tenantID, id string) (*models.SocialAccount, error)
	DeleteAccount(ctx context.Context, tenantID, id string) error
	CreatePost(ctx context.Context, post *models.SocialPost) error
	ListPosts(ctx context.Context, tenantID string) ([]*models.SocialPost, error)
	ListLeads(ctx context.Context, tenantID string) ([]*models.Lead, error)
}

// StatsCache holds the per-tenant activity aggregate.
type StatsCache interface {
	Get(ctx context.Context, tenantID string) (*models.ActivityStats, error)
	Set(ctx context.Context, tenantID string, stats *models.ActivityStats) error
	Invalidate(ctx context.Context, tenantID string) error
}

// TokenIssuer mints and checks the tokens handed out at login.
type TokenIssuer interface {
	GenerateAccessToken(user *models.User) (string, error)
	GenerateRefreshToken(user *models.User) (string, error)
	ValidateRefreshToken(token string) (string, error)
	AccessTokenTTL() time.Duration
	RefreshTokenTTL() time.Duration
}

var _ TokenIssuer = (*utils.JWTService)(nil)

// Mailer delivers outbound mail.
type Mailer interface {
	FromAddress() string
	Send(ctx context.Context, msg smtp.Message) error
}

var _ ratelimit.Limiter = (*ratelimit.MemoryLimiter)(nil)
