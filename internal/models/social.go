package models

import (
	"strings"
	"time"
)

type SocialProvider string

const (
	SocialProviderFacebook  SocialProvider = "facebook"
	SocialProviderInstagram SocialProvider = "instagram"
	SocialProviderLinkedIn  SocialProvider = "linkedin"
)

// SocialAccount is a connected page. The OAuth handshake that creates it
// happens with the provider; only the result is stored.
type SocialAccount struct {
	ID          string         `bson:"_id" json:"id"`
	TenantID    string         `bson:"tenant_id" json:"tenant_id,omitempty"`
	Provider    SocialProvider `bson:"provider" json:"provider"`
	PageID      string         `bson:"page_id" json:"page_id"`
	PageName    string         `bson:"page_name" json:"page_name"`
	ConnectedAt time.Time      `bson:"connected_at" json:"connected_at"`
}

type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostScheduled PostStatus = "scheduled"
	PostPublished PostStatus = "published"
	PostFailed    PostStatus = "failed"
)

type SocialPost struct {
	ID          string     `bson:"_id" json:"id"`
	TenantID    string     `bson:"tenant_id" json:"tenant_id,omitempty"`
	AccountID   string     `bson:"account_id" json:"account_id"`
	Message     string     `bson:"message" json:"message"`
	ScheduledAt *time.Time `bson:"scheduled_at,omitempty" json:"scheduled_at,omitempty"`
	PublishedAt *time.Time `bson:"published_at,omitempty" json:"published_at,omitempty"`
	Status      PostStatus `bson:"status" json:"status"`
	CreatedBy   string     `bson:"created_by" json:"created_by"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
}

// Validate checks a post before it is queued.
func (p *SocialPost) Validate(now time.Time) error {
	if p.AccountID == "" {
		return NewValidationError("account_id", "account is required")
	}
	if strings.TrimSpace(p.Message) == "" {
		return NewValidationError("message", "message is required")
	}
	if p.ScheduledAt != nil && !p.ScheduledAt.After(now) {
		return NewValidationError("scheduled_at", "scheduled time must be in the future")
	}
	return nil
}

// Lead is a lead-ad form submission captured from a connected page.
type Lead struct {
	ID        string    `bson:"_id" json:"id"`
	TenantID  string    `bson:"tenant_id" json:"tenant_id,omitempty"`
	AccountID string    `bson:"account_id" json:"account_id"`
	FormID    string    `bson:"form_id" json:"form_id"`
	FullName  string    `bson:"full_name" json:"full_name"`
	Email     string    `bson:"email,omitempty" json:"email,omitempty"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
