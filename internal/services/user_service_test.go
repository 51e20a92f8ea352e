package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/internal/repositories"
)

func TestUserList(t *testing.T) {
	users := newFakeUserRepo(
		&models.User{ID: "u1", TenantID: "t1", Name: "Zed", IsActive: true, PasswordHash: "x"},
		&models.User{ID: "u2", TenantID: "t1", Name: "Amy", IsActive: true},
		&models.User{ID: "u3", TenantID: "t2", Name: "Other", IsActive: true},
	)
	svc := NewUserService(users, newFakeSessionRepo(), nil)

	profiles, err := svc.List(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Amy", profiles[0].Name)
}

func TestUserDelete(t *testing.T) {
	users := newFakeUserRepo(
		&models.User{ID: "u1", TenantID: "t1", Role: models.UserRoleAdmin, IsActive: true},
		&models.User{ID: "u2", TenantID: "t1", IsActive: true},
	)
	sessions := newFakeSessionRepo()
	svc := NewUserService(users, sessions, nil)
	admin := events.Actor{TenantID: "t1", UserID: "u1"}
	ctx := context.Background()

	err := svc.Delete(ctx, admin, "u1")
	assert.True(t, models.IsValidationError(err))

	require.NoError(t, svc.Delete(ctx, admin, "u2"))
	assert.Equal(t, []string{"u2"}, sessions.revoked)

	err = svc.Delete(ctx, admin, "u2")
	assert.True(t, repositories.IsUserNotFound(err))
}

func TestSocialCreatePost(t *testing.T) {
	repo := &fakeSocialRepo{accounts: []*models.SocialAccount{{ID: "a1", TenantID: "t1", Provider: models.SocialProviderLinkedIn, PageName: "Acme"}}}
	svc := NewSocialService(repo, nil)
	ctx := context.Background()

	draft, err := svc.CreatePost(ctx, rep, &models.SocialPost{AccountID: "a1", Message: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, models.PostDraft, draft.Status)
	assert.Equal(t, "u1", draft.CreatedBy)

	later := time.Now().Add(time.Hour)
	scheduled, err := svc.CreatePost(ctx, rep, &models.SocialPost{AccountID: "a1", Message: "Soon", ScheduledAt: &later})
	require.NoError(t, err)
	assert.Equal(t, models.PostScheduled, scheduled.Status)

	_, err = svc.CreatePost(ctx, rep, &models.SocialPost{AccountID: "missing", Message: "x"})
	assert.True(t, repositories.IsNotFound(err))

	require.NoError(t, svc.DisconnectAccount(ctx, rep, "a1"))
	accounts, err := svc.ListAccounts(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestContactServiceListClampsPaging(t *testing.T) {
	repo := &fakeContactRepo{}
	svc := NewContactService(repo, nil)
	ctx := context.Background()
	for _, name := range []string{"Ann", "Bob", "Cat"} {
		_, err := svc.Create(ctx, rep, &models.Contact{FirstName: name, Email: name + "@x.com"})
		require.NoError(t, err)
	}

	contacts, page, err := svc.List(ctx, "t1", models.ContactQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, contacts, 1)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)

	_, page, err = svc.List(ctx, "t1", models.ContactQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)
	assert.Equal(t, 1, page.Page)
}

func TestContactServiceUpdateMerges(t *testing.T) {
	repo := &fakeContactRepo{}
	svc := NewContactService(repo, nil)
	ctx := context.Background()
	c, err := svc.Create(ctx, rep, &models.Contact{FirstName: "Ann", Company: "Acme"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, rep, c.ID, []byte(`{"job_title":"CTO","id":"hijack","tenant_id":"t2"}`))
	require.NoError(t, err)
	assert.Equal(t, "Acme", updated.Company)
	assert.Equal(t, "CTO", updated.JobTitle)
	assert.Equal(t, c.ID, updated.ID)
	assert.Equal(t, "t1", updated.TenantID)

	_, err = svc.Update(ctx, rep, c.ID, []byte(`{"first_name":""}`))
	assert.True(t, models.IsValidationError(err))
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	contacts := &fakeContactRepo{}
	_, err := NewContactService(contacts, nil).Create(ctx, rep, &models.Contact{FirstName: "Ann"})
	require.NoError(t, err)

	activities, _, _ := newActivityService(t)
	_, err = activities.Create(ctx, rep, []byte(`{"type":"task","subject":"T"}`))
	require.NoError(t, err)

	deals := NewDealService(newFakeDealRepo(), nil)
	_, err = deals.CreateDeal(ctx, rep, &models.Deal{Title: "D", Value: 200, StageID: "Lead"})
	require.NoError(t, err)

	emails := newFakeEmailRepo()
	require.NoError(t, emails.Create(ctx, &models.EmailRecord{TenantID: "t1", Direction: models.EmailDirectionReceive, FromEmail: "a@b.com"}))

	d, err := NewDashboardService(contacts, deals, activities, emails).Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.Contacts)
	assert.Equal(t, 1, d.Deals.Open)
	assert.Equal(t, 1, d.Activities.Tasks.Total)
	assert.Equal(t, 1, d.UnreadEmail)
}
