package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/white/crm-backend/internal/activityform"
	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/internal/repositories"
)

var rep = events.Actor{TenantID: "t1", UserID: "u1", UserEmail: "rep@acme.io"}

func newActivityService(t *testing.T) (*ActivityService, *fakeActivityRepo, *fakeStatsCache) {
	t.Helper()
	repo := newFakeActivityRepo()
	statsCache := newFakeStatsCache()
	return NewActivityService(repo, statsCache, nil), repo, statsCache
}

func TestCreateActivityDefaults(t *testing.T) {
	svc, _, _ := newActivityService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, rep, []byte(`{"type":"call","subject":"Intro call","custom_fields":{"phone_number":"+1 555"}}`))
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "t1", a.TenantID)
	assert.Equal(t, "u1", a.CreatedBy)
	assert.Equal(t, models.PriorityMedium, a.Priority)
	assert.Equal(t, "+1 555", a.Call().PhoneNumber)
}

func TestCreateActivityRejectsForeignCustomFields(t *testing.T) {
	svc, repo, _ := newActivityService(t)

	_, err := svc.Create(context.Background(), rep, []byte(`{"type":"note","subject":"x","custom_fields":{"meeting_link":"https://meet"}}`))
	assert.True(t, models.IsValidationError(err))
	assert.Zero(t, repo.count())
}

func TestCreateSupportTicketAssignsNumberAndSLA(t *testing.T) {
	svc, _, _ := newActivityService(t)
	now := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	a, err := svc.Create(context.Background(), rep, []byte(`{"type":"support_ticket","subject":"Login broken","custom_fields":{"severity":"high"}}`))
	require.NoError(t, err)
	ticket := a.Ticket()
	require.NotNil(t, ticket)
	assert.Equal(t, models.TicketOpen, ticket.TicketStatus)
	assert.Regexp(t, `^TKT-20250304-[0-9A-F]{6}$`, ticket.TicketNumber)
	require.NotNil(t, ticket.SLADueAt)
	assert.Equal(t, now.Add(8*time.Hour), *ticket.SLADueAt)
}

func TestEveryMutationInvalidatesStats(t *testing.T) {
	svc, _, statsCache := newActivityService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, rep, []byte(`{"type":"task","subject":"Follow up","custom_fields":{"checklist":[{"id":"c1","text":"draft"}]}}`))
	require.NoError(t, err)
	_, err = svc.Update(ctx, rep, a.ID, []byte(`{"subject":"Follow up","description":"send pricing","custom_fields":{"checklist":[{"id":"c1","text":"draft"}]}}`))
	require.NoError(t, err)
	_, err = svc.ToggleChecklist(ctx, rep, a.ID, "c1", true)
	require.NoError(t, err)
	_, err = svc.Escalate(ctx, rep, a.ID, "customer waiting")
	require.NoError(t, err)
	_, err = svc.Snooze(ctx, rep, a.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, _, err = svc.Complete(ctx, rep, a.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, rep, a.ID))

	assert.Equal(t, 7, statsCache.invalidated["t1"])
}

func TestStatsServedFromCacheUntilInvalidated(t *testing.T) {
	svc, _, statsCache := newActivityService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, rep, []byte(`{"type":"task","subject":"One"}`))
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Tasks.Total)
	assert.Equal(t, 1, statsCache.sets)

	_, err = svc.Stats(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, statsCache.sets, "second read should hit the cache")

	_, err = svc.Create(ctx, rep, []byte(`{"type":"task","subject":"Two"}`))
	require.NoError(t, err)
	stats, err = svc.Stats(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Tasks.Total)
}

func TestCompleteRecurringTaskSchedulesNext(t *testing.T) {
	svc, repo, _ := newActivityService(t)
	ctx := context.Background()

	body := `{"type":"task","subject":"Weekly report","due_date":"2025-01-06T09:00:00Z",
		"custom_fields":{"is_recurring":true,"recurrence_pattern":"weekly","recurrence_interval":2,
		"checklist":[{"id":"c1","text":"collect numbers","completed":true}]}}`
	a, err := svc.Create(ctx, rep, []byte(body))
	require.NoError(t, err)

	done, next, err := svc.Complete(ctx, rep, a.ID)
	require.NoError(t, err)
	assert.True(t, done.IsCompleted)
	require.NotNil(t, done.Progress)
	assert.Equal(t, 100, *done.Progress)

	require.NotNil(t, next)
	assert.False(t, next.IsCompleted)
	assert.NotEqual(t, a.ID, next.ID)
	assert.Equal(t, time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC), next.DueDate.UTC())
	require.Len(t, next.Task().Checklist, 1)
	assert.False(t, next.Task().Checklist[0].Completed)
	assert.NotEqual(t, "c1", next.Task().Checklist[0].ID)
	assert.Equal(t, 2, repo.count())

	_, again, err := svc.Complete(ctx, rep, a.ID)
	require.NoError(t, err)
	assert.Nil(t, again, "completing twice must not spawn another instance")
	assert.Equal(t, 2, repo.count())
}

func TestCompleteTicketResolvesIt(t *testing.T) {
	svc, _, _ := newActivityService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, rep, []byte(`{"type":"support_ticket","subject":"Refund"}`))
	require.NoError(t, err)

	done, next, err := svc.Complete(ctx, rep, a.ID)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Equal(t, models.TicketResolved, done.Ticket().TicketStatus)
}

func TestEscalate(t *testing.T) {
	svc, _, _ := newActivityService(t)
	ctx := context.Background()

	ticket, err := svc.Create(ctx, rep, []byte(`{"type":"support_ticket","subject":"Outage","priority":"high"}`))
	require.NoError(t, err)
	got, err := svc.Escalate(ctx, rep, ticket.ID, "  needs engineering  ")
	require.NoError(t, err)
	assert.Equal(t, models.TicketEscalated, got.Ticket().TicketStatus)
	assert.Equal(t, "needs engineering", got.Ticket().EscalationReason)
	assert.NotNil(t, got.Ticket().EscalatedAt)
	assert.Equal(t, models.PriorityHigh, got.Priority)

	task, err := svc.Create(ctx, rep, []byte(`{"type":"task","subject":"Contract","priority":"low"}`))
	require.NoError(t, err)
	got, err = svc.Escalate(ctx, rep, task.ID, "deadline moved")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityUrgent, got.Priority)

	_, err = svc.Escalate(ctx, rep, task.ID, " ")
	assert.True(t, models.IsValidationError(err))
}

func TestToggleChecklist(t *testing.T) {
	svc, _, _ := newActivityService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, rep, []byte(`{"type":"task","subject":"Prep","custom_fields":{"checklist":[{"id":"c1","text":"a"},{"id":"c2","text":"b"}]}}`))
	require.NoError(t, err)

	got, err := svc.ToggleChecklist(ctx, rep, a.ID, "c2", true)
	require.NoError(t, err)
	assert.False(t, got.Task().Checklist[0].Completed)
	assert.True(t, got.Task().Checklist[1].Completed)
	assert.Equal(t, 50, *got.ChecklistProgress())

	_, err = svc.ToggleChecklist(ctx, rep, a.ID, "missing", true)
	assert.ErrorIs(t, err, ErrChecklistItemNotFound)

	note, err := svc.Create(ctx, rep, []byte(`{"type":"note","subject":"n"}`))
	require.NoError(t, err)
	_, err = svc.ToggleChecklist(ctx, rep, note.ID, "c1", true)
	assert.True(t, models.IsValidationError(err))
}

func TestSnooze(t *testing.T) {
	svc, _, _ := newActivityService(t)
	ctx := context.Background()
	until := time.Now().Add(48 * time.Hour).Truncate(time.Second)

	meeting, err := svc.Create(ctx, rep, []byte(`{"type":"meeting","subject":"Demo","scheduled_at":"2025-01-01T10:00:00Z"}`))
	require.NoError(t, err)
	got, err := svc.Snooze(ctx, rep, meeting.ID, until)
	require.NoError(t, err)
	assert.True(t, got.ScheduledAt.Equal(until))
	assert.Nil(t, got.DueDate)

	_, err = svc.Snooze(ctx, rep, meeting.ID, time.Now().Add(-time.Minute))
	assert.True(t, models.IsValidationError(err))
}

func TestUpdateCannotChangeType(t *testing.T) {
	svc, _, _ := newActivityService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, rep, []byte(`{"type":"task","subject":"Prep"}`))
	require.NoError(t, err)

	_, err = svc.Update(ctx, rep, a.ID, []byte(`{"type":"call"}`))
	assert.True(t, models.IsValidationError(err))
}

func TestEditDraftClearsFields(t *testing.T) {
	svc, repo, _ := newActivityService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, rep, []byte(`{"type":"call","subject":"Renewal call","description":"old notes",`+
		`"priority":"high","due_date":"2026-01-01T10:00:00Z","custom_fields":{"phone_number":"555","call_outcome":"voicemail"}}`))
	require.NoError(t, err)

	f := activityform.New(time.UTC)
	require.NoError(t, f.Edit(a))
	require.NoError(t, f.Set("description", ""))
	require.NoError(t, f.Set("due_date", ""))
	require.NoError(t, f.Set("phone_number", ""))
	require.NoError(t, f.BeginSubmit())

	body, err := f.Body()
	require.NoError(t, err)
	data, err := json.Marshal(body)
	require.NoError(t, err)

	_, err = svc.Update(ctx, rep, a.ID, data)
	f.Finish(err)
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, rep.TenantID, a.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Description)
	assert.Nil(t, stored.DueDate)
	assert.Empty(t, stored.Call().PhoneNumber)
	assert.Equal(t, "Renewal call", stored.Subject)
	assert.Equal(t, models.PriorityHigh, stored.Priority)
	assert.Equal(t, "voicemail", stored.Call().CallOutcome)
	assert.Equal(t, models.ActivityTypeCall, stored.Type)
	assert.Equal(t, "u1", stored.CreatedBy)
}

func TestUpdateKeepsTicketNumbering(t *testing.T) {
	svc, _, _ := newActivityService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, rep, []byte(`{"type":"support_ticket","subject":"Login broken","custom_fields":{"severity":"high"}}`))
	require.NoError(t, err)
	number := a.Ticket().TicketNumber

	updated, err := svc.Update(ctx, rep, a.ID, []byte(`{"subject":"Login broken on mobile"}`))
	require.NoError(t, err)
	ticket := updated.Ticket()
	require.NotNil(t, ticket)
	assert.Equal(t, number, ticket.TicketNumber)
	assert.NotNil(t, ticket.SLADueAt)
	assert.Equal(t, models.TicketOpen, ticket.TicketStatus)
	assert.Equal(t, models.SeverityMedium, ticket.Severity)
}

func TestActivitiesAreTenantScoped(t *testing.T) {
	svc, _, _ := newActivityService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, rep, []byte(`{"type":"task","subject":"Private"}`))
	require.NoError(t, err)

	other := events.Actor{TenantID: "t2", UserID: "u9"}
	_, err = svc.Get(ctx, "t2", a.ID)
	assert.True(t, repositories.IsNotFound(err))
	assert.True(t, repositories.IsNotFound(svc.Delete(ctx, other, a.ID)))
}

func TestListRejectsUnknownType(t *testing.T) {
	svc, _, _ := newActivityService(t)
	_, err := svc.List(context.Background(), "t1", models.ActivityFilter{Type: "party"})
	assert.True(t, models.IsValidationError(err))
}
