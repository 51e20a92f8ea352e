package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/white/crm-backend/internal/cache"
	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/pkg/uuid"
)

// ActivityService owns the activity lifecycle. Every mutation drops the
// tenant's cached stats and emits an audit event.
type ActivityService struct {
	repo  ActivityRepository
	cache StatsCache
	audit *events.AuditPublisher
	now   func() time.Time
}

func NewActivityService(repo ActivityRepository, statsCache StatsCache, audit *events.AuditPublisher) *ActivityService {
	return &ActivityService{repo: repo, cache: statsCache, audit: audit, now: time.Now}
}

func (s *ActivityService) List(ctx context.Context, tenantID string, f models.ActivityFilter) ([]*models.Activity, error) {
	if f.Type != "" && !f.Type.IsValid() {
		return nil, models.NewValidationError("type", fmt.Sprintf("unknown activity type %q", f.Type))
	}
	activities, err := s.repo.List(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

func (s *ActivityService) Get(ctx context.Context, tenantID, id string) (*models.Activity, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// Stats serves the dashboard aggregate, computing it on a cache miss.
func (s *ActivityService) Stats(ctx context.Context, tenantID string) (*models.ActivityStats, error) {
	if s.cache != nil {
		stats, err := s.cache.Get(ctx, tenantID)
		if err == nil {
			return stats, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			zap.L().Warn("Stats cache read failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}

	all, err := s.repo.List(ctx, tenantID, models.ActivityFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}
	stats := models.ComputeStats(all, s.now().UTC())

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, stats); err != nil {
			zap.L().Warn("Stats cache write failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	return stats, nil
}

// Create stores a new activity decoded from a client body.
func (s *ActivityService) Create(ctx context.Context, actor events.Actor, body []byte) (*models.Activity, error) {
	activity, err := models.DecodeActivity(body)
	if err != nil {
		if models.IsValidationError(err) {
			return nil, err
		}
		return nil, models.NewValidationError("", "request body must be a valid activity")
	}
	return s.create(ctx, actor, activity)
}

func (s *ActivityService) create(ctx context.Context, actor events.Actor, activity *models.Activity) (*models.Activity, error) {
	now := s.now().UTC()
	activity.ID = ""
	activity.TenantID = actor.TenantID
	activity.CreatedBy = actor.UserID
	if activity.Priority == "" {
		activity.Priority = models.PriorityMedium
	}
	if err := activity.Validate(); err != nil {
		return nil, err
	}
	if activity.IsCompleted && activity.CompletedAt == nil {
		activity.CompletedAt = &now
	}
	if ticket := activity.Ticket(); ticket != nil {
		prepareTicket(ticket, now)
	}

	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	s.invalidate(ctx, actor.TenantID)
	s.audit.PublishActivityEvent(actor, events.ActionActivityCreated, activity.ID, activity.Subject,
		map[string]interface{}{"type": activity.Type})
	return activity, nil
}

// prepareTicket fills server-assigned ticket fields.
func prepareTicket(t *models.SupportTicketDetails, now time.Time) {
	if t.TicketStatus == "" {
		t.TicketStatus = models.TicketOpen
	}
	if t.Severity == "" {
		t.Severity = models.SeverityMedium
	}
	if t.TicketNumber == "" {
		id := strings.ReplaceAll(uuid.MustNewUUID(), "-", "")
		t.TicketNumber = fmt.Sprintf("TKT-%s-%s", now.Format("20060102"), strings.ToUpper(id[len(id)-6:]))
	}
	if t.SLADueAt == nil {
		due := now.Add(models.SLAWindow(t.Severity))
		t.SLADueAt = &due
	}
}

// Update replaces the editable fields of an activity with body. Fields the
// body leaves out are cleared; the type and server-owned fields are kept.
func (s *ActivityService) Update(ctx context.Context, actor events.Actor, id string, body []byte) (*models.Activity, error) {
	current, err := s.repo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	updated, err := models.ReplaceActivity(current, body)
	if err != nil {
		return nil, err
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if ticket := updated.Ticket(); ticket != nil {
		prepareTicket(ticket, s.now().UTC())
	}
	return s.save(ctx, actor, updated, events.ActionActivityUpdated, nil)
}

func (s *ActivityService) save(ctx context.Context, actor events.Actor, a *models.Activity, action events.AuditAction, metadata map[string]interface{}) (*models.Activity, error) {
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to update activity: %w", err)
	}
	s.invalidate(ctx, actor.TenantID)
	s.audit.PublishActivityEvent(actor, action, a.ID, a.Subject, metadata)
	return a, nil
}

// Complete marks an activity done. A recurring task spawns its next
// instance, which is returned as next.
func (s *ActivityService) Complete(ctx context.Context, actor events.Actor, id string) (done, next *models.Activity, err error) {
	a, err := s.repo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, nil, err
	}
	if a.IsCompleted {
		return a, nil, nil
	}

	now := s.now().UTC()
	a.IsCompleted = true
	a.CompletedAt = &now
	if a.Type == models.ActivityTypeTask {
		full := 100
		a.Progress = &full
	}
	if ticket := a.Ticket(); ticket != nil && !ticket.TicketStatus.IsTerminal() {
		ticket.TicketStatus = models.TicketResolved
	}

	if _, err := s.save(ctx, actor, a, events.ActionActivityCompleted, nil); err != nil {
		return nil, nil, err
	}

	if following := models.NextRecurrence(a); following != nil {
		following.CreatedBy = a.CreatedBy
		if err := s.repo.Create(ctx, following); err != nil {
			return a, nil, fmt.Errorf("failed to schedule next occurrence: %w", err)
		}
		s.invalidate(ctx, actor.TenantID)
		s.audit.PublishActivityEvent(actor, events.ActionActivityCreated, following.ID, following.Subject,
			map[string]interface{}{"recurrence_of": a.ID})
		next = following
	}
	return a, next, nil
}

// ToggleChecklist sets one checklist item's completion state.
func (s *ActivityService) ToggleChecklist(ctx context.Context, actor events.Actor, id, itemID string, completed bool) (*models.Activity, error) {
	a, err := s.repo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	task := a.Task()
	if task == nil {
		return nil, models.NewValidationError("itemId", "only tasks have a checklist")
	}

	found := false
	for i := range task.Checklist {
		if task.Checklist[i].ID == itemID {
			task.Checklist[i].Completed = completed
			found = true
			break
		}
	}
	if !found {
		return nil, ErrChecklistItemNotFound
	}
	return s.save(ctx, actor, a, events.ActionActivityUpdated,
		map[string]interface{}{"checklist_item": itemID, "completed": completed})
}

// Escalate moves a ticket to escalated; any other type is raised to urgent.
func (s *ActivityService) Escalate(ctx context.Context, actor events.Actor, id, reason string) (*models.Activity, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("reason", "escalation reason is required")
	}
	a, err := s.repo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if a.IsCompleted {
		return nil, models.NewValidationError("", "completed activities cannot be escalated")
	}

	if ticket := a.Ticket(); ticket != nil {
		now := s.now().UTC()
		ticket.TicketStatus = models.TicketEscalated
		ticket.EscalationReason = reason
		ticket.EscalatedAt = &now
	} else {
		a.Priority = models.PriorityUrgent
	}
	return s.save(ctx, actor, a, events.ActionActivityEscalated, map[string]interface{}{"reason": reason})
}

// Snooze pushes the activity's governing date to until.
func (s *ActivityService) Snooze(ctx context.Context, actor events.Actor, id string, until time.Time) (*models.Activity, error) {
	if !until.After(s.now()) {
		return nil, models.NewValidationError("until", "snooze time must be in the future")
	}
	a, err := s.repo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if a.IsCompleted {
		return nil, models.NewValidationError("", "completed activities cannot be snoozed")
	}

	until = until.UTC()
	switch {
	case a.DueDate != nil:
		a.DueDate = &until
	case a.ScheduledAt != nil:
		a.ScheduledAt = &until
	default:
		a.DueDate = &until
	}
	return s.save(ctx, actor, a, events.ActionActivitySnoozed, map[string]interface{}{"until": until})
}

func (s *ActivityService) Delete(ctx context.Context, actor events.Actor, id string) error {
	if err := s.repo.Delete(ctx, actor.TenantID, id); err != nil {
		return err
	}
	s.invalidate(ctx, actor.TenantID)
	s.audit.PublishActivityEvent(actor, events.ActionActivityDeleted, id, "", nil)
	return nil
}

func (s *ActivityService) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		zap.L().Warn("Failed to invalidate stats cache", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}
