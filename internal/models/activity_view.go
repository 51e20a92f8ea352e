package models

import (
	"fmt"
	"math"
	"time"
)

// IsOverdue reports whether an incomplete activity's governing instant has
// passed. The instant is the first present of due date, scheduled time and
// SLA deadline. now is passed in so callers re-evaluate on every render.
func (a *Activity) IsOverdue(now time.Time) bool {
	if a.IsCompleted {
		return false
	}
	instant := a.governingInstant()
	if instant == nil {
		return false
	}
	return instant.Before(now)
}

func (a *Activity) governingInstant() *time.Time {
	if a.DueDate != nil {
		return a.DueDate
	}
	if a.ScheduledAt != nil {
		return a.ScheduledAt
	}
	if t := a.Ticket(); t != nil && t.SLADueAt != nil {
		return t.SLADueAt
	}
	return nil
}

// ChecklistProgress returns the rounded percentage of completed checklist
// items, or nil when there is no checklist.
func (a *Activity) ChecklistProgress() *int {
	task := a.Task()
	if task == nil || len(task.Checklist) == 0 {
		return nil
	}
	done := 0
	for _, item := range task.Checklist {
		if item.Completed {
			done++
		}
	}
	pct := int(math.Round(100 * float64(done) / float64(len(task.Checklist))))
	return &pct
}

// DisplayProgress prefers the server supplied progress over the checklist figure.
func (a *Activity) DisplayProgress() *int {
	if a.Progress != nil {
		p := *a.Progress
		return &p
	}
	return a.ChecklistProgress()
}

// FormatDuration renders seconds as M:SS, or "--" when there is no duration.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "--"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// ActivityView is the display state derived from an activity at a moment in time.
type ActivityView struct {
	Activity *Activity `json:"activity"`
	Overdue  bool      `json:"overdue"`
	Progress *int      `json:"progress,omitempty"`
	Duration string    `json:"duration,omitempty"`
	Badges   []string  `json:"badges"`
}

// BuildView derives display state without touching a.
func BuildView(a *Activity, now time.Time) ActivityView {
	view := ActivityView{
		Activity: a,
		Overdue:  a.IsOverdue(now),
		Progress: a.DisplayProgress(),
		Badges:   []string{string(a.Type)},
	}

	if call := a.Call(); call != nil {
		view.Duration = FormatDuration(call.CallDuration)
	}

	if a.Priority != "" {
		view.Badges = append(view.Badges, string(a.Priority))
	}
	if task := a.Task(); task != nil && task.IsRecurring {
		view.Badges = append(view.Badges, "recurring")
	}
	if ticket := a.Ticket(); ticket != nil {
		if ticket.TicketStatus != "" {
			view.Badges = append(view.Badges, string(ticket.TicketStatus))
		}
		if ticket.IsSLABreached(now) {
			view.Badges = append(view.Badges, "sla_breached")
		}
	}
	if a.IsCompleted {
		view.Badges = append(view.Badges, "completed")
	} else if view.Overdue {
		view.Badges = append(view.Badges, "overdue")
	}

	return view
}
