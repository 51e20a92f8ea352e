package models

import (
	"math"
	"time"
)

// ComputeStats aggregates the dashboard figures. "Today" is the calendar day
// of now in now's location. FreshUntil is set to the end of that day or the
// first upcoming due or SLA instant, whichever comes first.
func ComputeStats(activities []*Activity, now time.Time) *ActivityStats {
	stats := &ActivityStats{}
	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	isToday := func(t *time.Time) bool {
		return t != nil && !t.Before(dayStart) && t.Before(dayEnd)
	}
	stats.FreshUntil = dayEnd
	// An activity turns overdue just after its instant, hence the second of slack.
	watch := func(t *time.Time) {
		if t == nil || t.Before(now) {
			return
		}
		if flip := t.Add(time.Second); flip.Before(stats.FreshUntil) {
			stats.FreshUntil = flip
		}
	}

	for _, a := range activities {
		switch a.Type {
		case ActivityTypeTask:
			stats.Tasks.Total++
			if a.IsCompleted {
				stats.Tasks.Completed++
			} else if a.IsOverdue(now) {
				stats.Tasks.Overdue++
			} else {
				watch(a.governingInstant())
			}
		case ActivityTypeMeeting:
			if isToday(a.ScheduledAt) {
				stats.Meetings.Today++
			}
		case ActivityTypeCall:
			at := a.ScheduledAt
			if at == nil {
				created := a.CreatedAt
				at = &created
			}
			if isToday(at) {
				stats.Calls.Today++
			}
		case ActivityTypeSupportTicket:
			ticket := a.Ticket()
			if a.IsCompleted || (ticket != nil && ticket.TicketStatus.IsTerminal()) {
				continue
			}
			stats.Tickets.Open++
			if ticket != nil && ticket.IsSLABreached(now) {
				stats.Tickets.SLABreach++
			} else if ticket != nil {
				watch(ticket.SLADueAt)
			}
		}
	}

	if stats.Tasks.Total > 0 {
		rate := 100 * float64(stats.Tasks.Completed) / float64(stats.Tasks.Total)
		stats.Tasks.CompletionRate = math.Round(rate*10) / 10
	}
	return stats
}
