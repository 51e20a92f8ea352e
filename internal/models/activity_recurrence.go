package models

import (
	"time"

	"github.com/white/crm-backend/pkg/uuid"
)

// NextOccurrence moves t forward by interval units of pattern.
func NextOccurrence(t time.Time, pattern RecurrencePattern, interval int) time.Time {
	if interval < 1 {
		interval = 1
	}
	switch pattern {
	case RecurrenceDaily:
		return t.AddDate(0, 0, interval)
	case RecurrenceWeekly:
		return t.AddDate(0, 0, 7*interval)
	case RecurrenceMonthly:
		return t.AddDate(0, interval, 0)
	case RecurrenceYearly:
		return t.AddDate(interval, 0, 0)
	}
	return t
}

// NextRecurrence builds the follow-up instance of a recurring task, or nil if
// a does not recur. The copy is open, has fresh ids and an unchecked checklist.
func NextRecurrence(a *Activity) *Activity {
	task := a.Task()
	if task == nil || !task.IsRecurring {
		return nil
	}

	next := a.Clone()
	next.ID = ""
	next.IsCompleted = false
	next.CompletedAt = nil
	next.Progress = nil
	next.CreatedAt = time.Time{}
	next.UpdatedAt = time.Time{}

	if next.DueDate != nil {
		due := NextOccurrence(*next.DueDate, task.RecurrencePattern, task.RecurrenceInterval)
		next.DueDate = &due
	}
	if next.ScheduledAt != nil {
		at := NextOccurrence(*next.ScheduledAt, task.RecurrencePattern, task.RecurrenceInterval)
		next.ScheduledAt = &at
	}

	nextTask := next.Task()
	nextTask.ActualHours = 0
	for i := range nextTask.Checklist {
		nextTask.Checklist[i].ID = uuid.MustNewUUID()
		nextTask.Checklist[i].Completed = false
	}

	return next
}
