package activityform

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/white/crm-backend/internal/models"
)

func TestCallBodyMovesPhoneIntoCustomFields(t *testing.T) {
	f := New(time.UTC)
	require.NoError(t, f.Open())
	require.NoError(t, f.SetType(models.ActivityTypeCall))
	require.NoError(t, f.Set("subject", "Follow up"))
	require.NoError(t, f.Set("phone_number", "555-1234"))
	require.NoError(t, f.Set("description", ""))

	body, err := f.Body()
	require.NoError(t, err)

	assert.Equal(t, "call", body["type"])
	assert.NotContains(t, body, "phone_number")
	assert.NotContains(t, body, "description")
	assert.Equal(t, map[string]interface{}{"phone_number": "555-1234"}, body["custom_fields"])
}

func TestOpenDefaultsToTask(t *testing.T) {
	f := New(time.UTC)
	assert.Equal(t, StateClosed, f.State())
	require.NoError(t, f.Open())
	assert.Equal(t, StateCreating, f.State())
	assert.Equal(t, models.ActivityTypeTask, f.Type())
	assert.ErrorIs(t, f.Open(), ErrAlreadyOpen)
}

func TestBodyDropsOtherTypesFields(t *testing.T) {
	f := New(time.UTC)
	require.NoError(t, f.Open())
	require.NoError(t, f.SetType(models.ActivityTypeMeeting))
	require.NoError(t, f.Set("meeting_link", "https://meet/x"))
	require.NoError(t, f.SetType(models.ActivityTypeEmail))
	require.NoError(t, f.Set("subject", "Intro"))
	require.NoError(t, f.Set("email_address", "a@x.com"))

	body, err := f.Body()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"email_address": "a@x.com"}, body["custom_fields"])
}

func TestBodyOmitsEmptyCustomFields(t *testing.T) {
	f := New(time.UTC)
	require.NoError(t, f.Open())
	require.NoError(t, f.SetType(models.ActivityTypeNote))
	require.NoError(t, f.Set("subject", "Remember"))

	body, err := f.Body()
	require.NoError(t, err)
	assert.NotContains(t, body, "custom_fields")
}

func TestBodyConvertsValues(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	f := New(loc)
	require.NoError(t, f.Open())
	require.NoError(t, f.Set("subject", "Plan"))
	require.NoError(t, f.Set("due_date", "2025-06-01T10:30"))
	require.NoError(t, f.Set("estimated_hours", "1.5"))
	require.NoError(t, f.Set("is_recurring", "true"))
	require.NoError(t, f.Set("recurrence_pattern", "weekly"))
	require.NoError(t, f.Set("recurrence_interval", "2"))

	body, err := f.Body()
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01T08:30:00Z", body["due_date"])

	custom := body["custom_fields"].(map[string]interface{})
	assert.Equal(t, 1.5, custom["estimated_hours"])
	assert.Equal(t, true, custom["is_recurring"])
	assert.Equal(t, 2, custom["recurrence_interval"])

	require.NoError(t, f.Set("recurrence_interval", "two"))
	_, err = f.Body()
	assert.True(t, models.IsValidationError(err))
}

func TestSetRejectsUnknownField(t *testing.T) {
	f := New(time.UTC)
	assert.ErrorIs(t, f.Set("subject", "x"), ErrNotOpen)
	require.NoError(t, f.Open())
	assert.ErrorIs(t, f.Set("favourite_color", "blue"), ErrUnknownField)
	assert.ErrorIs(t, f.Set("checklist", "x"), ErrUnknownField)
}

func TestChecklistEditing(t *testing.T) {
	f := New(time.UTC)
	require.NoError(t, f.Open())

	first, err := f.AddChecklistItem("draft agenda")
	require.NoError(t, err)
	second, err := f.AddChecklistItem("book room")
	require.NoError(t, err)
	blank, err := f.AddChecklistItem("   ")
	require.NoError(t, err)

	assert.Empty(t, blank)
	assert.NotEqual(t, first, second)
	require.Len(t, f.Checklist(), 2)

	require.NoError(t, f.RemoveChecklistItem(first))
	items := f.Checklist()
	require.Len(t, items, 1)
	assert.Equal(t, "book room", items[0].Text)
	assert.False(t, items[0].Completed)
}

func TestRapidAddsGetDistinctIDs(t *testing.T) {
	f := New(time.UTC)
	require.NoError(t, f.Open())
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := f.AddChecklistItem("item")
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestAttendeeEditing(t *testing.T) {
	f := New(time.UTC)
	require.NoError(t, f.Open())
	require.NoError(t, f.SetType(models.ActivityTypeMeeting))
	require.NoError(t, f.Set("subject", "Kickoff"))

	id, err := f.AddAttendee(" a@x.com ", "Ann")
	require.NoError(t, err)
	_, err = f.AddAttendee("b@x.com", "")
	require.NoError(t, err)
	require.NoError(t, f.RemoveAttendee(id))

	body, err := f.Body()
	require.NoError(t, err)
	attendees := body["custom_fields"].(map[string]interface{})["attendees"].([]models.Attendee)
	require.Len(t, attendees, 1)
	assert.Equal(t, "b@x.com", attendees[0].Email)
	assert.Equal(t, models.AttendeePending, attendees[0].Status)
}

func TestEditLocksTypeAndFormatsDates(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	due := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	a := &models.Activity{
		ID:       "a1",
		Type:     models.ActivityTypeTask,
		Subject:  "Prep",
		Priority: models.PriorityHigh,
		DueDate:  &due,
		Details: &models.TaskDetails{
			EstimatedHours: 2,
			Checklist:      []models.ChecklistItem{{ID: "c1", Text: "slides", Completed: true}},
		},
	}

	f := New(loc)
	require.NoError(t, f.Edit(a))
	assert.Equal(t, StateEditing, f.State())
	assert.Equal(t, "a1", f.ActivityID())
	assert.Equal(t, "2025-06-01T10:00", f.Get("due_date"))
	assert.Equal(t, "2", f.Get("estimated_hours"))
	assert.ErrorIs(t, f.SetType(models.ActivityTypeCall), ErrTypeLocked)
	assert.ErrorIs(t, f.Set("type", "call"), ErrTypeLocked)

	body, err := f.Body()
	require.NoError(t, err)
	assert.NotContains(t, body, "type")
	assert.Equal(t, "2025-06-01T15:00:00Z", body["due_date"])
	custom := body["custom_fields"].(map[string]interface{})
	assert.Equal(t, []models.ChecklistItem{{ID: "c1", Text: "slides", Completed: true}}, custom["checklist"])
}

func TestEditBodyKeepsEmptyChecklist(t *testing.T) {
	a := &models.Activity{
		ID:      "a1",
		Type:    models.ActivityTypeTask,
		Subject: "Prep",
		Details: &models.TaskDetails{Checklist: []models.ChecklistItem{{ID: "c1", Text: "slides"}}},
	}
	f := New(time.UTC)
	require.NoError(t, f.Edit(a))
	require.NoError(t, f.RemoveChecklistItem("c1"))

	body, err := f.Body()
	require.NoError(t, err)
	custom := body["custom_fields"].(map[string]interface{})
	assert.Equal(t, []models.ChecklistItem{}, custom["checklist"])
}

func TestSubmitLifecycle(t *testing.T) {
	f := New(time.UTC)
	require.NoError(t, f.Open())
	require.NoError(t, f.Set("subject", "Plan"))

	require.NoError(t, f.BeginSubmit())
	assert.Equal(t, StateSubmitting, f.State())
	assert.ErrorIs(t, f.BeginSubmit(), ErrSubmitInFlight)
	assert.ErrorIs(t, f.Set("subject", "changed"), ErrNotOpen)

	body, err := f.Body()
	require.NoError(t, err)
	assert.Equal(t, "task", body["type"])

	failure := errors.New("subject already taken")
	f.Finish(failure)
	assert.Equal(t, StateCreating, f.State())
	assert.Equal(t, failure, f.Err())
	assert.Equal(t, "Plan", f.Get("subject"))

	require.NoError(t, f.BeginSubmit())
	f.Finish(nil)
	assert.Equal(t, StateClosed, f.State())
	assert.Nil(t, f.Err())
	assert.Empty(t, f.Get("subject"))
}

func TestEditFailureReturnsToEditing(t *testing.T) {
	f := New(time.UTC)
	require.NoError(t, f.Edit(&models.Activity{ID: "a1", Type: models.ActivityTypeNote, Subject: "n"}))
	require.NoError(t, f.BeginSubmit())

	body, err := f.Body()
	require.NoError(t, err)
	assert.NotContains(t, body, "type")

	f.Finish(errors.New("boom"))
	assert.Equal(t, StateEditing, f.State())
}

func TestCancel(t *testing.T) {
	f := New(time.UTC)
	require.NoError(t, f.Open())
	require.NoError(t, f.Set("subject", "x"))
	f.Cancel()
	assert.Equal(t, StateClosed, f.State())
	assert.ErrorIs(t, f.BeginSubmit(), ErrNotOpen)
	_, err := f.Body()
	assert.ErrorIs(t, err, ErrNotOpen)
}
