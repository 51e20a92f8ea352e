// Package activityform holds the draft used to create or edit an activity
// and turns it into a request body.
package activityform

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/pkg/uuid"
)

// LocalLayout is the editable date-time format, interpreted in the form's location.
const LocalLayout = "2006-01-02T15:04"

type State int

const (
	StateClosed State = iota
	StateCreating
	StateEditing
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateCreating:
		return "creating"
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	default:
		return "closed"
	}
}

var (
	ErrNotOpen        = errors.New("activity form is not open")
	ErrAlreadyOpen    = errors.New("activity form is already open")
	ErrTypeLocked     = errors.New("activity type cannot change while editing")
	ErrSubmitInFlight = errors.New("a submission is already in flight")
	ErrUnknownField   = errors.New("unknown activity field")
)

var commonFields = map[string]bool{
	"subject":      true,
	"description":  true,
	"priority":     true,
	"assigned_to":  true,
	"contact_id":   true,
	"deal_id":      true,
	"scheduled_at": true,
	"due_date":     true,
	"progress":     true,
}

var (
	intFields   = map[string]bool{"progress": true, "recurrence_interval": true, "call_duration": true, "reminder_minutes_before": true, "customer_satisfaction": true}
	floatFields = map[string]bool{"estimated_hours": true, "actual_hours": true, "proposal_value": true}
	boolFields  = map[string]bool{"is_recurring": true, "sla_breached": true}
	timeFields  = map[string]bool{"scheduled_at": true, "due_date": true, "sla_due_at": true, "escalated_at": true}
	listFields  = map[string]bool{"products_shown": true}
)

// Form is a single mutable activity draft. It is owned by one caller and is
// not safe for concurrent use.
type Form struct {
	loc *time.Location

	state    State
	previous State

	activityID string
	typ        models.ActivityType
	values     map[string]string
	checklist  []models.ChecklistItem
	attendees  []models.Attendee

	lastErr error
}

// New returns a closed form that edits date-times in loc.
func New(loc *time.Location) *Form {
	if loc == nil {
		loc = time.Local
	}
	return &Form{loc: loc, values: map[string]string{}}
}

func (f *Form) State() State { return f.state }

// Type is the draft's activity type.
func (f *Form) Type() models.ActivityType { return f.typ }

// ActivityID is the id of the record being edited, empty while creating.
func (f *Form) ActivityID() string { return f.activityID }

// Err is the failure of the last submission, cleared by a successful one.
func (f *Form) Err() error { return f.lastErr }

// Open starts a new draft of type task.
func (f *Form) Open() error {
	if f.state != StateClosed {
		return ErrAlreadyOpen
	}
	f.reset()
	f.typ = models.ActivityTypeTask
	f.state = StateCreating
	return nil
}

// Edit starts a draft pre-populated from a.
func (f *Form) Edit(a *models.Activity) error {
	if f.state != StateClosed {
		return ErrAlreadyOpen
	}
	f.reset()
	f.activityID = a.ID
	f.typ = a.Type

	f.setIfNotEmpty("subject", a.Subject)
	f.setIfNotEmpty("description", a.Description)
	f.setIfNotEmpty("priority", string(a.Priority))
	f.setIfNotEmpty("assigned_to", a.AssignedTo)
	f.setIfNotEmpty("contact_id", a.ContactID)
	f.setIfNotEmpty("deal_id", a.DealID)
	if a.ScheduledAt != nil {
		f.values["scheduled_at"] = a.ScheduledAt.In(f.loc).Format(LocalLayout)
	}
	if a.DueDate != nil {
		f.values["due_date"] = a.DueDate.In(f.loc).Format(LocalLayout)
	}
	if a.Progress != nil {
		f.values["progress"] = strconv.Itoa(*a.Progress)
	}

	if err := f.copyDetails(a.Details); err != nil {
		return err
	}
	f.state = StateEditing
	return nil
}

func (f *Form) copyDetails(d models.Details) error {
	if d == nil {
		return nil
	}
	switch v := d.(type) {
	case *models.TaskDetails:
		f.checklist = append([]models.ChecklistItem(nil), v.Checklist...)
	case *models.MeetingDetails:
		f.attendees = append([]models.Attendee(nil), v.Attendees...)
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode activity details: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("failed to decode activity details: %w", err)
	}
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			if timeFields[k] {
				if t, err := time.Parse(time.RFC3339, val); err == nil {
					val = t.In(f.loc).Format(LocalLayout)
				}
			}
			f.values[k] = val
		case float64:
			f.values[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			f.values[k] = strconv.FormatBool(val)
		case []interface{}:
			if listFields[k] {
				parts := make([]string, 0, len(val))
				for _, p := range val {
					parts = append(parts, fmt.Sprint(p))
				}
				f.values[k] = strings.Join(parts, ", ")
			}
		}
	}
	return nil
}

func (f *Form) setIfNotEmpty(key, value string) {
	if value != "" {
		f.values[key] = value
	}
}

func (f *Form) reset() {
	f.activityID = ""
	f.typ = ""
	f.values = map[string]string{}
	f.checklist = nil
	f.attendees = nil
	f.lastErr = nil
}

func (f *Form) editable() error {
	if f.state != StateCreating && f.state != StateEditing {
		return ErrNotOpen
	}
	return nil
}

// SetType switches the draft type. Only allowed while creating.
func (f *Form) SetType(t models.ActivityType) error {
	if err := f.editable(); err != nil {
		return err
	}
	if f.state == StateEditing {
		return ErrTypeLocked
	}
	if !t.IsValid() {
		return models.NewValidationError("type", fmt.Sprintf("unknown activity type %q", t))
	}
	f.typ = t
	return nil
}

// Set stores the raw input for a common or type-specific field.
func (f *Form) Set(key, value string) error {
	if err := f.editable(); err != nil {
		return err
	}
	if key == "type" {
		return f.SetType(models.ActivityType(value))
	}
	if key == "checklist" || key == "attendees" || (!commonFields[key] && !models.IsCustomFieldKey(key)) {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	f.values[key] = value
	return nil
}

// Get returns the raw input for key.
func (f *Form) Get(key string) string { return f.values[key] }

func (f *Form) Checklist() []models.ChecklistItem {
	return append([]models.ChecklistItem(nil), f.checklist...)
}

func (f *Form) Attendees() []models.Attendee {
	return append([]models.Attendee(nil), f.attendees...)
}

// AddChecklistItem appends an unchecked item and returns its id. Blank text
// is ignored.
func (f *Form) AddChecklistItem(text string) (string, error) {
	if err := f.editable(); err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	id := uuid.MustNewUUID()
	f.checklist = append(f.checklist, models.ChecklistItem{ID: id, Text: text})
	return id, nil
}

func (f *Form) RemoveChecklistItem(id string) error {
	if err := f.editable(); err != nil {
		return err
	}
	kept := f.checklist[:0]
	for _, item := range f.checklist {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	f.checklist = kept
	return nil
}

// AddAttendee appends a pending attendee and returns its id. A blank email
// is ignored.
func (f *Form) AddAttendee(email, name string) (string, error) {
	if err := f.editable(); err != nil {
		return "", err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", nil
	}
	id := uuid.MustNewUUID()
	f.attendees = append(f.attendees, models.Attendee{
		ID:     id,
		Email:  email,
		Name:   strings.TrimSpace(name),
		Status: models.AttendeePending,
	})
	return id, nil
}

func (f *Form) RemoveAttendee(id string) error {
	if err := f.editable(); err != nil {
		return err
	}
	kept := f.attendees[:0]
	for _, att := range f.attendees {
		if att.ID != id {
			kept = append(kept, att)
		}
	}
	f.attendees = kept
	return nil
}

// Cancel discards the draft.
func (f *Form) Cancel() {
	if f.state == StateSubmitting {
		return
	}
	f.reset()
	f.state = StateClosed
}

// BeginSubmit moves the form into submitting. A second call before Finish
// returns ErrSubmitInFlight.
func (f *Form) BeginSubmit() error {
	switch f.state {
	case StateSubmitting:
		return ErrSubmitInFlight
	case StateCreating, StateEditing:
		f.previous = f.state
		f.state = StateSubmitting
		return nil
	default:
		return ErrNotOpen
	}
}

// Finish ends a submission. On success the form closes; on failure it goes
// back to the state it was submitted from with the draft intact.
func (f *Form) Finish(err error) {
	if f.state != StateSubmitting {
		return
	}
	if err != nil {
		f.lastErr = err
		f.state = f.previous
		return
	}
	f.reset()
	f.state = StateClosed
}

// Body builds the request body. Empty values are pruned, local date-times are
// converted to absolute instants and every type-specific key is moved under
// custom_fields. Keys belonging to other types are dropped. Edit bodies omit
// the type and carry the whole editable state: the server clears any field
// they leave out, so emptying a value removes it.
func (f *Form) Body() (map[string]interface{}, error) {
	if f.state == StateClosed {
		return nil, ErrNotOpen
	}
	editing := f.state == StateEditing || (f.state == StateSubmitting && f.previous == StateEditing)

	body := map[string]interface{}{}
	if !editing {
		body["type"] = string(f.typ)
	}

	allowed := map[string]bool{}
	for _, k := range models.CustomFieldKeys(f.typ) {
		allowed[k] = true
	}
	custom := map[string]interface{}{}

	for key, raw := range f.values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !commonFields[key] && !allowed[key] {
			continue
		}
		val, err := f.convert(key, raw)
		if err != nil {
			return nil, err
		}
		if commonFields[key] {
			body[key] = val
		} else {
			custom[key] = val
		}
	}

	if f.typ == models.ActivityTypeTask && (len(f.checklist) > 0 || editing) {
		items := make([]models.ChecklistItem, len(f.checklist))
		copy(items, f.checklist)
		custom["checklist"] = items
	}
	if f.typ == models.ActivityTypeMeeting && (len(f.attendees) > 0 || editing) {
		attendees := make([]models.Attendee, len(f.attendees))
		copy(attendees, f.attendees)
		custom["attendees"] = attendees
	}

	if len(custom) > 0 {
		body["custom_fields"] = custom
	}
	return body, nil
}

func (f *Form) convert(key, raw string) (interface{}, error) {
	switch {
	case timeFields[key]:
		t, err := time.ParseInLocation(LocalLayout, raw, f.loc)
		if err != nil {
			if t, err = time.Parse(time.RFC3339, raw); err != nil {
				return nil, models.NewValidationError(key, "expected a date-time like 2006-01-02T15:04")
			}
		}
		return t.UTC().Format(time.RFC3339), nil
	case intFields[key]:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, models.NewValidationError(key, "must be a whole number")
		}
		return n, nil
	case floatFields[key]:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, models.NewValidationError(key, "must be a number")
		}
		return n, nil
	case boolFields[key]:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, models.NewValidationError(key, "must be true or false")
		}
		return b, nil
	case listFields[key]:
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}
	return raw, nil
}
