package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ActivityType selects which Details variant an Activity carries.
type ActivityType string

const (
	ActivityTypeTask          ActivityType = "task"
	ActivityTypeMeeting       ActivityType = "meeting"
	ActivityTypeCall          ActivityType = "call"
	ActivityTypeEmail         ActivityType = "email"
	ActivityTypeDemo          ActivityType = "demo"
	ActivityTypeProposal      ActivityType = "proposal"
	ActivityTypeSupportTicket ActivityType = "support_ticket"
	ActivityTypeNote          ActivityType = "note"
)

// ActivityTypes lists every supported type in display order.
var ActivityTypes = []ActivityType{
	ActivityTypeTask,
	ActivityTypeMeeting,
	ActivityTypeCall,
	ActivityTypeEmail,
	ActivityTypeDemo,
	ActivityTypeProposal,
	ActivityTypeSupportTicket,
	ActivityTypeNote,
}

// IsValid checks if the activity type is known
func (t ActivityType) IsValid() bool {
	for _, valid := range ActivityTypes {
		if t == valid {
			return true
		}
	}
	return false
}

// Label returns the human readable name of the type.
func (t ActivityType) Label() string {
	switch t {
	case ActivityTypeSupportTicket:
		return "Support Ticket"
	case "":
		return ""
	default:
		s := string(t)
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid checks if the priority is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Activity is a schedulable CRM record. Fields shared by every type live on
// the struct; type-specific fields live in Details and travel as custom_fields.
type Activity struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenant_id,omitempty"`
	Type        ActivityType `json:"type"`
	Subject     string       `json:"subject"`
	Description string       `json:"description,omitempty"`
	Priority    Priority     `json:"priority,omitempty"`
	AssignedTo  string       `json:"assigned_to,omitempty"`
	ContactID   string       `json:"contact_id,omitempty"`
	DealID      string       `json:"deal_id,omitempty"`
	IsCompleted bool         `json:"is_completed"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	ScheduledAt *time.Time   `json:"scheduled_at,omitempty"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Progress    *int         `json:"progress,omitempty"`
	CreatedBy   string       `json:"created_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	Details Details `json:"-"`
}

type activityAlias Activity

type activityWire struct {
	*activityAlias
	CustomFields json.RawMessage `json:"custom_fields,omitempty"`
}

// MarshalJSON writes the type-specific variant under custom_fields.
func (a Activity) MarshalJSON() ([]byte, error) {
	wire := activityWire{activityAlias: (*activityAlias)(&a)}
	if a.Details != nil {
		raw, err := json.Marshal(a.Details)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(raw, []byte("{}")) {
			wire.CustomFields = raw
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON reads custom_fields into the variant selected by type.
// Unknown custom fields are ignored; use DecodeActivity to reject them.
func (a *Activity) UnmarshalJSON(data []byte) error {
	return a.decode(data, false)
}

// DecodeActivity parses a client supplied activity and rejects custom fields
// that do not belong to its type.
func DecodeActivity(data []byte) (*Activity, error) {
	var a Activity
	if err := a.decode(data, true); err != nil {
		return nil, err
	}
	return &a, nil
}

func (a *Activity) decode(data []byte, strict bool) error {
	wire := activityWire{activityAlias: (*activityAlias)(a)}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if a.Type == "" {
		a.Details = nil
		return nil
	}
	details, err := DecodeDetails(a.Type, wire.CustomFields, strict)
	if err != nil {
		return err
	}
	a.Details = details
	return nil
}

// Task returns the task variant, or nil for other types.
func (a *Activity) Task() *TaskDetails {
	d, _ := a.Details.(*TaskDetails)
	return d
}

// Meeting returns the meeting variant, or nil for other types.
func (a *Activity) Meeting() *MeetingDetails {
	d, _ := a.Details.(*MeetingDetails)
	return d
}

// Call returns the call variant, or nil for other types.
func (a *Activity) Call() *CallDetails {
	d, _ := a.Details.(*CallDetails)
	return d
}

// Ticket returns the support ticket variant, or nil for other types.
func (a *Activity) Ticket() *SupportTicketDetails {
	d, _ := a.Details.(*SupportTicketDetails)
	return d
}

// Validate checks the common fields and the variant.
func (a *Activity) Validate() error {
	if !a.Type.IsValid() {
		return NewValidationError("type", fmt.Sprintf("unknown activity type %q", a.Type))
	}
	if strings.TrimSpace(a.Subject) == "" {
		return NewValidationError("subject", "subject is required")
	}
	if a.Priority != "" && !a.Priority.IsValid() {
		return NewValidationError("priority", fmt.Sprintf("invalid priority %q", a.Priority))
	}
	if a.Progress != nil && (*a.Progress < 0 || *a.Progress > 100) {
		return NewValidationError("progress", "progress must be between 0 and 100")
	}
	if a.Details == nil {
		a.Details = NewDetails(a.Type)
	}
	if a.Details.ActivityType() != a.Type {
		return NewValidationError("custom_fields", "custom fields do not match activity type")
	}
	return a.Details.Validate()
}

// Clone returns a deep copy of the activity.
func (a *Activity) Clone() *Activity {
	data, err := json.Marshal(a)
	if err != nil {
		panic(fmt.Sprintf("activity clone: %v", err))
	}
	var out Activity
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("activity clone: %v", err))
	}
	return &out
}

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	Type        ActivityType
	IsCompleted *bool
	AssignedTo  string
	ContactID   string
	Limit       int
}

// ActivityStats is the dashboard aggregate served by /activities/stats.
type ActivityStats struct {
	Tasks struct {
		Completed      int     `json:"completed"`
		Total          int     `json:"total"`
		CompletionRate float64 `json:"completion_rate"`
		Overdue        int     `json:"overdue"`
	} `json:"tasks"`
	Meetings struct {
		Today int `json:"today"`
	} `json:"meetings"`
	Calls struct {
		Today int `json:"today"`
	} `json:"calls"`
	Tickets struct {
		Open      int `json:"open"`
		SLABreach int `json:"sla_breach"`
	} `json:"tickets"`

	// FreshUntil is the next instant at which a time-dependent figure
	// (overdue, SLA breach, today) can change without any mutation.
	FreshUntil time.Time `json:"-"`
}
