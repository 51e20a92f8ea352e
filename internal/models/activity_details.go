package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Details is the type-specific part of an Activity. Exactly one
// implementation exists per ActivityType.
type Details interface {
	ActivityType() ActivityType
	Validate() error
}

// NewDetails returns an empty variant for t, or nil for an unknown type.
func NewDetails(t ActivityType) Details {
	switch t {
	case ActivityTypeTask:
		return &TaskDetails{}
	case ActivityTypeMeeting:
		return &MeetingDetails{}
	case ActivityTypeCall:
		return &CallDetails{}
	case ActivityTypeEmail:
		return &EmailDetails{}
	case ActivityTypeDemo:
		return &DemoDetails{}
	case ActivityTypeProposal:
		return &ProposalDetails{}
	case ActivityTypeSupportTicket:
		return &SupportTicketDetails{}
	case ActivityTypeNote:
		return &NoteDetails{}
	}
	return nil
}

// DecodeDetails parses raw custom fields into the variant for t. With strict
// set, keys that do not belong to the variant are rejected.
func DecodeDetails(t ActivityType, raw json.RawMessage, strict bool) (Details, error) {
	d := NewDetails(t)
	if d == nil {
		return nil, NewValidationError("type", fmt.Sprintf("unknown activity type %q", t))
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return d, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(d); err != nil {
		if strict && strings.HasPrefix(err.Error(), "json: unknown field") {
			return nil, NewValidationError("custom_fields",
				fmt.Sprintf("%s is not a %s field", strings.TrimPrefix(err.Error(), "json: unknown field "), t))
		}
		return nil, NewValidationError("custom_fields", err.Error())
	}
	return d, nil
}

// CustomFieldKeys lists the custom_fields keys accepted for t.
func CustomFieldKeys(t ActivityType) []string {
	switch t {
	case ActivityTypeTask:
		return []string{"estimated_hours", "actual_hours", "is_recurring", "recurrence_pattern", "recurrence_interval", "checklist"}
	case ActivityTypeMeeting:
		return []string{"meeting_type", "location", "meeting_link", "conference_provider", "meeting_agenda", "meeting_notes", "attendees", "reminder_minutes_before"}
	case ActivityTypeCall:
		return []string{"phone_number", "call_duration", "call_outcome"}
	case ActivityTypeEmail:
		return []string{"email_address"}
	case ActivityTypeDemo:
		return []string{"products_shown"}
	case ActivityTypeProposal:
		return []string{"proposal_value"}
	case ActivityTypeSupportTicket:
		return []string{"issue_category", "severity", "ticket_status", "ticket_number", "sla_due_at", "sla_breached", "customer_satisfaction", "escalation_reason", "escalated_at"}
	}
	return nil
}

// IsCustomFieldKey reports whether key belongs to any variant.
func IsCustomFieldKey(key string) bool {
	for _, t := range ActivityTypes {
		for _, k := range CustomFieldKeys(t) {
			if k == key {
				return true
			}
		}
	}
	return false
}

type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
	RecurrenceYearly  RecurrencePattern = "yearly"
)

// ChecklistItem is one entry of a task checklist. Order is display order.
type ChecklistItem struct {
	ID        string `json:"id" bson:"id"`
	Text      string `json:"text" bson:"text"`
	Completed bool   `json:"completed" bson:"completed"`
}

type TaskDetails struct {
	EstimatedHours     float64           `json:"estimated_hours,omitempty" bson:"estimated_hours,omitempty"`
	ActualHours        float64           `json:"actual_hours,omitempty" bson:"actual_hours,omitempty"`
	IsRecurring        bool              `json:"is_recurring,omitempty" bson:"is_recurring,omitempty"`
	RecurrencePattern  RecurrencePattern `json:"recurrence_pattern,omitempty" bson:"recurrence_pattern,omitempty"`
	RecurrenceInterval int               `json:"recurrence_interval,omitempty" bson:"recurrence_interval,omitempty"`
	Checklist          []ChecklistItem   `json:"checklist,omitempty" bson:"checklist,omitempty"`
}

func (*TaskDetails) ActivityType() ActivityType { return ActivityTypeTask }

func (d *TaskDetails) Validate() error {
	if d.EstimatedHours < 0 || d.ActualHours < 0 {
		return NewValidationError("estimated_hours", "hours cannot be negative")
	}
	if d.IsRecurring {
		switch d.RecurrencePattern {
		case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		default:
			return NewValidationError("recurrence_pattern", fmt.Sprintf("invalid recurrence pattern %q", d.RecurrencePattern))
		}
		if d.RecurrenceInterval < 1 {
			return NewValidationError("recurrence_interval", "recurrence interval must be a positive integer")
		}
	}
	seen := make(map[string]bool, len(d.Checklist))
	for _, item := range d.Checklist {
		if item.ID == "" || strings.TrimSpace(item.Text) == "" {
			return NewValidationError("checklist", "checklist items need an id and text")
		}
		if seen[item.ID] {
			return NewValidationError("checklist", fmt.Sprintf("duplicate checklist item id %q", item.ID))
		}
		seen[item.ID] = true
	}
	return nil
}

type MeetingType string

const (
	MeetingTypeVirtual  MeetingType = "virtual"
	MeetingTypeInPerson MeetingType = "in_person"
	MeetingTypePhone    MeetingType = "phone"
)

type AttendeeStatus string

const (
	AttendeePending   AttendeeStatus = "pending"
	AttendeeAccepted  AttendeeStatus = "accepted"
	AttendeeDeclined  AttendeeStatus = "declined"
	AttendeeTentative AttendeeStatus = "tentative"
)

// Attendee status is owned by the calendar system; it is never computed here.
type Attendee struct {
	ID     string         `json:"id" bson:"id"`
	Email  string         `json:"email" bson:"email"`
	Name   string         `json:"name,omitempty" bson:"name,omitempty"`
	Status AttendeeStatus `json:"status" bson:"status"`
}

type MeetingDetails struct {
	MeetingType           MeetingType `json:"meeting_type,omitempty" bson:"meeting_type,omitempty"`
	Location              string      `json:"location,omitempty" bson:"location,omitempty"`
	MeetingLink           string      `json:"meeting_link,omitempty" bson:"meeting_link,omitempty"`
	ConferenceProvider    string      `json:"conference_provider,omitempty" bson:"conference_provider,omitempty"`
	MeetingAgenda         string      `json:"meeting_agenda,omitempty" bson:"meeting_agenda,omitempty"`
	MeetingNotes          string      `json:"meeting_notes,omitempty" bson:"meeting_notes,omitempty"`
	Attendees             []Attendee  `json:"attendees,omitempty" bson:"attendees,omitempty"`
	ReminderMinutesBefore int         `json:"reminder_minutes_before,omitempty" bson:"reminder_minutes_before,omitempty"`
}

func (*MeetingDetails) ActivityType() ActivityType { return ActivityTypeMeeting }

func (d *MeetingDetails) Validate() error {
	switch d.MeetingType {
	case "", MeetingTypeVirtual, MeetingTypeInPerson, MeetingTypePhone:
	default:
		return NewValidationError("meeting_type", fmt.Sprintf("invalid meeting type %q", d.MeetingType))
	}
	if d.ReminderMinutesBefore < 0 {
		return NewValidationError("reminder_minutes_before", "reminder cannot be negative")
	}
	for i := range d.Attendees {
		att := &d.Attendees[i]
		if !strings.Contains(att.Email, "@") {
			return NewValidationError("attendees", fmt.Sprintf("invalid attendee email %q", att.Email))
		}
		switch att.Status {
		case "":
			att.Status = AttendeePending
		case AttendeePending, AttendeeAccepted, AttendeeDeclined, AttendeeTentative:
		default:
			return NewValidationError("attendees", fmt.Sprintf("invalid attendee status %q", att.Status))
		}
	}
	return nil
}

type CallDetails struct {
	PhoneNumber  string `json:"phone_number,omitempty" bson:"phone_number,omitempty"`
	CallDuration int    `json:"call_duration,omitempty" bson:"call_duration,omitempty"` // seconds
	CallOutcome  string `json:"call_outcome,omitempty" bson:"call_outcome,omitempty"`
}

func (*CallDetails) ActivityType() ActivityType { return ActivityTypeCall }

func (d *CallDetails) Validate() error {
	if d.CallDuration < 0 {
		return NewValidationError("call_duration", "call duration cannot be negative")
	}
	return nil
}

type EmailDetails struct {
	EmailAddress string `json:"email_address,omitempty" bson:"email_address,omitempty"`
}

func (*EmailDetails) ActivityType() ActivityType { return ActivityTypeEmail }

func (d *EmailDetails) Validate() error {
	if d.EmailAddress != "" && !strings.Contains(d.EmailAddress, "@") {
		return NewValidationError("email_address", fmt.Sprintf("invalid email address %q", d.EmailAddress))
	}
	return nil
}

type DemoDetails struct {
	ProductsShown []string `json:"products_shown,omitempty" bson:"products_shown,omitempty"`
}

func (*DemoDetails) ActivityType() ActivityType { return ActivityTypeDemo }

func (*DemoDetails) Validate() error { return nil }

type ProposalDetails struct {
	ProposalValue float64 `json:"proposal_value,omitempty" bson:"proposal_value,omitempty"`
}

func (*ProposalDetails) ActivityType() ActivityType { return ActivityTypeProposal }

func (d *ProposalDetails) Validate() error {
	if d.ProposalValue < 0 {
		return NewValidationError("proposal_value", "proposal value cannot be negative")
	}
	return nil
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type TicketStatus string

const (
	TicketOpen            TicketStatus = "open"
	TicketInProgress      TicketStatus = "in_progress"
	TicketPendingCustomer TicketStatus = "pending_customer"
	TicketEscalated       TicketStatus = "escalated"
	TicketResolved        TicketStatus = "resolved"
	TicketClosed          TicketStatus = "closed"
)

// IsTerminal reports whether the ticket needs no more work.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketResolved || s == TicketClosed
}

type SupportTicketDetails struct {
	IssueCategory        string       `json:"issue_category,omitempty" bson:"issue_category,omitempty"`
	Severity             Severity     `json:"severity,omitempty" bson:"severity,omitempty"`
	TicketStatus         TicketStatus `json:"ticket_status,omitempty" bson:"ticket_status,omitempty"`
	TicketNumber         string       `json:"ticket_number,omitempty" bson:"ticket_number,omitempty"`
	SLADueAt             *time.Time   `json:"sla_due_at,omitempty" bson:"sla_due_at,omitempty"`
	SLABreached          bool         `json:"sla_breached,omitempty" bson:"sla_breached,omitempty"`
	CustomerSatisfaction int          `json:"customer_satisfaction,omitempty" bson:"customer_satisfaction,omitempty"`
	EscalationReason     string       `json:"escalation_reason,omitempty" bson:"escalation_reason,omitempty"`
	EscalatedAt          *time.Time   `json:"escalated_at,omitempty" bson:"escalated_at,omitempty"`
}

func (*SupportTicketDetails) ActivityType() ActivityType { return ActivityTypeSupportTicket }

func (d *SupportTicketDetails) Validate() error {
	switch d.Severity {
	case "", SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
	default:
		return NewValidationError("severity", fmt.Sprintf("invalid severity %q", d.Severity))
	}
	switch d.TicketStatus {
	case "", TicketOpen, TicketInProgress, TicketPendingCustomer, TicketEscalated, TicketResolved, TicketClosed:
	default:
		return NewValidationError("ticket_status", fmt.Sprintf("invalid ticket status %q", d.TicketStatus))
	}
	if d.CustomerSatisfaction != 0 && (d.CustomerSatisfaction < 1 || d.CustomerSatisfaction > 5) {
		return NewValidationError("customer_satisfaction", "customer satisfaction must be between 1 and 5")
	}
	return nil
}

// SLAWindow is the default time to resolution per severity.
func SLAWindow(s Severity) time.Duration {
	switch s {
	case SeverityCritical:
		return 4 * time.Hour
	case SeverityHigh:
		return 8 * time.Hour
	case SeverityLow:
		return 72 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// IsSLABreached reports a flagged breach or an unresolved ticket past its SLA.
func (d *SupportTicketDetails) IsSLABreached(now time.Time) bool {
	if d.SLABreached {
		return true
	}
	return d.SLADueAt != nil && !d.TicketStatus.IsTerminal() && d.SLADueAt.Before(now)
}

type NoteDetails struct{}

func (*NoteDetails) ActivityType() ActivityType { return ActivityTypeNote }

func (*NoteDetails) Validate() error { return nil }
