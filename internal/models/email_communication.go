package models

import (
	"encoding/json"
	"strings"
	"time"
)

// EmailDirection tells which side of the conversation a record is on.
type EmailDirection string

const (
	EmailDirectionSend    EmailDirection = "send"
	EmailDirectionReceive EmailDirection = "receive"
	EmailDirectionReply   EmailDirection = "reply"
)

// EmailStatus tracks delivery through the mail provider.
type EmailStatus string

const (
	EmailStatusQueued    EmailStatus = "queued"
	EmailStatusSent      EmailStatus = "sent"
	EmailStatusFailed    EmailStatus = "failed"
	EmailStatusReceived  EmailStatus = "received"
	EmailStatusDelivered EmailStatus = "delivered"
)

// EmailRecord is one sent, received or reply email.
// Collection: emails
type EmailRecord struct {
	ID            string         `bson:"_id" json:"id"`
	TenantID      string         `bson:"tenant_id" json:"tenant_id,omitempty"`
	Direction     EmailDirection `bson:"direction" json:"direction"`
	FromEmail     string         `bson:"from_email" json:"from_email"`
	ToEmail       string         `bson:"to_email,omitempty" json:"to_email,omitempty"`
	CC            []string       `bson:"cc,omitempty" json:"cc,omitempty"`
	Recipients    []string       `bson:"recipients,omitempty" json:"recipients,omitempty"` // bulk sends
	Subject       string         `bson:"subject" json:"subject"`
	Message       string         `bson:"message" json:"message"`
	IsBulk        bool           `bson:"is_bulk" json:"is_bulk"`
	ParentID      string         `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	MessageID     string         `bson:"message_id,omitempty" json:"message_id,omitempty"`
	ContactID     string         `bson:"contact_id,omitempty" json:"contact_id,omitempty"`
	UserID        string         `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Status        EmailStatus    `bson:"status" json:"status"`
	FailureReason string         `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	ReadAt        *time.Time     `bson:"read_at,omitempty" json:"read_at,omitempty"`
	SentAt        *time.Time     `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
}

// Counterpart returns the address on the other side of the conversation.
func (e *EmailRecord) Counterpart() string {
	if e.Direction == EmailDirectionReceive {
		return e.FromEmail
	}
	return e.ToEmail
}

// HasBeenRead checks if the email has been read (based on ReadAt timestamp)
func (e *EmailRecord) HasBeenRead() bool {
	return e.ReadAt != nil
}

// IsUnread reports a received email nobody has opened yet. Outbound mail
// is written by the tenant and never counts as unread.
func (e *EmailRecord) IsUnread() bool {
	return e.Direction == EmailDirectionReceive && !e.HasBeenRead()
}

// MarkAsRead marks the email as read at t
func (e *EmailRecord) MarkAsRead(t time.Time) {
	e.ReadAt = &t
}

// MarkAsSent marks the email as sent at t
func (e *EmailRecord) MarkAsSent(t time.Time) {
	e.SentAt = &t
	e.Status = EmailStatusSent
}

// MarkAsFailed marks the email as failed with the provider's reason
func (e *EmailRecord) MarkAsFailed(reason string) {
	e.Status = EmailStatusFailed
	e.FailureReason = reason
}

// NormalizeAddress lowercases and trims an email address for comparison.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// SplitAddresses splits a comma or semicolon separated recipient list.
func SplitAddresses(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if addr := strings.TrimSpace(f); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// InboundEmail is the event payload published by the mail provider bridge
// when a contact writes to a tenant mailbox.
type InboundEmail struct {
	TenantID   string    `json:"tenant_id"`
	MessageID  string    `json:"message_id"`
	InReplyTo  string    `json:"in_reply_to,omitempty"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// AddressList accepts either a single, possibly comma separated, address
// string or a JSON array of addresses.
type AddressList []string

func (l *AddressList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = SplitAddresses(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return NewValidationError("to", "recipients must be a string or a list of strings")
	}
	out := make([]string, 0, len(many))
	for _, m := range many {
		out = append(out, SplitAddresses(m)...)
	}
	*l = out
	return nil
}
