// Package inbox groups flat email records into per-contact conversations.
package inbox

import (
	"sort"
	"time"

	"github.com/white/crm-backend/internal/models"
)

// BulkKey identifies the synthetic conversation holding bulk sends.
const BulkKey = "__bulk__"

// Conversation is the thread with one counterpart address.
type Conversation struct {
	Key         string                `json:"key"`
	Email       string                `json:"email,omitempty"`
	Name        string                `json:"name"`
	ContactID   string                `json:"contact_id,omitempty"`
	IsBulk      bool                  `json:"is_bulk"`
	Total       int                   `json:"total"`
	Unread      int                   `json:"unread"`
	LastMessage *models.EmailRecord   `json:"last_message,omitempty"`
	Messages    []*models.EmailRecord `json:"messages"`
}

// LastActivity is the creation time of the newest message.
func (c *Conversation) LastActivity() time.Time {
	if c.LastMessage == nil {
		return time.Time{}
	}
	return c.LastMessage.CreatedAt
}

// Key returns the conversation key for a record.
func Key(e *models.EmailRecord) string {
	if e.IsBulk {
		return BulkKey
	}
	return models.NormalizeAddress(e.Counterpart())
}

// Group buckets records by counterpart address. The bulk conversation comes
// first; the rest are ordered by most recent message. Contacts without any
// email are left out, and addresses that match no contact still get a
// conversation of their own.
func Group(records []models.EmailRecord, contacts []models.Contact) []Conversation {
	byEmail := make(map[string]*models.Contact, len(contacts))
	for i := range contacts {
		addr := models.NormalizeAddress(contacts[i].Email)
		if addr == "" {
			continue
		}
		if _, ok := byEmail[addr]; !ok {
			byEmail[addr] = &contacts[i]
		}
	}

	buckets := map[string]*Conversation{}
	var order []string
	for i := range records {
		rec := &records[i]
		key := Key(rec)
		if key == "" {
			continue
		}
		conv, ok := buckets[key]
		if !ok {
			conv = newConversation(key, byEmail[key])
			buckets[key] = conv
			order = append(order, key)
		}
		conv.Messages = append(conv.Messages, rec)
		conv.Total++
		if rec.IsUnread() {
			conv.Unread++
		}
	}

	out := make([]Conversation, 0, len(order))
	for _, key := range order {
		conv := buckets[key]
		sort.SliceStable(conv.Messages, func(i, j int) bool {
			return conv.Messages[i].CreatedAt.After(conv.Messages[j].CreatedAt)
		})
		conv.LastMessage = conv.Messages[0]
		out = append(out, *conv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsBulk != out[j].IsBulk {
			return out[i].IsBulk
		}
		return out[i].LastActivity().After(out[j].LastActivity())
	})
	return out
}

func newConversation(key string, contact *models.Contact) *Conversation {
	if key == BulkKey {
		return &Conversation{Key: key, Name: "Bulk emails", IsBulk: true}
	}
	conv := &Conversation{Key: key, Email: key, Name: key}
	if contact != nil {
		conv.ContactID = contact.ID
		if name := contact.FullName(); name != "" {
			conv.Name = name
		}
	}
	return conv
}

// Find returns the conversation with key, if present.
func Find(convs []Conversation, key string) (*Conversation, bool) {
	for i := range convs {
		if convs[i].Key == key {
			return &convs[i], true
		}
	}
	return nil, false
}
