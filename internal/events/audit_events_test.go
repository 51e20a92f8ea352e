package events

import (
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	keys   []string
	events []*AuditEvent
	err    error
}

func (r *recordingPublisher) PublishJSON(topic, key string, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.keys = append(r.keys, key)
	r.events = append(r.events, data.(*AuditEvent))
	return r.err
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestPublishFillsDefaultsAndKeysByTenant(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewAuditPublisher(rec, "audit.events", nil)

	p.PublishActivityEvent(Actor{TenantID: "t1", UserID: "u1"}, ActionActivityCompleted, "a1", "completed", nil)

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "audit.events", rec.topics[0])
	assert.Equal(t, "t1", rec.keys[0])
	ev := rec.events[0]
	assert.NotEmpty(t, ev.EventID)
	assert.NotZero(t, ev.Timestamp)
	assert.Equal(t, ResourceActivity, ev.Resource)
	assert.True(t, ev.Success)
}

func TestPublishErrorIsSwallowed(t *testing.T) {
	rec := &recordingPublisher{err: errors.New("broker down")}
	p := NewAuditPublisher(rec, "audit.events", nil)
	p.PublishEmailEvent(Actor{TenantID: "t1"}, ActionEmailSent, "e1", "sent")
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPublishWithoutProducer(t *testing.T) {
	p := NewAuditPublisher(nil, "audit.events", nil)
	assert.NotPanics(t, func() {
		p.PublishAuthEvent(httptest.NewRequest("POST", "/api/v1/auth/login", nil), Actor{}, ActionLoginFailed, false, "bad password")
	})

	var nilPublisher *AuditPublisher
	assert.NotPanics(t, func() { nilPublisher.Publish(&AuditEvent{}) })
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", ClientIP(r))

	r.RemoteAddr = "@"
	assert.Equal(t, "@", ClientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.7")
	assert.Equal(t, "203.0.113.9", ClientIP(r))
}
