package events

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/white/crm-backend/pkg/uuid"
	"go.uber.org/zap"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	// Authentication actions
	ActionLogin       AuditAction = "LOGIN"
	ActionLogout      AuditAction = "LOGOUT"
	ActionLoginFailed AuditAction = "LOGIN_FAILED"
	ActionLoginLocked AuditAction = "LOGIN_LOCKED"

	// Activity actions
	ActionActivityCreated   AuditAction = "ACTIVITY_CREATED"
	ActionActivityUpdated   AuditAction = "ACTIVITY_UPDATED"
	ActionActivityCompleted AuditAction = "ACTIVITY_COMPLETED"
	ActionActivityEscalated AuditAction = "ACTIVITY_ESCALATED"
	ActionActivitySnoozed   AuditAction = "ACTIVITY_SNOOZED"
	ActionActivityDeleted   AuditAction = "ACTIVITY_DELETED"

	// Communication actions
	ActionEmailSent     AuditAction = "EMAIL_SENT"
	ActionEmailReceived AuditAction = "EMAIL_RECEIVED"
	ActionEmailDeleted  AuditAction = "EMAIL_DELETED"

	// Sales actions
	ActionContactDeleted AuditAction = "CONTACT_DELETED"
	ActionDealCreated    AuditAction = "DEAL_CREATED"
	ActionDealMoved      AuditAction = "DEAL_MOVED"
	ActionDealDeleted    AuditAction = "DEAL_DELETED"

	// Team actions
	ActionTeamMemberRemoved AuditAction = "TEAM_MEMBER_REMOVED"
	ActionPageDisconnected  AuditAction = "PAGE_DISCONNECTED"
)

// AuditResource represents the type of resource being audited
type AuditResource string

const (
	ResourceAuth     AuditResource = "AUTH"
	ResourceUser     AuditResource = "USER"
	ResourceActivity AuditResource = "ACTIVITY"
	ResourceEmail    AuditResource = "EMAIL"
	ResourceContact  AuditResource = "CONTACT"
	ResourceDeal     AuditResource = "DEAL"
	ResourceSocial   AuditResource = "SOCIAL"
)

// AuditEvent represents an audit log event published to Kafka
type AuditEvent struct {
	EventID    string                 `json:"event_id"`
	Timestamp  int64                  `json:"timestamp"`
	TenantID   string                 `json:"tenant_id"`
	UserID     string                 `json:"user_id"`
	UserEmail  string                 `json:"user_email,omitempty"`
	Action     AuditAction            `json:"action"`
	Resource   AuditResource          `json:"resource"`
	ResourceID string                 `json:"resource_id,omitempty"`
	Details    string                 `json:"details"`
	IPAddress  string                 `json:"ip_address,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Success    bool                   `json:"success"`
	ErrorMsg   string                 `json:"error_msg,omitempty"`
}

// Publisher is the part of the Kafka producer the audit trail needs
type Publisher interface {
	PublishJSON(topic, key string, data interface{}) error
}

// AuditPublisher handles publishing audit events to Kafka
type AuditPublisher struct {
	producer Publisher
	topic    string
	enabled  bool
	logger   *zap.Logger
}

// NewAuditPublisher creates a new audit publisher. A nil producer logs events only.
func NewAuditPublisher(producer Publisher, topic string, logger *zap.Logger) *AuditPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	enabled := producer != nil
	if enabled {
		logger.Info("Audit event publisher initialized", zap.String("topic", topic))
	} else {
		logger.Info("Audit event publisher initialized without Kafka, events will be logged only")
	}
	return &AuditPublisher{
		producer: producer,
		topic:    topic,
		enabled:  enabled,
		logger:   logger,
	}
}

// Publish sends an audit event to Kafka (fire-and-forget). Events are keyed
// by tenant so one tenant's trail stays ordered.
func (p *AuditPublisher) Publish(event *AuditEvent) {
	if p == nil {
		return
	}
	if event.EventID == "" {
		event.EventID = uuid.MustNewUUID()
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	if ce := p.logger.Check(zap.DebugLevel, "audit"); ce != nil {
		eventJSON, _ := json.Marshal(event)
		ce.Write(zap.ByteString("event", eventJSON))
	}

	if !p.enabled {
		return
	}

	go func() {
		if err := p.producer.PublishJSON(p.topic, event.TenantID, event); err != nil {
			p.logger.Warn("Failed to publish audit event",
				zap.String("action", string(event.Action)),
				zap.Error(err))
		}
	}()
}

// Actor identifies who performed an audited action
type Actor struct {
	TenantID  string
	UserID    string
	UserEmail string
}

// PublishFromRequest creates and publishes an audit event from HTTP request context
func (p *AuditPublisher) PublishFromRequest(
	r *http.Request,
	actor Actor,
	action AuditAction,
	resource AuditResource,
	resourceID string,
	details string,
	success bool,
	metadata map[string]interface{},
) {
	event := &AuditEvent{
		TenantID:   actor.TenantID,
		UserID:     actor.UserID,
		UserEmail:  actor.UserEmail,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		Metadata:   metadata,
		Success:    success,
	}
	if r != nil {
		event.IPAddress = ClientIP(r)
		event.UserAgent = r.UserAgent()
	}
	p.Publish(event)
}

// ClientIP returns the caller address without a port. The first hop of
// X-Forwarded-For wins, then X-Real-IP, then the socket peer.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// PublishAuthEvent publishes an authentication-related audit event
func (p *AuditPublisher) PublishAuthEvent(r *http.Request, actor Actor, action AuditAction, success bool, details string) {
	p.PublishFromRequest(r, actor, action, ResourceAuth, "", details, success, nil)
}

// PublishActivityEvent publishes an activity-related audit event
func (p *AuditPublisher) PublishActivityEvent(actor Actor, action AuditAction, activityID, details string, metadata map[string]interface{}) {
	p.PublishFromRequest(nil, actor, action, ResourceActivity, activityID, details, true, metadata)
}

// PublishEmailEvent publishes an email-related audit event
func (p *AuditPublisher) PublishEmailEvent(actor Actor, action AuditAction, emailID, details string) {
	p.PublishFromRequest(nil, actor, action, ResourceEmail, emailID, details, true, nil)
}
