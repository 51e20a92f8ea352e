package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/inbox"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/internal/repositories"
	"github.com/white/crm-backend/pkg/smtp"
	"github.com/white/crm-backend/pkg/uuid"
)

// SendRequest is an outbound email composed in the CRM. More than one
// recipient makes it a bulk send.
type SendRequest struct {
	To        models.AddressList `json:"to"`
	CC        models.AddressList `json:"cc,omitempty"`
	Subject   string             `json:"subject"`
	Message   string             `json:"message"`
	ContactID string             `json:"contact_id,omitempty"`
}

type EmailService struct {
	repo      EmailRepository
	contacts  ContactRepository
	mailer    Mailer
	producer  events.Publisher
	sentTopic string
	audit     *events.AuditPublisher
	now       func() time.Time
}

// NewEmailService wires email handling. mailer and producer may be nil: mail
// then stays queued and no sent events are published.
func NewEmailService(
	repo EmailRepository,
	contacts ContactRepository,
	mailer Mailer,
	producer events.Publisher,
	sentTopic string,
	audit *events.AuditPublisher,
) *EmailService {
	return &EmailService{
		repo:      repo,
		contacts:  contacts,
		mailer:    mailer,
		producer:  producer,
		sentTopic: sentTopic,
		audit:     audit,
		now:       time.Now,
	}
}

func (s *EmailService) List(ctx context.Context, tenantID string, limit int) ([]*models.EmailRecord, error) {
	emails, err := s.repo.List(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	return emails, nil
}

// Conversations groups the tenant's mail by counterpart.
func (s *EmailService) Conversations(ctx context.Context, tenantID string) ([]inbox.Conversation, error) {
	emails, err := s.repo.List(ctx, tenantID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	contacts, _, err := s.contacts.List(ctx, tenantID, models.ContactQuery{})
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}

	records := make([]models.EmailRecord, 0, len(emails))
	for _, e := range emails {
		records = append(records, *e)
	}
	people := make([]models.Contact, 0, len(contacts))
	for _, c := range contacts {
		people = append(people, *c)
	}
	return inbox.Group(records, people), nil
}

// Send composes and delivers a new email.
func (s *EmailService) Send(ctx context.Context, actor events.Actor, req SendRequest) (*models.EmailRecord, error) {
	to, err := cleanAddresses("to", req.To)
	if err != nil {
		return nil, err
	}
	if len(to) == 0 {
		return nil, models.NewValidationError("to", "at least one recipient is required")
	}
	cc, err := cleanAddresses("cc", req.CC)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Subject) == "" {
		return nil, models.NewValidationError("subject", "subject is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, models.NewValidationError("message", "message is required")
	}

	record := s.newOutbound(actor, models.EmailDirectionSend, req.Subject, req.Message)
	record.ContactID = req.ContactID
	record.CC = cc
	if len(to) > 1 {
		record.IsBulk = true
		record.Recipients = to
	} else {
		record.ToEmail = to[0]
	}
	return s.deliver(ctx, actor, record, "")
}

// Reply answers the counterpart of a stored email. With all set, the other
// recipients of the original are copied in.
func (s *EmailService) Reply(ctx context.Context, actor events.Actor, id, message string, all bool) (*models.EmailRecord, error) {
	if strings.TrimSpace(message) == "" {
		return nil, models.NewValidationError("message", "message is required")
	}
	parent, err := s.repo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if parent.IsBulk {
		return nil, models.NewValidationError("", "bulk emails cannot be replied to")
	}
	to := parent.Counterpart()
	if to == "" {
		return nil, models.NewValidationError("", "original email has no counterpart address")
	}

	record := s.newOutbound(actor, models.EmailDirectionReply, replySubject(parent.Subject), message)
	record.ToEmail = to
	record.ParentID = parent.ID
	record.ContactID = parent.ContactID
	if all {
		record.CC = replyAllCC(parent, record.FromEmail, to)
	}
	return s.deliver(ctx, actor, record, parent.MessageID)
}

func (s *EmailService) newOutbound(actor events.Actor, dir models.EmailDirection, subject, message string) *models.EmailRecord {
	from := actor.UserEmail
	if s.mailer != nil && s.mailer.FromAddress() != "" {
		from = s.mailer.FromAddress()
	}
	return &models.EmailRecord{
		ID:        uuid.MustNewUUID(),
		TenantID:  actor.TenantID,
		Direction: dir,
		FromEmail: from,
		Subject:   strings.TrimSpace(subject),
		Message:   message,
		MessageID: newMessageID(from),
		UserID:    actor.UserID,
		Status:    models.EmailStatusQueued,
		CreatedAt: s.now().UTC(),
	}
}

// deliver stores the record, hands it to the mail provider and records the
// outcome. Bulk sends go out one message per recipient.
func (s *EmailService) deliver(ctx context.Context, actor events.Actor, record *models.EmailRecord, inReplyTo string) (*models.EmailRecord, error) {
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store email: %w", err)
	}

	if s.mailer == nil {
		zap.L().Warn("SMTP not configured, email left queued", zap.String("email_id", record.ID))
		return record, nil
	}

	targets := [][]string{{record.ToEmail}}
	if record.IsBulk {
		targets = targets[:0]
		for _, rcpt := range record.Recipients {
			targets = append(targets, []string{rcpt})
		}
	}

	var failures []string
	for _, rcpt := range targets {
		err := s.mailer.Send(ctx, smtp.Message{
			To:        rcpt,
			CC:        record.CC,
			Subject:   record.Subject,
			BodyText:  record.Message,
			MessageID: record.MessageID,
			InReplyTo: inReplyTo,
		})
		if err != nil {
			zap.L().Warn("Email delivery failed",
				zap.String("email_id", record.ID),
				zap.Strings("to", rcpt),
				zap.Error(err))
			failures = append(failures, fmt.Sprintf("%s: %v", strings.Join(rcpt, ","), err))
		}
	}

	if len(failures) == len(targets) {
		record.MarkAsFailed(strings.Join(failures, "; "))
	} else {
		record.MarkAsSent(s.now().UTC())
		if len(failures) > 0 {
			record.FailureReason = strings.Join(failures, "; ")
		}
	}
	if err := s.repo.UpdateStatus(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record delivery status: %w", err)
	}

	if record.Status == models.EmailStatusSent {
		s.audit.PublishEmailEvent(actor, events.ActionEmailSent, record.ID, record.Subject)
		if s.producer != nil && s.sentTopic != "" {
			if err := s.producer.PublishJSON(s.sentTopic, record.TenantID, record); err != nil {
				zap.L().Warn("Failed to publish email sent event", zap.String("email_id", record.ID), zap.Error(err))
			}
		}
	}
	return record, nil
}

func (s *EmailService) MarkRead(ctx context.Context, tenantID, id string) error {
	return s.repo.MarkRead(ctx, tenantID, id, s.now().UTC())
}

func (s *EmailService) Delete(ctx context.Context, actor events.Actor, id string) error {
	if err := s.repo.Delete(ctx, actor.TenantID, id); err != nil {
		return err
	}
	s.audit.PublishEmailEvent(actor, events.ActionEmailDeleted, id, "")
	return nil
}

// Ingest stores an inbound email. Redelivered messages are recognised by
// their Message-ID and reported with created=false.
func (s *EmailService) Ingest(ctx context.Context, in models.InboundEmail) (record *models.EmailRecord, created bool, err error) {
	if in.TenantID == "" {
		return nil, false, models.NewValidationError("tenant_id", "tenant is required")
	}
	from := strings.TrimSpace(in.From)
	if !strings.Contains(from, "@") {
		return nil, false, models.NewValidationError("from", "sender address is required")
	}

	messageID := trimMessageID(in.MessageID)
	if messageID != "" {
		existing, err := s.repo.GetByMessageID(ctx, in.TenantID, messageID)
		if err == nil {
			return existing, false, nil
		}
		if !repositories.IsNotFound(err) {
			return nil, false, fmt.Errorf("failed to look up message: %w", err)
		}
	}

	receivedAt := in.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	record = &models.EmailRecord{
		ID:        uuid.MustNewUUID(),
		TenantID:  in.TenantID,
		Direction: models.EmailDirectionReceive,
		FromEmail: from,
		ToEmail:   strings.TrimSpace(in.To),
		Subject:   in.Subject,
		Message:   in.Body,
		MessageID: messageID,
		Status:    models.EmailStatusReceived,
		CreatedAt: receivedAt.UTC(),
	}

	if parentID := trimMessageID(in.InReplyTo); parentID != "" {
		parent, err := s.repo.GetByMessageID(ctx, in.TenantID, parentID)
		switch {
		case err == nil:
			record.ParentID = parent.ID
			record.ContactID = parent.ContactID
		case !repositories.IsNotFound(err):
			return nil, false, fmt.Errorf("failed to look up parent message: %w", err)
		}
	}

	if err := s.repo.Create(ctx, record); err != nil {
		if repositories.IsDuplicateKey(err) {
			return record, false, nil
		}
		return nil, false, fmt.Errorf("failed to store inbound email: %w", err)
	}

	s.audit.PublishEmailEvent(events.Actor{TenantID: in.TenantID, UserEmail: from},
		events.ActionEmailReceived, record.ID, record.Subject)
	return record, true, nil
}

func cleanAddresses(field string, list []string) ([]string, error) {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, addr := range list {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if !strings.Contains(addr, "@") {
			return nil, models.NewValidationError(field, fmt.Sprintf("invalid email address %q", addr))
		}
		key := models.NormalizeAddress(addr)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, addr)
	}
	return out, nil
}

func replySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// replyAllCC collects the original's other recipients, leaving out our own
// address and the primary recipient of the reply.
func replyAllCC(parent *models.EmailRecord, self, to string) []string {
	skip := map[string]bool{
		models.NormalizeAddress(self): true,
		models.NormalizeAddress(to):   true,
	}
	candidates := append([]string{}, parent.CC...)
	if parent.Direction == models.EmailDirectionReceive {
		candidates = append(candidates, models.SplitAddresses(parent.ToEmail)...)
	}

	var cc []string
	for _, addr := range candidates {
		key := models.NormalizeAddress(addr)
		if key == "" || skip[key] {
			continue
		}
		skip[key] = true
		cc = append(cc, strings.TrimSpace(addr))
	}
	return cc
}

func newMessageID(from string) string {
	domain := "crm.local"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return uuid.MustNewUUID() + "@" + domain
}

func trimMessageID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}
