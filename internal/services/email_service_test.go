package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/white/crm-backend/internal/inbox"
	"github.com/white/crm-backend/internal/models"
)

type emailFixture struct {
	svc       *EmailService
	repo      *fakeEmailRepo
	contacts  *fakeContactRepo
	mailer    *fakeMailer
	publisher *fakePublisher
}

func newEmailFixture() *emailFixture {
	f := &emailFixture{
		repo:      newFakeEmailRepo(),
		contacts:  &fakeContactRepo{},
		mailer:    &fakeMailer{from: "sales@acme.io", fail: map[string]error{}},
		publisher: &fakePublisher{},
	}
	f.svc = NewEmailService(f.repo, f.contacts, f.mailer, f.publisher, "email.sent", nil)
	return f
}

func TestSendSingleRecipient(t *testing.T) {
	f := newEmailFixture()

	rec, err := f.svc.Send(context.Background(), rep, SendRequest{To: models.AddressList{"jane@client.com"}, Subject: "Hello", Message: "Hi Jane"})
	require.NoError(t, err)
	assert.False(t, rec.IsBulk)
	assert.Equal(t, "jane@client.com", rec.ToEmail)
	assert.Equal(t, "sales@acme.io", rec.FromEmail)
	assert.Equal(t, models.EmailStatusSent, rec.Status)
	assert.NotNil(t, rec.SentAt)
	assert.Contains(t, rec.MessageID, "@acme.io")

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, rec.MessageID, f.mailer.sent[0].MessageID)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, "email.sent", f.publisher.events[0].topic)
	assert.Equal(t, "t1", f.publisher.events[0].key)

	stored := f.repo.items[rec.ID]
	assert.Equal(t, models.EmailStatusSent, stored.Status)
}

func TestSendCommaSeparatedIsBulk(t *testing.T) {
	f := newEmailFixture()
	var req SendRequest
	require.NoError(t, json.Unmarshal([]byte(`{"to":"a@x.com, b@x.com;A@x.com","subject":"News","message":"Body"}`), &req))

	rec, err := f.svc.Send(context.Background(), rep, req)
	require.NoError(t, err)
	assert.True(t, rec.IsBulk)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, rec.Recipients)
	assert.Empty(t, rec.ToEmail)
	assert.Len(t, f.mailer.sent, 2, "bulk mail goes out one message per recipient")
}

func TestSendPartialBulkFailure(t *testing.T) {
	f := newEmailFixture()
	f.mailer.fail["b@x.com"] = errors.New("mailbox full")

	rec, err := f.svc.Send(context.Background(), rep, SendRequest{To: models.AddressList{"a@x.com", "b@x.com"}, Subject: "S", Message: "M"})
	require.NoError(t, err)
	assert.Equal(t, models.EmailStatusSent, rec.Status)
	assert.Contains(t, rec.FailureReason, "mailbox full")
}

func TestSendFailure(t *testing.T) {
	f := newEmailFixture()
	f.mailer.fail["a@x.com"] = errors.New("relay down")

	rec, err := f.svc.Send(context.Background(), rep, SendRequest{To: models.AddressList{"a@x.com"}, Subject: "S", Message: "M"})
	require.NoError(t, err)
	assert.Equal(t, models.EmailStatusFailed, rec.Status)
	assert.Empty(t, f.publisher.events)
}

func TestSendValidation(t *testing.T) {
	f := newEmailFixture()
	ctx := context.Background()

	tests := []struct {
		name string
		req  SendRequest
	}{
		{"no recipient", SendRequest{Subject: "S", Message: "M"}},
		{"bad address", SendRequest{To: models.AddressList{"nope"}, Subject: "S", Message: "M"}},
		{"no subject", SendRequest{To: models.AddressList{"a@x.com"}, Message: "M"}},
		{"no message", SendRequest{To: models.AddressList{"a@x.com"}, Subject: "S"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Send(ctx, rep, tt.req)
			assert.True(t, models.IsValidationError(err))
		})
	}
	assert.Empty(t, f.repo.items)
}

func TestSendWithoutMailerStaysQueued(t *testing.T) {
	f := newEmailFixture()
	svc := NewEmailService(f.repo, f.contacts, nil, nil, "", nil)

	rec, err := svc.Send(context.Background(), rep, SendRequest{To: models.AddressList{"a@x.com"}, Subject: "S", Message: "M"})
	require.NoError(t, err)
	assert.Equal(t, models.EmailStatusQueued, rec.Status)
	assert.Equal(t, "rep@acme.io", rec.FromEmail)
}

func TestReplyAndReplyAll(t *testing.T) {
	f := newEmailFixture()
	ctx := context.Background()

	inbound, created, err := f.svc.Ingest(ctx, models.InboundEmail{
		TenantID:  "t1",
		MessageID: "<abc@client.com>",
		From:      "Jane@Client.com",
		To:        "sales@acme.io, boss@client.com",
		Subject:   "Pricing",
		Body:      "How much?",
	})
	require.NoError(t, err)
	require.True(t, created)
	inbound.CC = []string{"legal@client.com"}
	f.repo.items[inbound.ID].CC = inbound.CC

	reply, err := f.svc.Reply(ctx, rep, inbound.ID, "Here you go", false)
	require.NoError(t, err)
	assert.Equal(t, models.EmailDirectionReply, reply.Direction)
	assert.Equal(t, "Jane@Client.com", reply.ToEmail)
	assert.Equal(t, "Re: Pricing", reply.Subject)
	assert.Equal(t, inbound.ID, reply.ParentID)
	assert.Empty(t, reply.CC)
	assert.Equal(t, "abc@client.com", f.mailer.sent[0].InReplyTo)

	all, err := f.svc.Reply(ctx, rep, inbound.ID, "Looping everyone in", true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"legal@client.com", "boss@client.com"}, all.CC)

	_, err = f.svc.Reply(ctx, rep, inbound.ID, " ", false)
	assert.True(t, models.IsValidationError(err))
}

func TestReplySubjectNotDoubled(t *testing.T) {
	assert.Equal(t, "Re: Pricing", replySubject("Re: Pricing"))
	assert.Equal(t, "re: x", replySubject("re: x"))
	assert.Equal(t, "Re: x", replySubject("x"))
}

func TestIngestIsIdempotentAndThreads(t *testing.T) {
	f := newEmailFixture()
	ctx := context.Background()

	sent, err := f.svc.Send(ctx, rep, SendRequest{To: models.AddressList{"jane@client.com"}, Subject: "Intro", Message: "Hi", ContactID: "c1"})
	require.NoError(t, err)

	in := models.InboundEmail{
		TenantID:   "t1",
		MessageID:  "reply-1@client.com",
		InReplyTo:  "<" + sent.MessageID + ">",
		From:       "jane@client.com",
		To:         "sales@acme.io",
		Subject:    "Re: Intro",
		Body:       "Thanks",
		ReceivedAt: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	rec, created, err := f.svc.Ingest(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, sent.ID, rec.ParentID)
	assert.Equal(t, "c1", rec.ContactID)
	assert.Equal(t, models.EmailStatusReceived, rec.Status)
	assert.Equal(t, in.ReceivedAt, rec.CreatedAt)

	dup, created, err := f.svc.Ingest(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, rec.ID, dup.ID)
	assert.Len(t, f.repo.items, 2)

	_, _, err = f.svc.Ingest(ctx, models.InboundEmail{TenantID: "t1", From: "not-an-address"})
	assert.True(t, models.IsValidationError(err))
}

func TestConversations(t *testing.T) {
	f := newEmailFixture()
	ctx := context.Background()
	f.contacts.items = []*models.Contact{{ID: "c1", TenantID: "t1", FirstName: "Jane", LastName: "Doe", Email: "JANE@client.com"}}

	_, err := f.svc.Send(ctx, rep, SendRequest{To: models.AddressList{"jane@client.com"}, Subject: "A", Message: "M"})
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, rep, SendRequest{To: models.AddressList{"x@y.com", "z@y.com"}, Subject: "B", Message: "M"})
	require.NoError(t, err)

	convs, err := f.svc.Conversations(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, inbox.BulkKey, convs[0].Key)
	assert.Equal(t, "Jane Doe", convs[1].Name)
}

func TestMarkReadAndDelete(t *testing.T) {
	f := newEmailFixture()
	ctx := context.Background()
	rec, _, err := f.svc.Ingest(ctx, models.InboundEmail{TenantID: "t1", MessageID: "m1", From: "a@b.com", Subject: "S"})
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkRead(ctx, "t1", rec.ID))
	assert.NotNil(t, f.repo.items[rec.ID].ReadAt)

	require.NoError(t, f.svc.Delete(ctx, rep, rec.ID))
	assert.Empty(t, f.repo.items)
}
