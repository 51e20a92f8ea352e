package inbound

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/pkg/kafka"
)

type recordingIngester struct {
	got []models.InboundEmail
	err error
}

func (r *recordingIngester) Ingest(_ context.Context, in models.InboundEmail) (*models.EmailRecord, bool, error) {
	r.got = append(r.got, in)
	if r.err != nil {
		return nil, false, r.err
	}
	return &models.EmailRecord{ID: "e1", TenantID: in.TenantID}, true, nil
}

func TestHandlerIngestsEvent(t *testing.T) {
	ing := &recordingIngester{}
	h := NewHandler(ing)

	err := h(context.Background(), kafka.Message{
		Topic: "communications.email_inbound",
		Key:   []byte("t1"),
		Value: []byte(`{"message_id":"m1","from":"jane@client.com","to":"sales@acme.io","subject":"Hi","body":"Hello"}`),
	})
	require.NoError(t, err)
	require.Len(t, ing.got, 1)
	assert.Equal(t, "t1", ing.got[0].TenantID, "tenant falls back to the message key")
	assert.Equal(t, "m1", ing.got[0].MessageID)
}

func TestHandlerErrors(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		ingErr  error
		wantErr bool
	}{
		{"malformed json is acknowledged", `{not json`, nil, false},
		{"invalid event is acknowledged", `{"tenant_id":"t1"}`, models.NewValidationError("from", "sender is required"), false},
		{"storage failure is retried", `{"tenant_id":"t1","from":"a@b.com"}`, errors.New("mongo down"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&recordingIngester{err: tt.ingErr})
			err := h(context.Background(), kafka.Message{Value: []byte(tt.value)})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
