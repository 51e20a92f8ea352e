// Package inbound turns inbound mail events from Kafka into email records.
package inbound

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/pkg/kafka"
)

// Ingester stores one inbound email. created is false for redeliveries.
type Ingester interface {
	Ingest(ctx context.Context, in models.InboundEmail) (*models.EmailRecord, bool, error)
}

// NewHandler returns the consumer callback for the inbound mail topic.
// Malformed or invalid events are logged and acknowledged so they do not
// block the partition; storage errors are returned and the message is not
// committed.
func NewHandler(ingester Ingester) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var in models.InboundEmail
		if err := json.Unmarshal(msg.Value, &in); err != nil {
			zap.L().Warn("Dropping malformed inbound email",
				zap.String("topic", msg.Topic),
				zap.Error(err))
			return nil
		}
		if in.TenantID == "" && len(msg.Key) > 0 {
			in.TenantID = string(msg.Key)
		}

		record, created, err := ingester.Ingest(ctx, in)
		if err != nil {
			if models.IsValidationError(err) {
				zap.L().Warn("Dropping invalid inbound email",
					zap.String("tenant_id", in.TenantID),
					zap.String("message_id", in.MessageID),
					zap.Error(err))
				return nil
			}
			return fmt.Errorf("failed to ingest inbound email: %w", err)
		}

		if created {
			zap.L().Info("Inbound email stored",
				zap.String("tenant_id", record.TenantID),
				zap.String("email_id", record.ID),
				zap.String("parent_id", record.ParentID))
		} else {
			zap.L().Debug("Inbound email already stored", zap.String("email_id", record.ID))
		}
		return nil
	}
}
