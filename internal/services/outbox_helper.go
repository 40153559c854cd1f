package services

import (
	"context"
	"encoding/json"

	"hoa-ledger/internal/domain/outbox"
	"hoa-ledger/internal/events"
	"hoa-ledger/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// createOutboxEvent records an event for the poll aggregate inside tx, so it
// commits or rolls back together with the change it describes.
func createOutboxEvent(ctx context.Context, repo repository.OutboxRepository, tx *gorm.DB, eventType string, pollID uuid.UUID, payload interface{}) error {
	if repo == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return repo.Create(ctx, tx, &outbox.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: events.AggregatePoll,
		AggregateID:   pollID.String(),
		Payload:       data,
	})
}
