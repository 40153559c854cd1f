package repository

import (
	"context"
	"time"

	"hoa-ledger/internal/domain/outbox"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxOutboxRetries is the retry budget after which pending events are no
// longer picked up.
const MaxOutboxRetries = 10

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Create(ctx context.Context, tx *gorm.DB, event *outbox.OutboxEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = outbox.StatusPending
	}
	return conn(ctx, r.db, tx).Create(event).Error
}

func (r *outboxRepository) GetPending(ctx context.Context, limit int) ([]outbox.OutboxEvent, error) {
	var events []outbox.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < ?", outbox.StatusPending, MaxOutboxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *outboxRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, map[string]any{
		"status":     outbox.StatusProcessing,
		"updated_at": time.Now().UTC(),
	})
}

func (r *outboxRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.setStatus(ctx, id, map[string]any{
		"status":       outbox.StatusCompleted,
		"processed_at": &now,
		"updated_at":   now,
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error {
	return r.setStatus(ctx, id, map[string]any{
		"status":     outbox.StatusFailed,
		"error":      errorMsg,
		"updated_at": time.Now().UTC(),
	})
}

// IncrementRetry records a failed attempt and puts the event back in the queue.
func (r *outboxRepository) IncrementRetry(ctx context.Context, id uuid.UUID, errorMsg string) error {
	return r.setStatus(ctx, id, map[string]any{
		"status":      outbox.StatusPending,
		"retry_count": gorm.Expr("retry_count + 1"),
		"error":       errorMsg,
		"updated_at":  time.Now().UTC(),
	})
}

func (r *outboxRepository) setStatus(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("id = ?", id).
		Updates(fields).Error
}
