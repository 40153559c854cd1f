package outbox

import (
	"context"
	"encoding/json"
	"time"

	"hoa-ledger/internal/domain/outbox"
	"hoa-ledger/internal/events"
	"hoa-ledger/internal/metrics"
	"hoa-ledger/internal/repository"
	"hoa-ledger/pkg/logger"

	"go.uber.org/zap"
)

// Processor drains pending outbox rows and publishes them to Redis. Delivery
// is at-least-once; a vote is committed whether or not it is ever published.
type Processor struct {
	repo       repository.OutboxRepository
	publisher  events.Publisher
	metrics    *metrics.Ledger
	log        *logger.Logger
	batchSize  int
	interval   time.Duration
	maxRetries int
}

func NewProcessor(repo repository.OutboxRepository, publisher events.Publisher, m *metrics.Ledger, log *logger.Logger, batchSize int, interval time.Duration, maxRetries int) *Processor {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{
		repo:       repo,
		publisher:  publisher,
		metrics:    m,
		log:        log,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: maxRetries,
	}
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publishes one batch and returns how many events were delivered.
func (p *Processor) ProcessBatch(ctx context.Context) int {
	batch, err := p.repo.GetPending(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warnf("outbox: failed to load pending events: %v", err)
		}
		return 0
	}

	delivered := 0
	for _, e := range batch {
		if p.publish(ctx, e) {
			delivered++
		}
	}
	return delivered
}

func (p *Processor) publish(ctx context.Context, e outbox.OutboxEvent) bool {
	if e.RetryCount >= p.maxRetries {
		_ = p.repo.MarkFailed(ctx, e.ID, "max retries exceeded")
		return false
	}
	if err := p.repo.MarkProcessing(ctx, e.ID); err != nil {
		return false
	}

	env := events.Envelope{
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		OccurredAt:    e.CreatedAt.UTC(),
		Payload:       json.RawMessage(e.Payload),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		// malformed payloads will never encode; stop retrying them
		_ = p.repo.MarkFailed(ctx, e.ID, err.Error())
		p.metrics.OutboxFailed.Inc()
		return false
	}

	channel := events.RouteChannel(env)
	if _, err := p.publisher.Publish(ctx, channel, payload); err != nil {
		p.metrics.OutboxFailed.Inc()
		p.log.Logger.Warn("outbox publish failed",
			zap.String("event_id", e.ID.String()),
			zap.String("channel", channel),
			zap.Int("retry_count", e.RetryCount),
			zap.Error(err))
		_ = p.repo.IncrementRetry(ctx, e.ID, err.Error())
		return false
	}

	_ = p.repo.MarkCompleted(ctx, e.ID)
	p.metrics.OutboxPublished.Inc()
	return true
}
