package outbox

import (
	"context"
	"sync"

	"hoa-ledger/config"
	"hoa-ledger/internal/events"
	"hoa-ledger/internal/metrics"
	"hoa-ledger/internal/repository"
	"hoa-ledger/pkg/logger"
)

type Runner struct {
	processor *Processor
	wg        sync.WaitGroup
}

func NewRunner(processor *Processor) *Runner {
	return &Runner{processor: processor}
}

// Start runs the processor until ctx is done.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.processor.Run(ctx)
	}()
}

// Wait blocks until the processor goroutine has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func DefaultProcessor(cfg config.LedgerConfig, repo repository.OutboxRepository, publisher events.Publisher, m *metrics.Ledger, log *logger.Logger) *Processor {
	return NewProcessor(repo, publisher, m, log, cfg.OutboxBatchSize, cfg.OutboxInterval, repository.MaxOutboxRetries)
}
