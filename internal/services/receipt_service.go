package services

import (
	"context"
	"errors"

	"hoa-ledger/internal/domain/vote"
	"hoa-ledger/internal/hashchain"
	"hoa-ledger/internal/metrics"
	"hoa-ledger/internal/repository"
	ledger_errors "hoa-ledger/pkg/errors"
)

type ReceiptService struct {
	votes   repository.VoteRepository
	metrics *metrics.Ledger
}

func NewReceiptService(votes repository.VoteRepository, m *metrics.Ledger) *ReceiptService {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &ReceiptService{votes: votes, metrics: m}
}

// Verify resolves a receipt code, ignoring case and surrounding space.
// Malformed and unknown codes take the same path: one store lookup followed
// by ErrReceiptNotFound.
func (s *ReceiptService) Verify(ctx context.Context, code string) (vote.Summary, error) {
	summary, err := s.votes.GetSummaryByReceipt(ctx, hashchain.LookupKey(code))
	if err != nil {
		if errors.Is(err, ledger_errors.ErrNotFound) {
			s.metrics.ReceiptLookups.WithLabelValues("not_found").Inc()
			return vote.Summary{}, ledger_errors.ErrReceiptNotFound
		}
		s.metrics.ReceiptLookups.WithLabelValues("error").Inc()
		return vote.Summary{}, err
	}
	s.metrics.ReceiptLookups.WithLabelValues("found").Inc()
	return summary, nil
}
