package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hoa-ledger/internal/domain/poll"
	"hoa-ledger/internal/hashchain"
	"hoa-ledger/internal/metrics"
	"hoa-ledger/internal/repository"
	ledger_errors "hoa-ledger/pkg/errors"
	"hoa-ledger/pkg/logger"
	"hoa-ledger/pkg/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ReportArchiver stores a serialized integrity report and returns where it went.
type ReportArchiver interface {
	ArchiveReport(ctx context.Context, pollID string, checkedAt time.Time, body []byte) (string, error)
}

// IntegrityReport is an audit result together with the poll it covers.
type IntegrityReport struct {
	PollID    uuid.UUID `json:"poll_id"`
	PollTitle string    `json:"poll_title"`
	PollKind  poll.Kind `json:"poll_kind"`
	CheckedAt time.Time `json:"checked_at"`
	hashchain.Report
}

// ValidatorService replays committed chains. It never takes the write lock
// and never writes to the ledger.
type ValidatorService struct {
	polls    repository.PollRepository
	votes    repository.VoteRepository
	archiver ReportArchiver
	metrics  *metrics.Ledger
	log      *logger.Logger
	now      func() time.Time
}

func NewValidatorService(
	polls repository.PollRepository,
	votes repository.VoteRepository,
	archiver ReportArchiver,
	m *metrics.Ledger,
	log *logger.Logger,
) *ValidatorService {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ValidatorService{
		polls:    polls,
		votes:    votes,
		archiver: archiver,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

func (s *ValidatorService) Validate(ctx context.Context, pollID uuid.UUID) (IntegrityReport, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ledger.Validate")
	defer span.End()
	span.SetAttributes(attribute.String("poll.id", pollID.String()))

	p, err := s.polls.GetByID(ctx, nil, pollID)
	if err != nil {
		if errors.Is(err, ledger_errors.ErrNotFound) {
			return IntegrityReport{}, ledger_errors.ErrPollNotFound
		}
		return IntegrityReport{}, err
	}

	votes, err := s.votes.VotesInOrder(ctx, pollID)
	if err != nil {
		s.metrics.Audits.WithLabelValues("error").Inc()
		return IntegrityReport{}, fmt.Errorf("load chain: %w", err)
	}

	links := make([]hashchain.Link, len(votes))
	for i, v := range votes {
		links[i] = v.Link()
	}
	report := IntegrityReport{
		PollID:    p.ID,
		PollTitle: p.Title,
		PollKind:  p.Kind,
		CheckedAt: s.now().UTC(),
		Report:    hashchain.Audit(links),
	}

	span.SetAttributes(
		attribute.Int("chain.length", report.TotalVotes),
		attribute.Bool("chain.valid", report.Valid),
	)
	if report.Valid {
		s.metrics.Audits.WithLabelValues("valid").Inc()
		return report, nil
	}

	s.metrics.Audits.WithLabelValues("broken").Inc()
	s.metrics.BrokenLinks.Add(float64(len(report.BrokenLinks)))
	s.log.Critical(ctx, "poll chain failed integrity audit",
		zap.String("poll_id", p.ID.String()),
		zap.Int("total_votes", report.TotalVotes),
		zap.Int("broken_links", len(report.BrokenLinks)))
	return report, nil
}

// ValidateAll audits every poll, oldest first. A poll that cannot be loaded
// stops the run.
func (s *ValidatorService) ValidateAll(ctx context.Context) ([]IntegrityReport, error) {
	ids, err := s.polls.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	reports := make([]IntegrityReport, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := s.Validate(ctx, id)
		if err != nil {
			return reports, fmt.Errorf("poll %s: %w", id, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// ArchiveReport writes report as JSON through the configured archiver.
func (s *ValidatorService) ArchiveReport(ctx context.Context, report IntegrityReport) (string, error) {
	if s.archiver == nil {
		return "", fmt.Errorf("%w: report archive is not configured", ledger_errors.ErrServiceUnavailable)
	}
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	location, err := s.archiver.ArchiveReport(ctx, report.PollID.String(), report.CheckedAt, body)
	if err != nil {
		return "", fmt.Errorf("archive report: %w", err)
	}
	s.log.For(ctx).Info("integrity report archived",
		zap.String("poll_id", report.PollID.String()),
		zap.String("location", location))
	return location, nil
}
