package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hoa-ledger/internal/commands"
	"hoa-ledger/internal/domain/poll"
	"hoa-ledger/internal/domain/vote"
	"hoa-ledger/internal/events"
	"hoa-ledger/internal/hashchain"
	"hoa-ledger/internal/locker"
	"hoa-ledger/internal/metrics"
	"hoa-ledger/internal/repository"
	ledger_errors "hoa-ledger/pkg/errors"
	"hoa-ledger/pkg/logger"
	"hoa-ledger/pkg/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LedgerService is the only writer of votes. Appends to one poll are
// serialized by the locker; appends to different polls never wait on each
// other.
type LedgerService struct {
	db      *gorm.DB
	polls   repository.PollRepository
	votes   repository.VoteRepository
	outbox  repository.OutboxRepository
	gate    *Gate
	locker  locker.Locker
	metrics *metrics.Ledger
	log     *logger.Logger
	now     func() time.Time
}

func NewLedgerService(
	db *gorm.DB,
	polls repository.PollRepository,
	votes repository.VoteRepository,
	outboxRepo repository.OutboxRepository,
	gate *Gate,
	lk locker.Locker,
	m *metrics.Ledger,
	log *logger.Logger,
) *LedgerService {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &LedgerService{
		db:      db,
		polls:   polls,
		votes:   votes,
		outbox:  outboxRepo,
		gate:    gate,
		locker:  lk,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// RegisterHandlers binds the vote.cast command to CastVote.
func (s *LedgerService) RegisterHandlers(bus *commands.Bus) {
	if bus == nil {
		return
	}
	bus.Register(commands.TypeCastVote, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.CastVoteCommand)
		if !ok {
			return commands.Result{}, ledger_errors.ErrInvalidInput
		}
		res, err := s.CastVote(ctx, CastVoteInput{
			PollID:   typed.PollID,
			VoterID:  typed.VoterID,
			OptionID: typed.OptionID,
		})
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: res.PollID.String(), Payload: res}, nil
	}))
}

type CastVoteInput struct {
	PollID   uuid.UUID
	VoterID  *string
	OptionID uuid.UUID
}

type CastResult struct {
	VoteID          uuid.UUID `json:"vote_id"`
	PollID          uuid.UUID `json:"poll_id"`
	Sequence        int64     `json:"sequence"`
	Fingerprint     string    `json:"fingerprint"`
	PrevFingerprint string    `json:"prev_fingerprint"`
	ReceiptCode     string    `json:"receipt_code"`
	SubmittedAt     time.Time `json:"submitted_at"`
	PollKind        poll.Kind `json:"poll_kind"`
}

// CastVote appends one vote to the poll's chain and returns its receipt.
//
// Cancelling ctx while waiting for the poll lock aborts with no side effects.
// Once the lock is held the append runs to completion regardless of ctx.
func (s *LedgerService) CastVote(ctx context.Context, in CastVoteInput) (CastResult, error) {
	if in.PollID == uuid.Nil || in.OptionID == uuid.Nil {
		return CastResult{}, ledger_errors.ErrInvalidInput
	}

	ctx, span := telemetry.Tracer().Start(ctx, "ledger.CastVote",
		trace.WithAttributes(attribute.String("poll.id", in.PollID.String())))
	defer span.End()

	waitStart := time.Now()
	release, err := s.locker.Acquire(ctx, in.PollID.String())
	if err != nil {
		span.SetStatus(codes.Error, ledger_errors.ReasonCode(err))
		s.reject(err)
		return CastResult{}, err
	}
	defer release()
	s.metrics.LockWait.Observe(time.Since(waitStart).Seconds())

	appendStart := time.Now()
	ctx = context.WithoutCancel(ctx)

	var result CastResult
	err = repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		result, err = s.appendLocked(ctx, tx, in)
		return err
	})
	s.metrics.AppendLatency.Observe(time.Since(appendStart).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ledger_errors.ReasonCode(err))
		s.fail(ctx, in, err)
		return CastResult{}, err
	}
	span.SetAttributes(attribute.Int64("vote.sequence", result.Sequence))

	s.metrics.VotesCast.WithLabelValues(string(result.PollKind)).Inc()
	s.log.For(ctx).Info("vote cast",
		zap.String("poll_id", result.PollID.String()),
		zap.Int64("sequence", result.Sequence),
		zap.String("receipt_code", result.ReceiptCode))
	return result, nil
}

func (s *LedgerService) appendLocked(ctx context.Context, tx *gorm.DB, in CastVoteInput) (CastResult, error) {
	p, err := s.polls.GetByID(ctx, tx, in.PollID)
	if err != nil {
		if errors.Is(err, ledger_errors.ErrNotFound) {
			return CastResult{}, ledger_errors.ErrPollNotFound
		}
		return CastResult{}, err
	}

	// anonymous polls never see the caller's identity
	voterID := in.VoterID
	if p.Anonymous {
		voterID = nil
	} else if voterID == nil || *voterID == "" {
		return CastResult{}, ledger_errors.ErrVoterRequired
	}

	submittedAt := hashchain.CanonicalTime(s.now())
	err = s.gate.CheckCast(p, submittedAt, in.OptionID, voterID, func() (bool, error) {
		return s.votes.HasVoted(ctx, tx, p.ID, *voterID)
	})
	if err != nil {
		return CastResult{}, err
	}

	prev, sequence := hashchain.Genesis, int64(1)
	last, ok, err := s.votes.LastVote(ctx, tx, p.ID)
	if err != nil {
		return CastResult{}, err
	}
	if ok {
		if last.Fingerprint == "" {
			return CastResult{}, fmt.Errorf("%w: chain head %d has no fingerprint", ledger_errors.ErrIntegrityFault, last.Sequence)
		}
		prev, sequence = last.Fingerprint, last.Sequence+1
	}

	fingerprint := hashchain.Fingerprint(voterID, in.OptionID.String(), submittedAt, prev)
	v := &vote.Vote{
		ID:              uuid.New(),
		PollID:          p.ID,
		OptionID:        in.OptionID,
		VoterID:         voterID,
		Sequence:        sequence,
		SubmittedAt:     submittedAt,
		PrevFingerprint: prev,
		Fingerprint:     fingerprint,
		ReceiptCode:     hashchain.DeriveReceipt(fingerprint),
	}
	if err := s.votes.AppendVote(ctx, tx, v); err != nil {
		return CastResult{}, err
	}

	err = createOutboxEvent(ctx, s.outbox, tx, events.EventTypeVoteCast, p.ID, events.VoteCastEvent{
		PollID:      p.ID.String(),
		Sequence:    v.Sequence,
		Fingerprint: v.Fingerprint,
		ReceiptCode: v.ReceiptCode,
		SubmittedAt: v.SubmittedAt,
	})
	if err != nil {
		return CastResult{}, err
	}

	return CastResult{
		VoteID:          v.ID,
		PollID:          v.PollID,
		Sequence:        v.Sequence,
		Fingerprint:     v.Fingerprint,
		PrevFingerprint: v.PrevFingerprint,
		ReceiptCode:     v.ReceiptCode,
		SubmittedAt:     v.SubmittedAt,
		PollKind:        p.Kind,
	}, nil
}

func (s *LedgerService) reject(err error) {
	s.metrics.VoteRejections.WithLabelValues(ledger_errors.ReasonCode(err)).Inc()
}

func (s *LedgerService) fail(ctx context.Context, in CastVoteInput, err error) {
	s.reject(err)
	fields := []zap.Field{
		zap.String("poll_id", in.PollID.String()),
		zap.String("option_id", in.OptionID.String()),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, ledger_errors.ErrIntegrityFault):
		s.metrics.IntegrityFaults.Inc()
		s.log.Critical(ctx, "ledger integrity fault on append", fields...)
	case ledger_errors.HTTPStatus(err) >= 500:
		s.log.For(ctx).Error("vote append failed", fields...)
	default:
		s.log.For(ctx).Debug("vote rejected", fields...)
	}
}
