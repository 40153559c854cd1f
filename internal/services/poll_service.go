package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hoa-ledger/internal/commands"
	"hoa-ledger/internal/domain/poll"
	"hoa-ledger/internal/events"
	"hoa-ledger/internal/locker"
	"hoa-ledger/internal/repository"
	ledger_errors "hoa-ledger/pkg/errors"
	"hoa-ledger/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PollService manages poll metadata. Changes that affect voting eligibility
// take the same per-poll lock as the ledger and are refused once the poll
// has votes.
type PollService struct {
	db     *gorm.DB
	polls  repository.PollRepository
	votes  repository.VoteRepository
	outbox repository.OutboxRepository
	gate   *Gate
	locker locker.Locker
	log    *logger.Logger
	now    func() time.Time
}

func NewPollService(
	db *gorm.DB,
	polls repository.PollRepository,
	votes repository.VoteRepository,
	outboxRepo repository.OutboxRepository,
	gate *Gate,
	lk locker.Locker,
	log *logger.Logger,
) *PollService {
	if log == nil {
		log = logger.NewNop()
	}
	return &PollService{
		db:     db,
		polls:  polls,
		votes:  votes,
		outbox: outboxRepo,
		gate:   gate,
		locker: lk,
		log:    log,
		now:    time.Now,
	}
}

func (s *PollService) RegisterHandlers(bus *commands.Bus) {
	if bus == nil {
		return
	}
	bus.Register(commands.TypeCreatePoll, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.CreatePollCommand)
		if !ok {
			return commands.Result{}, ledger_errors.ErrInvalidInput
		}
		p, err := s.Create(ctx, typed)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: p.ID.String(), Payload: p}, nil
	}))
	bus.Register(commands.TypeUpdatePoll, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.UpdatePollCommand)
		if !ok {
			return commands.Result{}, ledger_errors.ErrInvalidInput
		}
		p, err := s.Update(ctx, typed)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: p.ID.String(), Payload: p}, nil
	}))
}

// Create stores a poll and its options. Options are numbered in the order
// given, starting at 1.
func (s *PollService) Create(ctx context.Context, cmd commands.CreatePollCommand) (poll.Poll, error) {
	if err := cmd.Validate(); err != nil {
		return poll.Poll{}, err
	}
	kind := poll.Kind(cmd.Kind)
	if !kind.Valid() {
		return poll.Poll{}, fmt.Errorf("%w: unknown poll kind %q", ledger_errors.ErrInvalidInput, cmd.Kind)
	}
	if !s.gate.KindEnabled(kind) {
		return poll.Poll{}, fmt.Errorf("%w: %s", ledger_errors.ErrPollKindDisabled, kind)
	}

	now := s.now().UTC()
	p := poll.Poll{
		ID:                uuid.New(),
		Title:             strings.TrimSpace(cmd.Title),
		Description:       cmd.Description,
		Kind:              kind,
		Anonymous:         cmd.Anonymous,
		PreventDuplicates: cmd.PreventDuplicates,
		NotifyOnCreate:    cmd.NotifyOnCreate,
		OpensAt:           cmd.OpensAt.UTC(),
		ClosesAt:          cmd.ClosesAt.UTC(),
		CreatedBy:         cmd.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for i, text := range cmd.Options {
		p.Options = append(p.Options, poll.Option{
			ID:       uuid.New(),
			PollID:   p.ID,
			Text:     strings.TrimSpace(text),
			Position: i + 1,
		})
	}

	err := repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.polls.Create(ctx, tx, &p); err != nil {
			return err
		}
		if !p.NotifyOnCreate {
			return nil
		}
		return createOutboxEvent(ctx, s.outbox, tx, events.EventTypePollCreated, p.ID, pollChanged(p))
	})
	if err != nil {
		return poll.Poll{}, err
	}

	s.log.For(ctx).Info("poll created",
		zap.String("poll_id", p.ID.String()),
		zap.String("kind", string(p.Kind)),
		zap.Int("options", len(p.Options)))
	return p, nil
}

func (s *PollService) Get(ctx context.Context, id uuid.UUID) (poll.Poll, error) {
	p, err := s.polls.GetByID(ctx, nil, id)
	if errors.Is(err, ledger_errors.ErrNotFound) {
		return poll.Poll{}, ledger_errors.ErrPollNotFound
	}
	return p, err
}

func (s *PollService) List(ctx context.Context, page, limit int) ([]poll.Poll, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.polls.List(ctx, page, limit)
}

// Update applies the non-nil fields of cmd. Title and description may always
// change; anything that decides eligibility or timing is locked once a vote
// exists.
func (s *PollService) Update(ctx context.Context, cmd commands.UpdatePollCommand) (poll.Poll, error) {
	if err := cmd.Validate(); err != nil {
		return poll.Poll{}, err
	}

	release, err := s.locker.Acquire(ctx, cmd.PollID.String())
	if err != nil {
		return poll.Poll{}, err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	var updated poll.Poll
	err = repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		p, err := s.polls.GetByID(ctx, tx, cmd.PollID)
		if err != nil {
			if errors.Is(err, ledger_errors.ErrNotFound) {
				return ledger_errors.ErrPollNotFound
			}
			return err
		}

		next, eligibilityChanged, err := applyUpdate(p, cmd)
		if err != nil {
			return err
		}
		if eligibilityChanged {
			if next.Kind != p.Kind && !s.gate.KindEnabled(next.Kind) {
				return fmt.Errorf("%w: %s", ledger_errors.ErrPollKindDisabled, next.Kind)
			}
			count, err := s.votes.CountByPoll(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			if count > 0 {
				return ledger_errors.ErrPollLocked
			}
		}

		next.UpdatedAt = s.now().UTC()
		if err := s.polls.Update(ctx, tx, &next); err != nil {
			return err
		}
		updated = next
		return createOutboxEvent(ctx, s.outbox, tx, events.EventTypePollUpdated, p.ID, pollChanged(next))
	})
	if err != nil {
		return poll.Poll{}, err
	}
	return updated, nil
}

func applyUpdate(p poll.Poll, cmd commands.UpdatePollCommand) (poll.Poll, bool, error) {
	next := p
	changed := false

	if cmd.Title != nil {
		next.Title = strings.TrimSpace(*cmd.Title)
	}
	if cmd.Description != nil {
		next.Description = *cmd.Description
	}
	if cmd.NotifyOnCreate != nil {
		next.NotifyOnCreate = *cmd.NotifyOnCreate
	}
	if cmd.Kind != nil && poll.Kind(*cmd.Kind) != p.Kind {
		kind := poll.Kind(*cmd.Kind)
		if !kind.Valid() {
			return p, false, fmt.Errorf("%w: unknown poll kind %q", ledger_errors.ErrInvalidInput, *cmd.Kind)
		}
		next.Kind = kind
		changed = true
	}
	if cmd.Anonymous != nil && *cmd.Anonymous != p.Anonymous {
		next.Anonymous = *cmd.Anonymous
		changed = true
	}
	if cmd.PreventDuplicates != nil && *cmd.PreventDuplicates != p.PreventDuplicates {
		next.PreventDuplicates = *cmd.PreventDuplicates
		changed = true
	}
	if cmd.OpensAt != nil && !cmd.OpensAt.Equal(p.OpensAt) {
		next.OpensAt = cmd.OpensAt.UTC()
		changed = true
	}
	if cmd.ClosesAt != nil && !cmd.ClosesAt.Equal(p.ClosesAt) {
		next.ClosesAt = cmd.ClosesAt.UTC()
		changed = true
	}
	if !next.ClosesAt.After(next.OpensAt) {
		return p, false, fmt.Errorf("%w: closes_at must be after opens_at", ledger_errors.ErrInvalidInput)
	}
	return next, changed, nil
}

// Delete removes the poll along with its options and votes.
func (s *PollService) Delete(ctx context.Context, id uuid.UUID) error {
	release, err := s.locker.Acquire(ctx, id.String())
	if err != nil {
		return err
	}
	defer release()

	if err := s.polls.Delete(context.WithoutCancel(ctx), id); err != nil {
		if errors.Is(err, ledger_errors.ErrNotFound) {
			return ledger_errors.ErrPollNotFound
		}
		return err
	}
	s.log.For(ctx).Warn("poll deleted with its chain", zap.String("poll_id", id.String()))
	return nil
}

type PollResults struct {
	PollID     uuid.UUID    `json:"poll_id"`
	Title      string       `json:"title"`
	Kind       poll.Kind    `json:"kind"`
	Status     poll.Status  `json:"status"`
	TotalVotes int64        `json:"total_votes"`
	Tallies    []poll.Tally `json:"tallies"`
}

// Results counts committed votes per option. Options without votes are
// listed with zero.
func (s *PollService) Results(ctx context.Context, id uuid.UUID) (PollResults, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return PollResults{}, err
	}
	counts, err := s.votes.TallyByOption(ctx, id)
	if err != nil {
		return PollResults{}, err
	}

	res := PollResults{
		PollID:  p.ID,
		Title:   p.Title,
		Kind:    p.Kind,
		Status:  p.StatusAt(s.now()),
		Tallies: make([]poll.Tally, 0, len(p.Options)),
	}
	for _, o := range p.Options {
		n := counts[o.ID]
		res.TotalVotes += n
		res.Tallies = append(res.Tallies, poll.Tally{
			OptionID: o.ID,
			Text:     o.Text,
			Position: o.Position,
			Votes:    n,
		})
	}
	return res, nil
}

func pollChanged(p poll.Poll) events.PollChangedEvent {
	return events.PollChangedEvent{
		PollID:   p.ID.String(),
		Title:    p.Title,
		Kind:     string(p.Kind),
		OpensAt:  p.OpensAt,
		ClosesAt: p.ClosesAt,
	}
}
