package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"hoa-ledger/internal/domain/outbox"
	"hoa-ledger/internal/domain/poll"
	"hoa-ledger/internal/domain/vote"
)

// Methods that take a tx run on it when it is non-nil and on the
// repository's own handle otherwise.

type PollRepository interface {
	Create(ctx context.Context, tx *gorm.DB, p *poll.Poll) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (poll.Poll, error)
	Update(ctx context.Context, tx *gorm.DB, p *poll.Poll) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page, limit int) ([]poll.Poll, int64, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

type VoteRepository interface {
	AppendVote(ctx context.Context, tx *gorm.DB, v *vote.Vote) error
	LastVote(ctx context.Context, tx *gorm.DB, pollID uuid.UUID) (vote.Vote, bool, error)
	HasVoted(ctx context.Context, tx *gorm.DB, pollID uuid.UUID, voterID string) (bool, error)
	CountByPoll(ctx context.Context, tx *gorm.DB, pollID uuid.UUID) (int64, error)

	VotesInOrder(ctx context.Context, pollID uuid.UUID) ([]vote.Vote, error)
	GetSummaryByReceipt(ctx context.Context, code string) (vote.Summary, error)
	TallyByOption(ctx context.Context, pollID uuid.UUID) (map[uuid.UUID]int64, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, tx *gorm.DB, event *outbox.OutboxEvent) error
	GetPending(ctx context.Context, limit int) ([]outbox.OutboxEvent, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error
	IncrementRetry(ctx context.Context, id uuid.UUID, errorMsg string) error
}
