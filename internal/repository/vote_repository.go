package repository

import (
	"context"
	"errors"
	"fmt"

	"hoa-ledger/internal/domain/vote"
	ledger_errors "hoa-ledger/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresVoteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &PostgresVoteRepository{db: db}
}

// AppendVote inserts a committed link. A unique violation here means the
// chain invariants were broken upstream and is reported as an integrity
// fault, never as a duplicate vote.
func (r *PostgresVoteRepository) AppendVote(ctx context.Context, tx *gorm.DB, v *vote.Vote) error {
	err := conn(ctx, r.db, tx).Omit("Poll").Create(v).Error
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ledger_errors.ErrIntegrityFault, err)
		}
		return err
	}
	return nil
}

// LastVote returns the head of the poll's chain. ok is false for an empty chain.
func (r *PostgresVoteRepository) LastVote(ctx context.Context, tx *gorm.DB, pollID uuid.UUID) (vote.Vote, bool, error) {
	var v vote.Vote
	err := conn(ctx, r.db, tx).
		Where("poll_id = ?", pollID).
		Order("sequence DESC").
		Take(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return vote.Vote{}, false, nil
		}
		return vote.Vote{}, false, err
	}
	return v, true, nil
}

func (r *PostgresVoteRepository) HasVoted(ctx context.Context, tx *gorm.DB, pollID uuid.UUID, voterID string) (bool, error) {
	var count int64
	err := conn(ctx, r.db, tx).
		Model(&vote.Vote{}).
		Where("poll_id = ? AND voter_id = ?", pollID, voterID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *PostgresVoteRepository) CountByPoll(ctx context.Context, tx *gorm.DB, pollID uuid.UUID) (int64, error) {
	var count int64
	err := conn(ctx, r.db, tx).
		Model(&vote.Vote{}).
		Where("poll_id = ?", pollID).
		Count(&count).Error
	return count, err
}

// VotesInOrder loads every committed vote of a poll in append order with a
// single statement, so the result is one consistent snapshot.
func (r *PostgresVoteRepository) VotesInOrder(ctx context.Context, pollID uuid.UUID) ([]vote.Vote, error) {
	var votes []vote.Vote
	err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("sequence ASC").
		Find(&votes).Error
	return votes, err
}

// GetSummaryByReceipt resolves a normalized receipt code to the public view
// of its vote. The voter column is never selected.
func (r *PostgresVoteRepository) GetSummaryByReceipt(ctx context.Context, code string) (vote.Summary, error) {
	var s vote.Summary
	res := r.db.WithContext(ctx).
		Table("votes AS v").
		Select(`v.poll_id AS poll_id, p.title AS poll_title, p.kind AS poll_kind,
			v.option_id AS option_id, o.text AS option_text, v.sequence AS sequence,
			v.submitted_at AS submitted_at, v.fingerprint AS fingerprint,
			v.prev_fingerprint AS prev_fingerprint, v.receipt_code AS receipt_code`).
		Joins("JOIN polls AS p ON p.id = v.poll_id").
		Joins("JOIN poll_options AS o ON o.id = v.option_id").
		Where("v.receipt_code = ?", code).
		Limit(1).
		Scan(&s)
	if res.Error != nil {
		return vote.Summary{}, res.Error
	}
	if res.RowsAffected == 0 {
		return vote.Summary{}, ledger_errors.ErrNotFound
	}
	return s, nil
}

func (r *PostgresVoteRepository) TallyByOption(ctx context.Context, pollID uuid.UUID) (map[uuid.UUID]int64, error) {
	var rows []struct {
		OptionID uuid.UUID
		Votes    int64
	}
	err := r.db.WithContext(ctx).
		Model(&vote.Vote{}).
		Select("option_id, COUNT(*) AS votes").
		Where("poll_id = ?", pollID).
		Group("option_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	tally := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		tally[row.OptionID] = row.Votes
	}
	return tally, nil
}
