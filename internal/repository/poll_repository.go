package repository

import (
	"context"
	"errors"

	"hoa-ledger/internal/domain/poll"
	ledger_errors "hoa-ledger/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresPollRepository struct {
	db *gorm.DB
}

func NewPollRepository(db *gorm.DB) PollRepository {
	return &PostgresPollRepository{db: db}
}

func orderedOptions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// Create inserts the poll together with its options.
func (r *PostgresPollRepository) Create(ctx context.Context, tx *gorm.DB, p *poll.Poll) error {
	res := conn(ctx, r.db, tx).Create(p)
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return ledger_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresPollRepository) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (poll.Poll, error) {
	var p poll.Poll
	err := conn(ctx, r.db, tx).
		Preload("Options", orderedOptions).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return poll.Poll{}, ledger_errors.ErrNotFound
		}
		return poll.Poll{}, err
	}
	return p, nil
}

// Update writes the poll's own columns. Options are never rewritten.
func (r *PostgresPollRepository) Update(ctx context.Context, tx *gorm.DB, p *poll.Poll) error {
	res := conn(ctx, r.db, tx).
		Model(&poll.Poll{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"title":              p.Title,
			"description":        p.Description,
			"kind":               p.Kind,
			"anonymous":          p.Anonymous,
			"prevent_duplicates": p.PreventDuplicates,
			"notify_on_create":   p.NotifyOnCreate,
			"opens_at":           p.OpensAt,
			"closes_at":          p.ClosesAt,
			"updated_at":         p.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger_errors.ErrNotFound
	}
	return nil
}

// Delete removes a poll. Options and votes go with it through the cascade.
func (r *PostgresPollRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&poll.Poll{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresPollRepository) List(ctx context.Context, page, limit int) ([]poll.Poll, int64, error) {
	var polls []poll.Poll
	var total int64

	q := r.db.WithContext(ctx).Model(&poll.Poll{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := q.
		Preload("Options", orderedOptions).
		Order("opens_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&polls).Error; err != nil {
		return nil, 0, err
	}
	return polls, total, nil
}

func (r *PostgresPollRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&poll.Poll{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}
