package repository

import (
	"context"
	"testing"
	"time"

	"hoa-ledger/internal/domain/outbox"
	"hoa-ledger/internal/domain/poll"
	"hoa-ledger/internal/domain/vote"
	"hoa-ledger/internal/hashchain"
	ledger_errors "hoa-ledger/pkg/errors"
	"hoa-ledger/pkg/database/dbtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newPoll(t *testing.T, db *gorm.DB) poll.Poll {
	t.Helper()
	now := time.Now().UTC()
	p := poll.Poll{
		ID:                uuid.New(),
		Title:             "Budget",
		Kind:              poll.KindBinding,
		PreventDuplicates: true,
		OpensAt:           now.Add(-time.Hour),
		ClosesAt:          now.Add(time.Hour),
	}
	for i, text := range []string{"Yes", "No"} {
		p.Options = append(p.Options, poll.Option{ID: uuid.New(), PollID: p.ID, Text: text, Position: i + 1})
	}
	require.NoError(t, NewPollRepository(db).Create(context.Background(), nil, &p))
	return p
}

func appendLink(t *testing.T, repo VoteRepository, p poll.Poll, voter *string, optionID uuid.UUID) vote.Vote {
	t.Helper()
	ctx := context.Background()
	last, ok, err := repo.LastVote(ctx, nil, p.ID)
	require.NoError(t, err)

	prev, seq := hashchain.Genesis, int64(1)
	if ok {
		prev, seq = last.Fingerprint, last.Sequence+1
	}
	ts := hashchain.CanonicalTime(time.Now())
	fp := hashchain.Fingerprint(voter, optionID.String(), ts, prev)
	v := vote.Vote{
		ID:              uuid.New(),
		PollID:          p.ID,
		OptionID:        optionID,
		VoterID:         voter,
		Sequence:        seq,
		SubmittedAt:     ts,
		PrevFingerprint: prev,
		Fingerprint:     fp,
		ReceiptCode:     hashchain.DeriveReceipt(fp),
	}
	require.NoError(t, repo.AppendVote(ctx, nil, &v))
	return v
}

func strPtr(s string) *string { return &s }

func TestPollRepositoryRoundTrip(t *testing.T) {
	db := dbtest.New(t)
	repo := NewPollRepository(db)
	ctx := context.Background()
	p := newPoll(t, db)

	got, err := repo.GetByID(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)
	assert.True(t, got.PreventDuplicates)
	assert.False(t, got.Anonymous)
	require.Len(t, got.Options, 2)
	assert.Equal(t, "Yes", got.Options[0].Text)

	got.Title = "Budget 2027"
	got.PreventDuplicates = false
	require.NoError(t, repo.Update(ctx, nil, &got))

	got, err = repo.GetByID(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Budget 2027", got.Title)
	assert.False(t, got.PreventDuplicates)

	ids, err := repo.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p.ID}, ids)

	polls, total, err := repo.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, polls, 1)
}

func TestPollRepositoryNotFound(t *testing.T) {
	db := dbtest.New(t)
	repo := NewPollRepository(db)

	_, err := repo.GetByID(context.Background(), nil, uuid.New())
	assert.ErrorIs(t, err, ledger_errors.ErrNotFound)
	assert.ErrorIs(t, repo.Update(context.Background(), nil, &poll.Poll{ID: uuid.New()}), ledger_errors.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(context.Background(), uuid.New()), ledger_errors.ErrNotFound)
}

func TestPollDeleteCascades(t *testing.T) {
	db := dbtest.New(t)
	p := newPoll(t, db)
	votes := NewVoteRepository(db)
	appendLink(t, votes, p, strPtr("alice"), p.Options[0].ID)

	require.NoError(t, NewPollRepository(db).Delete(context.Background(), p.ID))

	count, err := votes.CountByPoll(context.Background(), nil, p.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestVoteRepositoryChainQueries(t *testing.T) {
	db := dbtest.New(t)
	p := newPoll(t, db)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	_, ok, err := repo.LastVote(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	first := appendLink(t, repo, p, strPtr("alice"), p.Options[0].ID)
	second := appendLink(t, repo, p, strPtr("bob"), p.Options[1].ID)
	third := appendLink(t, repo, p, nil, p.Options[1].ID)

	last, ok, err := repo.LastVote(ctx, nil, p.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, third.ID, last.ID)
	assert.Nil(t, last.VoterID)

	ordered, err := repo.VotesInOrder(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID},
		[]uuid.UUID{ordered[0].ID, ordered[1].ID, ordered[2].ID})

	links := make([]hashchain.Link, 0, len(ordered))
	for _, v := range ordered {
		links = append(links, v.Link())
	}
	assert.True(t, hashchain.Audit(links).Valid, "stored values must hash back to the stored fingerprints")

	voted, err := repo.HasVoted(ctx, nil, p.ID, "alice")
	require.NoError(t, err)
	assert.True(t, voted)
	voted, err = repo.HasVoted(ctx, nil, p.ID, "carol")
	require.NoError(t, err)
	assert.False(t, voted)

	tally, err := repo.TallyByOption(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tally[p.Options[0].ID])
	assert.Equal(t, int64(2), tally[p.Options[1].ID])

	count, err := repo.CountByPoll(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestVoteRepositoryReceiptSummary(t *testing.T) {
	db := dbtest.New(t)
	p := newPoll(t, db)
	repo := NewVoteRepository(db)
	v := appendLink(t, repo, p, strPtr("alice"), p.Options[1].ID)

	s, err := repo.GetSummaryByReceipt(context.Background(), v.ReceiptCode)
	require.NoError(t, err)
	assert.Equal(t, p.ID, s.PollID)
	assert.Equal(t, "Budget", s.PollTitle)
	assert.Equal(t, poll.KindBinding, s.PollKind)
	assert.Equal(t, "No", s.OptionText)
	assert.Equal(t, v.Fingerprint, s.Fingerprint)
	assert.Equal(t, hashchain.Genesis, s.PrevFingerprint)
	assert.Equal(t, int64(1), s.Sequence)
	assert.True(t, v.SubmittedAt.Equal(s.SubmittedAt))

	_, err = repo.GetSummaryByReceipt(context.Background(), "0000000000000000")
	assert.ErrorIs(t, err, ledger_errors.ErrNotFound)
}

func TestAppendVoteUniqueViolationIsIntegrityFault(t *testing.T) {
	db := dbtest.New(t)
	p := newPoll(t, db)
	repo := NewVoteRepository(db)
	v := appendLink(t, repo, p, strPtr("alice"), p.Options[0].ID)

	// same sequence as an existing link: a forked chain
	fork := v
	fork.ID = uuid.New()
	fork.Fingerprint = hashchain.Fingerprint(strPtr("mallory"), p.Options[0].ID.String(), v.SubmittedAt, hashchain.Genesis)
	fork.ReceiptCode = hashchain.DeriveReceipt(fork.Fingerprint)

	err := repo.AppendVote(context.Background(), nil, &fork)
	assert.ErrorIs(t, err, ledger_errors.ErrIntegrityFault)
	assert.False(t, ledger_errors.Retryable(err))
}

func TestWithTxRollsBack(t *testing.T) {
	db := dbtest.New(t)
	p := newPoll(t, db)
	votes := NewVoteRepository(db)
	events := NewOutboxRepository(db)
	ctx := context.Background()

	err := WithTx(ctx, db, func(tx *gorm.DB) error {
		require.NoError(t, events.Create(ctx, tx, &outbox.OutboxEvent{
			EventType:     "vote.cast",
			AggregateType: "poll",
			AggregateID:   p.ID.String(),
			Payload:       []byte(`{}`),
		}))
		return ledger_errors.ErrConflict
	})
	assert.ErrorIs(t, err, ledger_errors.ErrConflict)

	pending, err := events.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	count, err := votes.CountByPoll(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOutboxRepositoryLifecycle(t *testing.T) {
	db := dbtest.New(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	e := &outbox.OutboxEvent{EventType: "vote.cast", AggregateType: "poll", AggregateID: "p", Payload: []byte(`{}`)}
	require.NoError(t, repo.Create(ctx, nil, e))
	require.NotEqual(t, uuid.Nil, e.ID)

	pending, err := repo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repo.IncrementRetry(ctx, e.ID, "redis down"))
	pending, err = repo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	assert.Equal(t, "redis down", pending[0].Error)

	require.NoError(t, repo.MarkCompleted(ctx, e.ID))
	pending, err = repo.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	var stored outbox.OutboxEvent
	require.NoError(t, db.First(&stored, "id = ?", e.ID).Error)
	assert.Equal(t, outbox.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.False(t, IsUniqueViolation(gorm.ErrRecordNotFound))
}
