package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"hoa-ledger/internal/domain/vote"
	"hoa-ledger/internal/hashchain"
	ledger_errors "hoa-ledger/pkg/errors"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func castN(t *testing.T, env *ledgerEnv, pollID uuid.UUID, options []uuid.UUID, n int) []CastResult {
	t.Helper()
	out := make([]CastResult, 0, n)
	for i := 0; i < n; i++ {
		res, err := env.ledger.CastVote(context.Background(), CastVoteInput{
			PollID:   pollID,
			VoterID:  voter(uuid.NewString()),
			OptionID: options[i%len(options)],
		})
		require.NoError(t, err)
		out = append(out, res)
	}
	return out
}

func TestValidateDetectsTamperedOption(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	p := env.createPoll(t, pollOpts{})
	cast := castN(t, env, p.ID, []uuid.UUID{p.Options[0].ID}, 4)

	// an operator with write access flips vote 2 to the other option
	require.NoError(t, env.db.Model(&vote.Vote{}).
		Where("id = ?", cast[1].VoteID).
		Update("option_id", p.Options[1].ID).Error)

	report, err := env.validator.Validate(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, 4, report.TotalVotes)
	require.Len(t, report.BrokenLinks, 1)
	assert.Equal(t, hashchain.HashMismatch, report.BrokenLinks[0].Kind)
	assert.Equal(t, 2, report.BrokenLinks[0].Position)
	assert.Equal(t, cast[1].VoteID.String(), report.BrokenLinks[0].VoteID)

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.Audits.WithLabelValues("broken")))
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.BrokenLinks))
	assert.Len(t, env.logs.FilterMessage("poll chain failed integrity audit").All(), 1)
}

func TestValidateDetectsTamperedTimestampAndLink(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	p := env.createPoll(t, pollOpts{})
	cast := castN(t, env, p.ID, []uuid.UUID{p.Options[0].ID, p.Options[1].ID}, 5)

	require.NoError(t, env.db.Model(&vote.Vote{}).
		Where("id = ?", cast[0].VoteID).
		Update("submitted_at", cast[0].SubmittedAt.Add(-time.Hour)).Error)
	require.NoError(t, env.db.Model(&vote.Vote{}).
		Where("id = ?", cast[3].VoteID).
		Update("prev_fingerprint", hashchain.Genesis).Error)

	report, err := env.validator.Validate(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, report.BrokenLinks, 3)
	assert.Equal(t, 1, report.BrokenLinks[0].Position)
	assert.Equal(t, hashchain.HashMismatch, report.BrokenLinks[0].Kind)
	for _, b := range report.BrokenLinks[1:] {
		assert.Equal(t, 4, b.Position)
	}
}

func TestValidateDetectsDeletedVote(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	p := env.createPoll(t, pollOpts{})
	cast := castN(t, env, p.ID, []uuid.UUID{p.Options[0].ID}, 4)

	require.NoError(t, env.db.Delete(&vote.Vote{}, "id = ?", cast[2].VoteID).Error)

	report, err := env.validator.Validate(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalVotes)
	require.Len(t, report.BrokenLinks, 1)
	assert.Equal(t, hashchain.ChainBreak, report.BrokenLinks[0].Kind)
	assert.Equal(t, int64(4), report.BrokenLinks[0].Sequence)
}

func TestValidateEmptyAndUnknownPoll(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	p := env.createPoll(t, pollOpts{})

	report, err := env.validator.Validate(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Zero(t, report.TotalVotes)
	assert.NotNil(t, report.BrokenLinks)

	_, err = env.validator.Validate(ctx, uuid.New())
	assert.ErrorIs(t, err, ledger_errors.ErrPollNotFound)
}

func TestValidateAll(t *testing.T) {
	env := newLedgerEnv(t)
	a := env.createPoll(t, pollOpts{})
	b := env.createPoll(t, pollOpts{})
	castN(t, env, a.ID, []uuid.UUID{a.Options[0].ID}, 2)
	castN(t, env, b.ID, []uuid.UUID{b.Options[1].ID}, 3)

	reports, err := env.validator.ValidateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	total := 0
	for _, r := range reports {
		assert.True(t, r.Valid)
		total += r.TotalVotes
	}
	assert.Equal(t, 5, total)
	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.Audits.WithLabelValues("valid")))
}

type memoryArchiver struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (m *memoryArchiver) ArchiveReport(_ context.Context, pollID string, checkedAt time.Time, body []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	key := "integrity-reports/" + pollID + "/" + checkedAt.Format(time.RFC3339) + ".json"
	m.keys = append(m.keys, key)
	m.bodies = append(m.bodies, body)
	return key, nil
}

func TestArchiveReport(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()
	p := env.createPoll(t, pollOpts{})
	castN(t, env, p.ID, []uuid.UUID{p.Options[0].ID}, 2)

	report, err := env.validator.Validate(ctx, p.ID)
	require.NoError(t, err)

	_, err = env.validator.ArchiveReport(ctx, report)
	assert.ErrorIs(t, err, ledger_errors.ErrServiceUnavailable)

	archive := &memoryArchiver{}
	env.validator.archiver = archive
	location, err := env.validator.ArchiveReport(ctx, report)
	require.NoError(t, err)
	assert.Contains(t, location, p.ID.String())
	require.Len(t, archive.bodies, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(archive.bodies[0], &decoded))
	assert.Equal(t, true, decoded["valid"])
	assert.Equal(t, float64(2), decoded["total_votes"])
	assert.Equal(t, p.ID.String(), decoded["poll_id"])

	archive.err = errors.New("bucket gone")
	_, err = env.validator.ArchiveReport(ctx, report)
	assert.Error(t, err)
}
