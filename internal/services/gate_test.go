package services

import (
	"errors"
	"testing"
	"time"

	"hoa-ledger/internal/domain/poll"
	ledger_errors "hoa-ledger/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func gatePoll(now time.Time) poll.Poll {
	id := uuid.New()
	return poll.Poll{
		ID:                id,
		Kind:              poll.KindBinding,
		PreventDuplicates: true,
		OpensAt:           now.Add(-time.Hour),
		ClosesAt:          now.Add(time.Hour),
		Options: []poll.Option{
			{ID: uuid.New(), PollID: id, Position: 1},
			{ID: uuid.New(), PollID: id, Position: 2},
		},
	}
}

func never() (bool, error) { return false, nil }

func TestGateLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewGate([]string{"informal", "binding", "straw-poll"})
	p := gatePoll(now)
	opt := p.Options[0].ID

	assert.NoError(t, g.CheckCast(p, now, opt, nil, never))

	// inclusive bounds
	assert.NoError(t, g.CheckCast(p, p.OpensAt, opt, nil, never))
	assert.NoError(t, g.CheckCast(p, p.ClosesAt, opt, nil, never))

	err := g.CheckCast(p, p.OpensAt.Add(-time.Millisecond), opt, nil, never)
	assert.ErrorIs(t, err, ledger_errors.ErrPollNotOpen)
	assert.Equal(t, "POLL_SCHEDULED", ledger_errors.ReasonCode(err))

	err = g.CheckCast(p, p.ClosesAt.Add(time.Millisecond), opt, nil, never)
	assert.ErrorIs(t, err, ledger_errors.ErrPollClosed)
	assert.Equal(t, "POLL_CLOSED", ledger_errors.ReasonCode(err))
}

func TestGateClosedWinsOverInvalidOption(t *testing.T) {
	now := time.Now()
	g := NewGate([]string{"binding"})
	p := gatePoll(now.Add(-48 * time.Hour))

	err := g.CheckCast(p, now, uuid.New(), nil, never)
	assert.ErrorIs(t, err, ledger_errors.ErrPollClosed)
}

func TestGateInvalidOption(t *testing.T) {
	now := time.Now()
	g := NewGate([]string{"binding"})
	other := gatePoll(now)

	err := g.CheckCast(gatePoll(now), now, other.Options[0].ID, nil, never)
	assert.ErrorIs(t, err, ledger_errors.ErrInvalidOption)
}

func TestGateDisabledKind(t *testing.T) {
	now := time.Now()
	g := NewGate([]string{"informal", "bogus"})
	p := gatePoll(now)

	assert.False(t, g.KindEnabled(poll.KindBinding))
	err := g.CheckCast(p, now, p.Options[0].ID, nil, never)
	assert.ErrorIs(t, err, ledger_errors.ErrPollKindDisabled)
}

func TestGateDuplicatePolicy(t *testing.T) {
	now := time.Now()
	g := NewGate([]string{"binding"})
	voter := "alice"
	voted := func() (bool, error) { return true, nil }

	p := gatePoll(now)
	assert.ErrorIs(t, g.CheckCast(p, now, p.Options[0].ID, &voter, voted), ledger_errors.ErrAlreadyVoted)

	p.PreventDuplicates = false
	assert.NoError(t, g.CheckCast(p, now, p.Options[0].ID, &voter, voted))

	// anonymous polls never consult the voter history
	p.PreventDuplicates = true
	p.Anonymous = true
	assert.NoError(t, g.CheckCast(p, now, p.Options[0].ID, &voter, func() (bool, error) {
		t.Fatal("hasVoted called for anonymous poll")
		return false, nil
	}))
}

func TestGateLookupFailure(t *testing.T) {
	now := time.Now()
	g := NewGate([]string{"binding"})
	voter := "alice"
	p := gatePoll(now)
	boom := errors.New("db down")

	err := g.CheckCast(p, now, p.Options[0].ID, &voter, func() (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}
