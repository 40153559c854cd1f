package services

import (
	"fmt"
	"time"

	"hoa-ledger/internal/domain/poll"
	ledger_errors "hoa-ledger/pkg/errors"

	"github.com/google/uuid"
)

// Gate decides whether a cast attempt is currently legal. It holds no state
// besides the set of enabled poll kinds.
type Gate struct {
	enabled map[poll.Kind]bool
}

func NewGate(enabledKinds []string) *Gate {
	enabled := make(map[poll.Kind]bool, len(enabledKinds))
	for _, k := range enabledKinds {
		if kind := poll.Kind(k); kind.Valid() {
			enabled[kind] = true
		}
	}
	return &Gate{enabled: enabled}
}

func (g *Gate) KindEnabled(k poll.Kind) bool {
	return g.enabled[k]
}

// CheckOpen rejects polls whose kind has been switched off and polls outside
// their active window.
func (g *Gate) CheckOpen(p poll.Poll, now time.Time) error {
	if !g.KindEnabled(p.Kind) {
		return fmt.Errorf("%w: %s", ledger_errors.ErrPollKindDisabled, p.Kind)
	}
	switch p.StatusAt(now) {
	case poll.StatusScheduled:
		return fmt.Errorf("%w: %w", ledger_errors.ErrPollNotOpen, ledger_errors.ErrPollScheduled)
	case poll.StatusClosed:
		return fmt.Errorf("%w: %w", ledger_errors.ErrPollNotOpen, ledger_errors.ErrPollClosed)
	}
	return nil
}

// CheckCast runs every check in order: open state, option membership, then
// the duplicate-voter policy. hasVoted is only consulted when the policy
// applies. Anonymous polls skip it since they keep no voter to key on.
func (g *Gate) CheckCast(p poll.Poll, now time.Time, optionID uuid.UUID, voterID *string, hasVoted func() (bool, error)) error {
	if err := g.CheckOpen(p, now); err != nil {
		return err
	}
	if _, ok := poll.HasOption(p.Options, optionID); !ok {
		return ledger_errors.ErrInvalidOption
	}
	if !p.PreventDuplicates || p.Anonymous || voterID == nil {
		return nil
	}
	voted, err := hasVoted()
	if err != nil {
		return err
	}
	if voted {
		return ledger_errors.ErrAlreadyVoted
	}
	return nil
}
