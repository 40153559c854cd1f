package commands

import (
	"strings"
	"time"

	ledger_errors "hoa-ledger/pkg/errors"

	"github.com/google/uuid"
)

const (
	TypeCastVote   = "vote.cast"
	TypeCreatePoll = "poll.create"
	TypeUpdatePoll = "poll.update"
)

// CastVoteCommand asks the ledger to append one vote. VoterID is nil when
// the caller presented no identity.
type CastVoteCommand struct {
	PollID   uuid.UUID `json:"poll_id"`
	OptionID uuid.UUID `json:"option_id"`
	VoterID  *string   `json:"-"`
	// RequestID is carried for log correlation only. Casting is never
	// deduplicated on it: two identical requests are two votes.
	RequestID string `json:"request_id,omitempty"`
}

func (c CastVoteCommand) CommandType() string { return TypeCastVote }

func (c CastVoteCommand) Validate() error {
	if c.PollID == uuid.Nil || c.OptionID == uuid.Nil {
		return ledger_errors.ErrInvalidInput
	}
	if c.VoterID != nil && strings.TrimSpace(*c.VoterID) == "" {
		return ledger_errors.ErrInvalidInput
	}
	return nil
}

func (c CastVoteCommand) IdempotencyKey() string { return c.RequestID }

type CreatePollCommand struct {
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Kind              string    `json:"kind"`
	Anonymous         bool      `json:"anonymous"`
	PreventDuplicates bool      `json:"prevent_duplicates"`
	NotifyOnCreate    bool      `json:"notify_on_create"`
	OpensAt           time.Time `json:"opens_at"`
	ClosesAt          time.Time `json:"closes_at"`
	Options           []string  `json:"options"`
	CreatedBy         string    `json:"created_by"`
}

func (c CreatePollCommand) CommandType() string { return TypeCreatePoll }

func (c CreatePollCommand) Validate() error {
	if strings.TrimSpace(c.Title) == "" || len(c.Title) > 200 {
		return ledger_errors.ErrInvalidInput
	}
	if c.OpensAt.IsZero() || c.ClosesAt.IsZero() || !c.ClosesAt.After(c.OpensAt) {
		return ledger_errors.ErrInvalidInput
	}
	if len(c.Options) < 2 {
		return ledger_errors.ErrInvalidInput
	}
	seen := make(map[string]bool, len(c.Options))
	for _, o := range c.Options {
		text := strings.TrimSpace(o)
		if text == "" || len(text) > 500 || seen[strings.ToLower(text)] {
			return ledger_errors.ErrInvalidInput
		}
		seen[strings.ToLower(text)] = true
	}
	return nil
}

func (c CreatePollCommand) IdempotencyKey() string { return "" }

// UpdatePollCommand changes poll metadata. Nil fields are left alone.
type UpdatePollCommand struct {
	PollID            uuid.UUID  `json:"poll_id"`
	Title             *string    `json:"title,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Kind              *string    `json:"kind,omitempty"`
	Anonymous         *bool      `json:"anonymous,omitempty"`
	PreventDuplicates *bool      `json:"prevent_duplicates,omitempty"`
	NotifyOnCreate    *bool      `json:"notify_on_create,omitempty"`
	OpensAt           *time.Time `json:"opens_at,omitempty"`
	ClosesAt          *time.Time `json:"closes_at,omitempty"`
}

func (c UpdatePollCommand) CommandType() string { return TypeUpdatePoll }

func (c UpdatePollCommand) Validate() error {
	if c.PollID == uuid.Nil {
		return ledger_errors.ErrInvalidInput
	}
	if c.Title != nil && (strings.TrimSpace(*c.Title) == "" || len(*c.Title) > 200) {
		return ledger_errors.ErrInvalidInput
	}
	return nil
}

func (c UpdatePollCommand) IdempotencyKey() string { return "" }
