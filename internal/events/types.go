package events

import "time"

// Event type constants follow the format: aggregate.action
const (
	EventTypeVoteCast    = "vote.cast"
	EventTypePollCreated = "poll.created"
	EventTypePollUpdated = "poll.updated"
)

const AggregatePoll = "poll"

// VoteCastEvent is the public chain head after an append. It carries nothing
// that identifies the voter.
type VoteCastEvent struct {
	PollID      string    `json:"poll_id"`
	Sequence    int64     `json:"sequence"`
	Fingerprint string    `json:"fingerprint"`
	ReceiptCode string    `json:"receipt_code"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type PollChangedEvent struct {
	PollID   string    `json:"poll_id"`
	Title    string    `json:"title"`
	Kind     string    `json:"kind"`
	OpensAt  time.Time `json:"opens_at"`
	ClosesAt time.Time `json:"closes_at"`
}
