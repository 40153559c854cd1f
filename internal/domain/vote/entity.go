package vote

import (
	"time"

	"hoa-ledger/internal/domain/poll"
	"hoa-ledger/internal/hashchain"

	"github.com/google/uuid"
)

// Vote represents the votes table. Rows are append-only: the ledger inserts
// them and nothing updates or deletes them.
type Vote struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	PollID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_poll_sequence,priority:1;index:idx_votes_poll_voter,priority:1"`
	OptionID        uuid.UUID `gorm:"type:uuid;not null"`
	VoterID         *string   `gorm:"type:varchar(64);index:idx_votes_poll_voter,priority:2"`
	Sequence        int64     `gorm:"not null;uniqueIndex:idx_votes_poll_sequence,priority:2"`
	SubmittedAt     time.Time `gorm:"not null"`
	PrevFingerprint string    `gorm:"type:varchar(64);not null"`
	Fingerprint     string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	ReceiptCode     string    `gorm:"type:varchar(16);not null;uniqueIndex"`
	CreatedAt       time.Time `gorm:"not null"`

	Poll *poll.Poll `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Vote) TableName() string {
	return "votes"
}

// Link converts the row into the auditor's view of it.
func (v Vote) Link() hashchain.Link {
	return hashchain.Link{
		VoteID:          v.ID.String(),
		Sequence:        v.Sequence,
		VoterID:         v.VoterID,
		OptionID:        v.OptionID.String(),
		SubmittedAt:     v.SubmittedAt,
		PrevFingerprint: v.PrevFingerprint,
		Fingerprint:     v.Fingerprint,
	}
}

// Summary is what a receipt lookup reveals. It never carries the voter.
type Summary struct {
	PollID          uuid.UUID `json:"poll_id"`
	PollTitle       string    `json:"poll_title"`
	PollKind        poll.Kind `json:"poll_kind"`
	OptionID        uuid.UUID `json:"option_id"`
	OptionText      string    `json:"option_text"`
	Sequence        int64     `json:"sequence"`
	SubmittedAt     time.Time `json:"submitted_at"`
	Fingerprint     string    `json:"fingerprint"`
	PrevFingerprint string    `json:"prev_fingerprint"`
	ReceiptCode     string    `json:"receipt_code"`
}
