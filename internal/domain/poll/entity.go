package poll

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the poll type. Kinds can be switched off through feature gates.
type Kind string

const (
	KindInformal  Kind = "informal"
	KindBinding   Kind = "binding"
	KindStrawPoll Kind = "straw-poll"
)

// AllKinds lists every known poll kind.
var AllKinds = []Kind{KindInformal, KindBinding, KindStrawPoll}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Status is derived from the poll's time bounds and is never persisted.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusClosed    Status = "closed"
)

// Poll represents the polls table
type Poll struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title             string    `gorm:"type:varchar(200);not null"`
	Description       string    `gorm:"type:text"`
	Kind              Kind      `gorm:"type:varchar(20);not null"`
	Anonymous         bool      `gorm:"not null"`
	PreventDuplicates bool      `gorm:"not null"`
	NotifyOnCreate    bool      `gorm:"not null"`
	OpensAt           time.Time `gorm:"not null"`
	ClosesAt          time.Time `gorm:"not null"`
	CreatedBy         string    `gorm:"type:varchar(64)"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`

	// Relationships
	Options []Option `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE"`
}

// Option represents poll_options
type Option struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	PollID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_poll_options_position,priority:1"`
	Text     string    `gorm:"type:varchar(500);not null"`
	Position int       `gorm:"not null;uniqueIndex:idx_poll_options_position,priority:2"`
}

func (Poll) TableName() string {
	return "polls"
}

func (Option) TableName() string {
	return "poll_options"
}

// StatusAt derives the lifecycle state at now. Both bounds are inclusive for
// the active window.
func (p Poll) StatusAt(now time.Time) Status {
	switch {
	case now.Before(p.OpensAt):
		return StatusScheduled
	case now.After(p.ClosesAt):
		return StatusClosed
	default:
		return StatusActive
	}
}

// HasOption reports whether optionID is one of options.
func HasOption(options []Option, optionID uuid.UUID) (Option, bool) {
	for _, o := range options {
		if o.ID == optionID {
			return o, true
		}
	}
	return Option{}, false
}

// Tally is the vote count for one option.
type Tally struct {
	OptionID uuid.UUID `json:"option_id"`
	Text     string    `json:"text"`
	Position int       `json:"position"`
	Votes    int64     `json:"votes"`
}
