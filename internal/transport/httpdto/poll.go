package httpdto

import (
	"time"

	"hoa-ledger/internal/domain/poll"
)

// CreatePollRequest is used for POST /polls
type CreatePollRequest struct {
	Title             string    `json:"title" binding:"required"`
	Description       string    `json:"description"`
	Kind              string    `json:"kind" binding:"required"`
	Anonymous         bool      `json:"anonymous"`
	PreventDuplicates bool      `json:"prevent_duplicates"`
	NotifyOnCreate    bool      `json:"notify_on_create"`
	OpensAt           time.Time `json:"opens_at" binding:"required"`
	ClosesAt          time.Time `json:"closes_at" binding:"required"`
	Options           []string  `json:"options" binding:"required,min=2"`
}

// UpdatePollRequest is used for PATCH /polls/:id
type UpdatePollRequest struct {
	Title             *string    `json:"title,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Kind              *string    `json:"kind,omitempty"`
	Anonymous         *bool      `json:"anonymous,omitempty"`
	PreventDuplicates *bool      `json:"prevent_duplicates,omitempty"`
	NotifyOnCreate    *bool      `json:"notify_on_create,omitempty"`
	OpensAt           *time.Time `json:"opens_at,omitempty"`
	ClosesAt          *time.Time `json:"closes_at,omitempty"`
}

// ListPollsRequest holds query parameters for listing polls
type ListPollsRequest struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

type OptionDTO struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// PollDTO represents a poll in API responses
type PollDTO struct {
	ID                string      `json:"id"`
	Title             string      `json:"title"`
	Description       string      `json:"description,omitempty"`
	Kind              string      `json:"kind"`
	Status            string      `json:"status"`
	Anonymous         bool        `json:"anonymous"`
	PreventDuplicates bool        `json:"prevent_duplicates"`
	NotifyOnCreate    bool        `json:"notify_on_create"`
	OpensAt           string      `json:"opens_at"`
	ClosesAt          string      `json:"closes_at"`
	CreatedBy         string      `json:"created_by,omitempty"`
	CreatedAt         string      `json:"created_at"`
	Options           []OptionDTO `json:"options"`
}

// ListPollsResponse is returned when listing polls
type ListPollsResponse struct {
	Polls []PollDTO `json:"polls"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

// FromPoll converts a poll; status is derived at now.
func FromPoll(p poll.Poll, now time.Time) PollDTO {
	options := make([]OptionDTO, 0, len(p.Options))
	for _, o := range p.Options {
		options = append(options, OptionDTO{ID: o.ID.String(), Text: o.Text, Position: o.Position})
	}
	return PollDTO{
		ID:                p.ID.String(),
		Title:             p.Title,
		Description:       p.Description,
		Kind:              string(p.Kind),
		Status:            string(p.StatusAt(now)),
		Anonymous:         p.Anonymous,
		PreventDuplicates: p.PreventDuplicates,
		NotifyOnCreate:    p.NotifyOnCreate,
		OpensAt:           p.OpensAt.UTC().Format(time.RFC3339),
		ClosesAt:          p.ClosesAt.UTC().Format(time.RFC3339),
		CreatedBy:         p.CreatedBy,
		CreatedAt:         p.CreatedAt.UTC().Format(time.RFC3339),
		Options:           options,
	}
}
