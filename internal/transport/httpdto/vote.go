package httpdto

import (
	"time"

	"hoa-ledger/internal/domain/vote"
	"hoa-ledger/internal/hashchain"
)

// CastVoteRequest is used for POST /polls/:id/votes
type CastVoteRequest struct {
	OptionID string `json:"option_id" binding:"required"`
}

// CastVoteResponse is the voter's receipt for an accepted vote
type CastVoteResponse struct {
	PollID          string `json:"poll_id"`
	Sequence        int64  `json:"sequence"`
	ReceiptCode     string `json:"receipt_code"`
	Fingerprint     string `json:"fingerprint"`
	PrevFingerprint string `json:"prev_fingerprint"`
	SubmittedAt     string `json:"submitted_at"`
}

// ReceiptDTO is returned by GET /receipts/:code. It has no voter field.
type ReceiptDTO struct {
	ReceiptCode     string `json:"receipt_code"`
	PollID          string `json:"poll_id"`
	PollTitle       string `json:"poll_title"`
	PollKind        string `json:"poll_kind"`
	OptionID        string `json:"option_id"`
	OptionText      string `json:"option_text"`
	Sequence        int64  `json:"sequence"`
	SubmittedAt     string `json:"submitted_at"`
	Fingerprint     string `json:"fingerprint"`
	PrevFingerprint string `json:"prev_fingerprint"`
}

func FromSummary(s vote.Summary) ReceiptDTO {
	return ReceiptDTO{
		ReceiptCode:     s.ReceiptCode,
		PollID:          s.PollID.String(),
		PollTitle:       s.PollTitle,
		PollKind:        string(s.PollKind),
		OptionID:        s.OptionID.String(),
		OptionText:      s.OptionText,
		Sequence:        s.Sequence,
		SubmittedAt:     hashchain.FormatTimestamp(s.SubmittedAt),
		Fingerprint:     s.Fingerprint,
		PrevFingerprint: s.PrevFingerprint,
	}
}

// IntegrityReportDTO is returned by GET /polls/:id/integrity
type IntegrityReportDTO struct {
	PollID          string                 `json:"poll_id"`
	PollTitle       string                 `json:"poll_title"`
	PollKind        string                 `json:"poll_kind"`
	CheckedAt       time.Time              `json:"checked_at"`
	Valid           bool                   `json:"valid"`
	TotalVotes      int                    `json:"total_votes"`
	BrokenLinks     []hashchain.BrokenLink `json:"broken_links"`
	ArchiveLocation string                 `json:"archive_location,omitempty"`
}

// ChainHeadDTO is pushed to live feed subscribers after each append. It has
// no fingerprint: the receipt code is a prefix of it.
type ChainHeadDTO struct {
	Type        string `json:"type"`
	PollID      string `json:"poll_id"`
	Sequence    int64  `json:"sequence"`
	SubmittedAt string `json:"submitted_at"`
}
