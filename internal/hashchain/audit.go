package hashchain

import "time"

// BreakKind classifies a validator finding.
type BreakKind string

const (
	// HashMismatch: the stored fingerprint differs from the one recomputed
	// from the vote's own fields.
	HashMismatch BreakKind = "hash-mismatch"
	// ChainBreak: the stored prevFingerprint differs from the predecessor's
	// stored fingerprint (or Genesis for the first vote).
	ChainBreak BreakKind = "chain-break"
)

// Link is one persisted vote as seen by the auditor.
type Link struct {
	VoteID          string
	Sequence        int64
	VoterID         *string
	OptionID        string
	SubmittedAt     time.Time
	PrevFingerprint string
	Fingerprint     string
}

// BrokenLink describes a single anomaly. Position is 1-based in append order.
type BrokenLink struct {
	Position int       `json:"position"`
	Sequence int64     `json:"sequence"`
	VoteID   string    `json:"vote_id"`
	Kind     BreakKind `json:"kind"`
	Expected string    `json:"expected"`
	Actual   string    `json:"actual"`
}

// Report is the outcome of replaying one poll's chain.
type Report struct {
	Valid       bool         `json:"valid"`
	TotalVotes  int          `json:"total_votes"`
	BrokenLinks []BrokenLink `json:"broken_links"`
}

// Audit replays links, which must already be in append order, and records
// every anomaly without stopping at the first one.
func Audit(links []Link) Report {
	report := Report{
		TotalVotes:  len(links),
		BrokenLinks: []BrokenLink{},
	}

	expectedPrev := Genesis
	for i, link := range links {
		position := i + 1

		recomputed := Fingerprint(link.VoterID, link.OptionID, link.SubmittedAt, link.PrevFingerprint)
		if recomputed != link.Fingerprint {
			report.BrokenLinks = append(report.BrokenLinks, BrokenLink{
				Position: position,
				Sequence: link.Sequence,
				VoteID:   link.VoteID,
				Kind:     HashMismatch,
				Expected: recomputed,
				Actual:   link.Fingerprint,
			})
		}

		if link.PrevFingerprint != expectedPrev {
			report.BrokenLinks = append(report.BrokenLinks, BrokenLink{
				Position: position,
				Sequence: link.Sequence,
				VoteID:   link.VoteID,
				Kind:     ChainBreak,
				Expected: expectedPrev,
				Actual:   link.PrevFingerprint,
			})
		}

		// compare against what is stored, not what was recomputed, so one
		// tampered row is not blamed on its successor twice
		expectedPrev = link.Fingerprint
	}

	report.Valid = len(report.BrokenLinks) == 0
	return report
}
