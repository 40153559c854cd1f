package hashchain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T, n int) []Link {
	t.Helper()
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	links := make([]Link, 0, n)
	prev := Genesis
	for i := 0; i < n; i++ {
		voter := fmt.Sprintf("voter-%d", i)
		link := Link{
			VoteID:          fmt.Sprintf("vote-%d", i),
			Sequence:        int64(i + 1),
			VoterID:         &voter,
			OptionID:        fmt.Sprintf("option-%d", i%2),
			SubmittedAt:     start.Add(time.Duration(i) * time.Second),
			PrevFingerprint: prev,
		}
		link.Fingerprint = Fingerprint(link.VoterID, link.OptionID, link.SubmittedAt, link.PrevFingerprint)
		prev = link.Fingerprint
		links = append(links, link)
	}
	return links
}

func TestAuditValidChain(t *testing.T) {
	report := Audit(buildChain(t, 5))

	assert.True(t, report.Valid)
	assert.Equal(t, 5, report.TotalVotes)
	assert.Empty(t, report.BrokenLinks)
}

func TestAuditEmptyChain(t *testing.T) {
	report := Audit(nil)

	assert.True(t, report.Valid)
	assert.Equal(t, 0, report.TotalVotes)
	assert.NotNil(t, report.BrokenLinks)
}

func TestAuditGenesisIsNotABreak(t *testing.T) {
	links := buildChain(t, 1)
	require.Equal(t, Genesis, links[0].PrevFingerprint)
	assert.True(t, Audit(links).Valid)
}

func TestAuditTamperedOption(t *testing.T) {
	links := buildChain(t, 5)
	links[2].OptionID = "option-forged"

	report := Audit(links)
	require.False(t, report.Valid)
	require.Len(t, report.BrokenLinks, 1)
	assert.Equal(t, HashMismatch, report.BrokenLinks[0].Kind)
	assert.Equal(t, 3, report.BrokenLinks[0].Position)
	assert.Equal(t, "vote-2", report.BrokenLinks[0].VoteID)
}

func TestAuditTamperedTimestamp(t *testing.T) {
	links := buildChain(t, 4)
	links[1].SubmittedAt = links[1].SubmittedAt.Add(-time.Hour)

	report := Audit(links)
	require.Len(t, report.BrokenLinks, 1)
	assert.Equal(t, HashMismatch, report.BrokenLinks[0].Kind)
	assert.Equal(t, 2, report.BrokenLinks[0].Position)
}

func TestAuditTamperedPrevFingerprint(t *testing.T) {
	links := buildChain(t, 4)
	links[2].PrevFingerprint = Genesis

	report := Audit(links)
	require.Len(t, report.BrokenLinks, 2)
	for _, b := range report.BrokenLinks {
		assert.Equal(t, 3, b.Position)
	}
	assert.Equal(t, HashMismatch, report.BrokenLinks[0].Kind)
	assert.Equal(t, ChainBreak, report.BrokenLinks[1].Kind)
	assert.Equal(t, links[1].Fingerprint, report.BrokenLinks[1].Expected)
}

func TestAuditTamperedFingerprint(t *testing.T) {
	links := buildChain(t, 4)
	links[1].Fingerprint = Fingerprint(nil, "other", time.Now(), Genesis)

	report := Audit(links)
	require.Len(t, report.BrokenLinks, 2)
	// the row itself no longer hashes, and its successor no longer links to it
	assert.Equal(t, HashMismatch, report.BrokenLinks[0].Kind)
	assert.Equal(t, 2, report.BrokenLinks[0].Position)
	assert.Equal(t, ChainBreak, report.BrokenLinks[1].Kind)
	assert.Equal(t, 3, report.BrokenLinks[1].Position)
}

func TestAuditDeletedVote(t *testing.T) {
	links := buildChain(t, 5)
	links = append(links[:2], links[3:]...)

	report := Audit(links)
	require.Len(t, report.BrokenLinks, 1)
	assert.Equal(t, ChainBreak, report.BrokenLinks[0].Kind)
	assert.Equal(t, int64(4), report.BrokenLinks[0].Sequence)
}

func TestAuditReportsEveryAnomaly(t *testing.T) {
	links := buildChain(t, 6)
	links[0].OptionID = "x"
	links[4].OptionID = "y"

	report := Audit(links)
	require.Len(t, report.BrokenLinks, 2)
	assert.Equal(t, 1, report.BrokenLinks[0].Position)
	assert.Equal(t, 5, report.BrokenLinks[1].Position)
}
