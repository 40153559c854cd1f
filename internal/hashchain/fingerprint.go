// Package hashchain holds the pure parts of the vote ledger: fingerprint
// computation, receipt derivation and chain replay. Nothing here performs I/O.
package hashchain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"time"
)

// Genesis is the prevFingerprint of the first vote in every poll.
const Genesis = "GENESIS"

// TimestampLayout is the canonical timestamp form fed into the hash.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const domainTag = "hoa-vote-ledger/v1"

// CanonicalTime truncates t to millisecond resolution in UTC. Votes are stored
// with this value so that recomputation always sees the hashed timestamp.
func CanonicalTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// FormatTimestamp renders t in the canonical hashed form.
func FormatTimestamp(t time.Time) string {
	return CanonicalTime(t).Format(TimestampLayout)
}

// Fingerprint computes the SHA-256 link for one vote. Every field is written
// with an 8-byte big-endian length prefix so no two field splits can produce
// the same input. An anonymous (nil) voter hashes as the empty string.
func Fingerprint(voterID *string, optionID string, ts time.Time, prevFingerprint string) string {
	voter := ""
	if voterID != nil {
		voter = *voterID
	}

	h := sha256.New()
	writeField(h, domainTag)
	writeField(h, voter)
	writeField(h, optionID)
	writeField(h, FormatTimestamp(ts))
	writeField(h, prevFingerprint)
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, value string) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(value)))
	h.Write(prefix[:])
	h.Write([]byte(value))
}
