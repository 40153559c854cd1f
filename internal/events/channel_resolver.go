package events

import "strings"

const (
	ChannelPrefixPoll = "channel:poll:"
	ChannelSystem     = "channel:system:outbox"

	// PollChannelPattern matches every poll channel for PSUBSCRIBE.
	PollChannelPattern = ChannelPrefixPoll + "*"
)

// RouteChannel picks the Redis channel an envelope is published on.
func RouteChannel(env Envelope) string {
	switch env.AggregateType {
	case AggregatePoll:
		return PollChannel(env.AggregateID)
	default:
		return ChannelSystem
	}
}

func PollChannel(pollID string) string {
	return ChannelPrefixPoll + pollID
}

// PollIDFromChannel is the inverse of PollChannel.
func PollIDFromChannel(channel string) (string, bool) {
	id, ok := strings.CutPrefix(channel, ChannelPrefixPoll)
	return id, ok && id != ""
}
