package websocket

import (
	"context"
	"encoding/json"

	"hoa-ledger/internal/events"
	"hoa-ledger/internal/hashchain"
	"hoa-ledger/internal/transport/httpdto"
	"hoa-ledger/pkg/logger"

	"go.uber.org/zap"
)

// Subscriber is the pattern subscription the bridge listens on.
type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}

// RedisBridge turns vote.cast envelopes from Redis into chain-head frames for
// the viewers of each poll.
type RedisBridge struct {
	subscriber Subscriber
	hub        *Hub
	log        *logger.Logger
}

func NewRedisBridge(subscriber Subscriber, hub *Hub, log *logger.Logger) *RedisBridge {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisBridge{subscriber: subscriber, hub: hub, log: log}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, []string{events.PollChannelPattern}, b.forward)
}

func (b *RedisBridge) forward(channel string, payload []byte) {
	env, err := events.DecodeEnvelope(payload)
	if err != nil {
		b.log.Logger.Warn("dropping undecodable envelope", zap.String("channel", channel), zap.Error(err))
		return
	}
	if env.EventType != events.EventTypeVoteCast {
		return
	}

	var cast events.VoteCastEvent
	if err := json.Unmarshal(env.Payload, &cast); err != nil {
		b.log.Logger.Warn("dropping malformed vote event", zap.String("channel", channel), zap.Error(err))
		return
	}

	// the fingerprint stays off the feed since the receipt code is derived from it
	frame, err := json.Marshal(httpdto.ChainHeadDTO{
		Type:        env.EventType,
		PollID:      cast.PollID,
		Sequence:    cast.Sequence,
		SubmittedAt: hashchain.FormatTimestamp(cast.SubmittedAt),
	})
	if err != nil {
		return
	}
	b.hub.Broadcast(channel, frame)
}
