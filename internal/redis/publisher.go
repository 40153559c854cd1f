package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publisher fans ledger events out over Redis pub/sub.
type Publisher struct {
	client redis.UniversalClient
}

func NewPublisher(client redis.UniversalClient) *Publisher {
	return &Publisher{client: client}
}

// Publish sends payload to channel and returns the number of receivers.
func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	return p.client.Publish(ctx, channel, payload).Result()
}
