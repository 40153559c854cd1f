package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "hoa-ledger/internal/domain/outbox"
	"hoa-ledger/internal/events"
	"hoa-ledger/internal/metrics"
	"hoa-ledger/internal/repository"
	"hoa-ledger/pkg/database/dbtest"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakePublisher struct {
	mu       sync.Mutex
	fail     bool
	channels []string
	payloads [][]byte
}

func (f *fakePublisher) Publish(_ context.Context, channel string, payload []byte) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, errors.New("redis unavailable")
	}
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, payload)
	return 1, nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels)
}

func seedEvent(t *testing.T, repo repository.OutboxRepository, pollID string) *domain.OutboxEvent {
	t.Helper()
	e := &domain.OutboxEvent{
		EventType:     events.EventTypeVoteCast,
		AggregateType: events.AggregatePoll,
		AggregateID:   pollID,
		Payload:       []byte(`{"poll_id":"` + pollID + `","sequence":1}`),
	}
	require.NoError(t, repo.Create(context.Background(), nil, e))
	return e
}

func TestProcessBatchPublishesToPollChannel(t *testing.T) {
	db := dbtest.New(t)
	repo := repository.NewOutboxRepository(db)
	pub := &fakePublisher{}
	m := metrics.NewUnregistered()
	p := NewProcessor(repo, pub, m, nil, 10, time.Second, 3)

	seedEvent(t, repo, "poll-1")
	seedEvent(t, repo, "poll-2")

	assert.Equal(t, 2, p.ProcessBatch(context.Background()))
	assert.ElementsMatch(t, []string{"channel:poll:poll-1", "channel:poll:poll-2"}, pub.channels)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxPublished))

	env, err := events.DecodeEnvelope(pub.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, events.EventTypeVoteCast, env.EventType)

	// nothing left to do
	assert.Zero(t, p.ProcessBatch(context.Background()))
}

func TestProcessBatchRetriesThenFails(t *testing.T) {
	db := dbtest.New(t)
	repo := repository.NewOutboxRepository(db)
	pub := &fakePublisher{fail: true}
	m := metrics.NewUnregistered()
	p := NewProcessor(repo, pub, m, nil, 10, time.Second, 2)
	e := seedEvent(t, repo, "poll-1")
	ctx := context.Background()

	assert.Zero(t, p.ProcessBatch(ctx))
	assert.Zero(t, p.ProcessBatch(ctx))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxFailed))

	// retry budget used up: the next pass marks it failed
	assert.Zero(t, p.ProcessBatch(ctx))
	var stored domain.OutboxEvent
	require.NoError(t, db.First(&stored, "id = ?", e.ID).Error)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Equal(t, 2, stored.RetryCount)

	pub.fail = false
	assert.Zero(t, p.ProcessBatch(ctx), "failed events are not picked up again")
}

func TestRunnerStopsOnCancel(t *testing.T) {
	db := dbtest.New(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	repo := repository.NewOutboxRepository(db)
	pub := &fakePublisher{}
	seedEvent(t, repo, "poll-1")

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(NewProcessor(repo, pub, nil, nil, 10, 5*time.Millisecond, 3))
	r.Start(ctx)

	require.Eventually(t, func() bool { return pub.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	r.Wait()
}
