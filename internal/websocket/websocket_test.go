package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hoa-ledger/internal/domain/poll"
	"hoa-ledger/internal/events"
	"hoa-ledger/internal/hashchain"
	"hoa-ledger/internal/metrics"
	"hoa-ledger/internal/transport/httpdto"
	ledger_errors "hoa-ledger/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

func voteCastEnvelope(t *testing.T, pollID string, seq int64, fingerprint string) []byte {
	t.Helper()
	payload, err := json.Marshal(events.VoteCastEvent{
		PollID:      pollID,
		Sequence:    seq,
		Fingerprint: fingerprint,
		ReceiptCode: hashchain.DeriveReceipt(fingerprint),
		SubmittedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	env, err := json.Marshal(events.Envelope{
		EventType:     events.EventTypeVoteCast,
		AggregateType: events.AggregatePoll,
		AggregateID:   pollID,
		Payload:       payload,
	})
	require.NoError(t, err)
	return env
}

func startHub(t *testing.T, m *metrics.Ledger) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(m)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	return hub, func() {
		cancel()
		<-done
	}
}

func TestHubRoutesByChannel(t *testing.T) {
	m := metrics.NewUnregistered()
	hub, stop := startHub(t, m)
	defer stop()

	a := &Client{ID: "a", Send: make(chan []byte, 4), channels: map[string]bool{}}
	b := &Client{ID: "b", Send: make(chan []byte, 4), channels: map[string]bool{}}
	hub.Register(a)
	hub.Register(b)
	hub.Subscribe(a, "channel:poll:1")
	hub.Subscribe(b, "channel:poll:2")

	require.Eventually(t, func() bool {
		return hub.GetChannelSubscriberCount("channel:poll:1") == 1 &&
			hub.GetChannelSubscriberCount("channel:poll:2") == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, hub.GetClientCount())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.LiveClients))

	hub.Broadcast("channel:poll:1", []byte("head"))
	assert.Equal(t, []byte("head"), <-a.Send)
	assert.Empty(t, b.Send)

	hub.Unregister(a)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)
	_, open := <-a.Send
	assert.False(t, open)
	assert.Zero(t, hub.GetChannelSubscriberCount("channel:poll:1"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LiveClients))
}

func TestHubSubscribeAfterLeaveIsIgnored(t *testing.T) {
	hub, stop := startHub(t, nil)
	defer stop()

	c := &Client{ID: "late", Send: make(chan []byte, 1), channels: map[string]bool{}}
	hub.Register(c)
	hub.Unregister(c)
	hub.Subscribe(c, "channel:poll:1")

	require.Eventually(t, func() bool { return len(hub.requests) == 0 && hub.GetClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, hub.GetChannelSubscriberCount("channel:poll:1"))
}

func TestHubRequestsAfterStopDoNotBlock(t *testing.T) {
	hub, stop := startHub(t, nil)
	stop()

	c := &Client{ID: "straggler", Send: make(chan []byte, 1), channels: map[string]bool{}}
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		// more than the queue holds
		for i := 0; i < cap(hub.requests)+10; i++ {
			hub.Register(c)
			hub.Subscribe(c, "channel:poll:1")
			hub.Unsubscribe(c, "channel:poll:1")
			hub.Unregister(c)
		}
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("hub requests blocked after Run returned")
	}
	assert.Zero(t, hub.GetClientCount())
}

type replaySubscriber struct {
	channel  string
	messages [][]byte
}

func (r replaySubscriber) Subscribe(ctx context.Context, patterns []string, handler func(string, []byte)) error {
	for _, m := range r.messages {
		handler(r.channel, m)
	}
	return nil
}

func TestRedisBridgeForwardsChainHeadOnly(t *testing.T) {
	hub, stop := startHub(t, nil)
	defer stop()

	pollID := uuid.NewString()
	channel := events.PollChannel(pollID)
	c := &Client{ID: "viewer", Send: make(chan []byte, 4), channels: map[string]bool{}}
	hub.Register(c)
	hub.Subscribe(c, channel)
	require.Eventually(t, func() bool { return hub.GetChannelSubscriberCount(channel) == 1 }, time.Second, 5*time.Millisecond)

	voter := "unit-4"
	fingerprint := hashchain.Fingerprint(&voter, uuid.NewString(), time.Now(), hashchain.Genesis)

	other, err := json.Marshal(events.Envelope{EventType: events.EventTypePollUpdated, AggregateID: pollID})
	require.NoError(t, err)
	bridge := NewRedisBridge(replaySubscriber{
		channel:  channel,
		messages: [][]byte{[]byte("garbage"), other, voteCastEnvelope(t, pollID, 7, fingerprint)},
	}, hub, nil)
	require.NoError(t, bridge.Run(context.Background()))

	require.Len(t, c.Send, 1)
	frame := <-c.Send

	// no window of the fingerprint may appear, in either case, since any
	// 16 leading chars would be the voter's receipt code
	lower := strings.ToLower(string(frame))
	for i := 0; i+hashchain.ReceiptLength <= len(fingerprint); i++ {
		window := fingerprint[i : i+hashchain.ReceiptLength]
		require.NotContains(t, lower, strings.ToLower(window), "fingerprint window at %d leaked", i)
	}
	assert.NotContains(t, lower, "fingerprint")

	var head httpdto.ChainHeadDTO
	require.NoError(t, json.Unmarshal(frame, &head))
	assert.Equal(t, pollID, head.PollID)
	assert.Equal(t, int64(7), head.Sequence)
	assert.Equal(t, "2026-05-01T10:00:00.000Z", head.SubmittedAt)
}

type fakePolls map[uuid.UUID]poll.Poll

func (f fakePolls) Get(_ context.Context, id uuid.UUID) (poll.Poll, error) {
	p, ok := f[id]
	if !ok {
		return poll.Poll{}, ledger_errors.ErrPollNotFound
	}
	return p, nil
}

func TestLiveHandlerStreamsPollChannel(t *testing.T) {
	hub, stop := startHub(t, nil)
	defer stop()

	pollID := uuid.New()
	router := gin.New()
	router.GET("/polls/:id/live", NewHandler(fakePolls{pollID: {ID: pollID}}, hub, nil).Live)
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := gorilla.DefaultDialer.Dial(wsURL+"/polls/"+uuid.NewString()+"/live", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
	_ = resp.Body.Close()

	conn, _, err := gorilla.DefaultDialer.Dial(wsURL+"/polls/"+pollID.String()+"/live", nil)
	require.NoError(t, err)
	defer conn.Close()

	channel := events.PollChannel(pollID.String())
	require.Eventually(t, func() bool { return hub.GetChannelSubscriberCount(channel) == 1 }, time.Second, 5*time.Millisecond)
	hub.Broadcast(channel, []byte(`{"type":"vote.cast"}`))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"vote.cast"}`, string(msg))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
