package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	ctx := context.Background()
	assert.NoError(t, n.PublishUser(ctx, 1, Event{Type: EventUserFollowed}))
	assert.NoError(t, n.PublishBroadcast(ctx, Event{Type: EventPostCreated}))
	assert.NoError(t, n.StartPatternSubscriber(ctx, func(string, string) {
		t.Fatal("no messages expected")
	}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.PublishUser(ctx, 1, Event{Type: EventUserFollowed}))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		userID   uint
		expected string
	}{
		{1, "notifications:user:1"},
		{100, "notifications:user:100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, UserChannel(tt.userID))
		id, ok := ParseUserChannel(tt.expected)
		assert.True(t, ok)
		assert.Equal(t, tt.userID, id)
	}

	for _, bad := range []string{"notifications:user:", "notifications:user:x", "notifications:user:0", BroadcastChannel, "other:1"} {
		_, ok := ParseUserChannel(bad)
		assert.False(t, ok, bad)
	}
}

func TestNotifier_PublishAndSubscribe(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type received struct{ channel, payload string }
	var (
		mu   sync.Mutex
		msgs []received
	)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, payload string) {
		mu.Lock()
		defer mu.Unlock()
		msgs = append(msgs, received{channel, payload})
	}))

	require.NoError(t, n.PublishUser(ctx, 7, Event{Type: EventUserFollowed, Payload: map[string]string{"follower": "leo"}}))
	require.NoError(t, n.PublishBroadcast(ctx, Event{Type: EventPostCreated, Payload: map[string]uint{"post_id": 3}}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(msgs) == 2
	}, testEventuallyTimeout, testPollInterval)

	mu.Lock()
	defer mu.Unlock()
	byChannel := map[string]string{}
	for _, m := range msgs {
		byChannel[m.channel] = m.payload
	}

	var ev struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(byChannel["notifications:user:7"]), &ev))
	assert.Equal(t, EventUserFollowed, ev.Type)
	assert.Equal(t, "leo", ev.Payload["follower"])
	assert.Contains(t, byChannel[BroadcastChannel], `"type":"post_created"`)
}

func TestNotifier_SubscriberSurvivesPanics(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan string, 4)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(_ string, payload string) {
		calls <- payload
		panic("handler bug")
	}))

	require.NoError(t, n.PublishUser(ctx, 1, Event{Type: "first"}))
	require.NoError(t, n.PublishUser(ctx, 1, Event{Type: "second"}))

	for _, want := range []string{"first", "second"} {
		select {
		case got := <-calls:
			assert.Contains(t, got, want)
		case <-time.After(testEventuallyTimeout):
			t.Fatalf("did not receive %s", want)
		}
	}
}

func TestHub_RoutesMessages(t *testing.T) {
	hub := NewHub()

	alice, err := hub.Register(1, nil)
	require.NoError(t, err)
	bob, err := hub.Register(2, nil)
	require.NoError(t, err)

	hub.dispatch(UserChannel(1), "for alice")
	hub.dispatch(BroadcastChannel, "for all")
	hub.dispatch("notifications:user:bogus", "dropped")

	assert.Equal(t, "for alice", string(<-alice.Send))
	assert.Equal(t, "for all", string(<-alice.Send))
	assert.Equal(t, "for all", string(<-bob.Send))
	assert.Empty(t, alice.Send)
	assert.Empty(t, bob.Send)
}

func TestHub_RegisterLimitsAndUnregister(t *testing.T) {
	hub := NewHub()

	var clients []*Client
	for i := 0; i < maxConnsPerUser; i++ {
		c, err := hub.Register(5, nil)
		require.NoError(t, err)
		clients = append(clients, c)
	}
	_, err := hub.Register(5, nil)
	assert.ErrorIs(t, err, ErrConnectionLimit)
	assert.Equal(t, maxConnsPerUser, hub.Connections(5))

	hub.UnregisterClient(clients[0])
	hub.UnregisterClient(clients[0])
	assert.Equal(t, maxConnsPerUser-1, hub.Connections(5))

	_, ok := <-clients[0].Send
	assert.False(t, ok, "send channel closed on unregister")

	// Sending to an unregistered client must not panic.
	clients[0].TrySend([]byte("late"))

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.Connections(5))
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(9, nil)
	require.NoError(t, err)

	for i := 0; i < cap(c.Send)+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, cap(c.Send))
}

func TestHub_StartWiringDeliversToUser(t *testing.T) {
	rdb := newTestRedis(t)
	n := NewNotifier(rdb)
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, hub.StartWiring(ctx, n))
	client, err := hub.Register(42, nil)
	require.NoError(t, err)

	require.NoError(t, n.PublishUser(ctx, 42, Event{Type: EventCommentCreated}))

	select {
	case msg := <-client.Send:
		assert.Contains(t, string(msg), EventCommentCreated)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("event not delivered")
	}
}
