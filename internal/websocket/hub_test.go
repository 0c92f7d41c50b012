package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_NotifySessionReachesOnlyItsWatchers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, logger.NewNopLogger())
	go hub.Run(ctx)

	tabA := &Client{Hub: hub, SessionID: "s1", Send: make(chan []byte, 4)}
	tabB := &Client{Hub: hub, SessionID: "s1", Send: make(chan []byte, 4)}
	other := &Client{Hub: hub, SessionID: "s2", Send: make(chan []byte, 4)}
	for _, c := range []*Client{tabA, tabB, other} {
		hub.register <- c
	}
	require.Eventually(t, func() bool { return hub.Watchers("s1") == 2 }, time.Second, 5*time.Millisecond)

	hub.NotifySession("s1", events.NewTurnCommitted("s1", "t1", 3, 0, false, time.Now()))

	for _, c := range []*Client{tabA, tabB} {
		select {
		case raw := <-c.Send:
			var frame struct {
				Type  string          `json:"type"`
				Event events.Envelope `json:"event"`
			}
			require.NoError(t, json.Unmarshal(raw, &frame))
			assert.Equal(t, dto.FrameEvent, frame.Type)
			assert.Equal(t, events.TypeTurnCommitted, frame.Event.Type)
			assert.Equal(t, "t1", frame.Event.Data["turn_id"])
		case <-time.After(time.Second):
			t.Fatal("watcher did not receive the event")
		}
	}
	assert.Len(t, other.Send, 0)

	hub.unregister <- tabA
	require.Eventually(t, func() bool { return hub.Watchers("s1") == 1 }, time.Second, 5*time.Millisecond)
	_, open := <-tabA.Send
	assert.False(t, open)
}

func TestHub_FullBufferDropsWithoutClosing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, logger.NewNopLogger())
	go hub.Run(ctx)

	slow := &Client{Hub: hub, SessionID: "s1", Send: make(chan []byte, 1)}
	hub.register <- slow
	require.Eventually(t, func() bool { return hub.Watchers("s1") == 1 }, time.Second, 5*time.Millisecond)

	hub.NotifySession("s1", events.NewTurnCommitted("s1", "t1", 1, 0, false, time.Now()))
	hub.NotifySession("s1", events.NewTurnCommitted("s1", "t2", 2, 0, false, time.Now()))

	assert.Len(t, slow.Send, 1)
	assert.Equal(t, 1, hub.Watchers("s1"))
}

func newClusterHub(t *testing.T, mr *miniredis.Miniredis) *Hub {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewHub(rdb, logger.NewNopLogger())
}

func TestHub_RedisFanOutDeliversOncePerWatcher(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := newClusterHub(t, mr)
	remote := newClusterHub(t, mr)
	go local.Run(ctx)
	go remote.Run(ctx)
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(clusterChannel)[clusterChannel] == 2
	}, time.Second, 5*time.Millisecond)

	here := &Client{Hub: local, SessionID: "s1", Send: make(chan []byte, 4)}
	there := &Client{Hub: remote, SessionID: "s1", Send: make(chan []byte, 4)}
	local.register <- here
	remote.register <- there
	require.Eventually(t, func() bool {
		return local.Watchers("s1") == 1 && remote.Watchers("s1") == 1
	}, time.Second, 5*time.Millisecond)

	local.NotifySession("s1", events.NewTurnCommitted("s1", "t1", 1, 0, false, time.Now()))

	require.Eventually(t, func() bool { return len(there.Send) == 1 }, time.Second, 5*time.Millisecond)
	// Give our own published copy time to come back through Redis.
	time.Sleep(100 * time.Millisecond)

	assert.Len(t, here.Send, 1)
	assert.Len(t, there.Send, 1)

	var frame struct {
		Type  string          `json:"type"`
		Event events.Envelope `json:"event"`
	}
	require.NoError(t, json.Unmarshal(<-there.Send, &frame))
	assert.Equal(t, dto.FrameEvent, frame.Type)
	assert.Equal(t, "t1", frame.Event.Data["turn_id"])
}
