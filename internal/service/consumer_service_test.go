package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRelay struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recordingRelay) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type recordingNotifier struct {
	mu       sync.Mutex
	sessions []string
}

func (n *recordingNotifier) NotifySession(sessionID string, event events.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sessions = append(n.sessions, sessionID)
}

func (n *recordingNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sessions...)
}

func TestConsumerService_FansOutTurnEvents(t *testing.T) {
	tests := []struct {
		name     string
		relayErr error
	}{
		{name: "relay ok"},
		{name: "relay down", relayErr: errors.New("nats: no servers available")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
			defer pubSub.Close()

			relay := &recordingRelay{err: tt.relayErr}
			notifier := &recordingNotifier{}
			consumer := NewConsumerService(pubSub, TurnEventsTopic, relay, notifier, logger.NewNopLogger())
			require.NoError(t, consumer.Consume(ctx))

			publisher := NewPublisherService(pubSub, TurnEventsTopic)
			at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			require.NoError(t, publisher.Publish(ctx, events.NewTurnCommitted("s1", "t1", 1, 2, false, at)))
			require.NoError(t, publisher.Publish(ctx, events.NewTurnCommitted("s2", "t2", 1, 0, false, at)))

			assert.Eventually(t, func() bool { return relay.count() == 2 }, time.Second, 10*time.Millisecond)
			assert.Eventually(t, func() bool { return len(notifier.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
			assert.ElementsMatch(t, []string{"s1", "s2"}, notifier.snapshot())

			relay.mu.Lock()
			defer relay.mu.Unlock()
			for _, e := range relay.events {
				assert.Equal(t, events.TypeTurnCommitted, e.EventType())
			}
		})
	}
}
