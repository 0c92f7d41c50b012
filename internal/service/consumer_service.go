package service

import (
	"context"
	"encoding/json"

	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventRelay forwards events outside the process, e.g. to NATS.
type EventRelay interface {
	Publish(ctx context.Context, event events.Event) error
}

// SessionNotifier delivers an event to everyone watching a session.
type SessionNotifier interface {
	NotifySession(sessionID string, event events.Event)
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	relay     EventRelay
	notifier  SessionNotifier
	logger    logger.ILogger
}

// NewConsumerService fans turn events out to the relay and the notifier.
// Either may be nil.
func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	relay EventRelay,
	notifier SessionNotifier,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		relay:     relay,
		notifier:  notifier,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var envelope events.Envelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		cs.logger.Error("CONSUMER", "Failed to unmarshal event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack() // never retry a payload we cannot read
		return
	}
	event := envelope.Event()

	if cs.relay != nil {
		// The bus redelivers a nacked message immediately, so a broker outage
		// would spin. Relay failures are logged and the event is dropped.
		if err := cs.relay.Publish(ctx, event); err != nil {
			cs.logger.Warn("CONSUMER", "Failed to relay event", map[string]interface{}{
				"event": event.EventType(),
				"error": err.Error(),
			})
		}
	}

	if sessionID, ok := events.SessionID(event); ok && cs.notifier != nil {
		cs.notifier.NotifySession(sessionID, event)
	}

	cs.logger.Debug("CONSUMER", "Event processed", map[string]interface{}{
		"event":      event.EventType(),
		"message_id": msg.UUID,
	})
	msg.Ack()
}
