package service

import (
	"context"

	"notification-hub-be/internal/pkg/logger"
	"notification-hub-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

const consumerModule = "ConsumerService"

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// EventRelay forwards a domain event to an external bus.
type EventRelay interface {
	Publish(ctx context.Context, event events.Event) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	relay      EventRelay
	logger     logger.ILogger
}

// NewConsumerService drains the domain event topic. relay may be nil, in
// which case events are only logged.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	relay EventRelay,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		relay:      relay,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
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
	event, err := events.Decode(msg.Payload)
	if err != nil {
		cs.logger.Error(consumerModule, "Failed to decode domain event", map[string]interface{}{"uuid": msg.UUID, "error": err})
		msg.Ack()
		return
	}

	if cs.relay == nil {
		cs.logger.Debug(consumerModule, "Domain event", map[string]interface{}{"type": event.Type, "id": event.ID})
		msg.Ack()
		return
	}

	// gochannel redelivers a nacked message immediately, so a down bus is
	// logged and skipped rather than retried here.
	if err := cs.relay.Publish(ctx, event); err != nil {
		cs.logger.Warn(consumerModule, "Failed to relay domain event", map[string]interface{}{"type": event.Type, "id": event.ID, "error": err})
		msg.Ack()
		return
	}

	cs.logger.Debug(consumerModule, "Relayed domain event", map[string]interface{}{"type": event.Type, "id": event.ID})
	msg.Ack()
}
