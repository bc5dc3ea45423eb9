package service

import (
	"context"
	"fmt"

	"notification-hub-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// IPublisherService puts domain events on the in-process topic.
type IPublisherService interface {
	Publish(ctx context.Context, event events.Event) error
}

type publisherService struct {
	topicName string
	pubSub    message.Publisher
}

func NewPublisherService(topicName string, pubSub message.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
	}
}

func (p *publisherService) Publish(ctx context.Context, event events.Event) error {
	payload, err := events.Encode(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.EventType(), err)
	}

	msg := message.NewMessage(event.EventID(), payload)
	msg.SetContext(ctx)
	return p.pubSub.Publish(p.topicName, msg)
}
