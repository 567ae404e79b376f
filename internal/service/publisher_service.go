package service

import (
	"encoding/json"

	"aig-pipeline-be/internal/pkg/logger"
	"aig-pipeline-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const publisherLogModule = "event_publisher"

type IEventPublisher interface {
	Publish(event events.Event)
}

// eventEnvelope is the wire form carried on the in-process bus.
type eventEnvelope struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt string                 `json:"occurred_at"`
}

type eventPublisher struct {
	pubSub    *gochannel.GoChannel
	topicName string
	log       logger.ILogger
}

func NewEventPublisher(pubSub *gochannel.GoChannel, topicName string, log logger.ILogger) IEventPublisher {
	return &eventPublisher{
		pubSub:    pubSub,
		topicName: topicName,
		log:       log,
	}
}

// Publish puts a run lifecycle event on the in-process bus. Failures are
// logged and swallowed; the bus is observability plumbing, not run state.
func (p *eventPublisher) Publish(event events.Event) {
	payload, err := json.Marshal(eventEnvelope{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp().Format("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		p.log.Warn(publisherLogModule, "Failed to marshal event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.pubSub.Publish(p.topicName, msg); err != nil {
		p.log.Warn(publisherLogModule, "Failed to publish event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
	}
}
