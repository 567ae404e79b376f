package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"aig-pipeline-be/internal/pkg/mailer"
	"aig-pipeline-be/pkg/events"
	pipelinenats "aig-pipeline-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the in-process run-event bus. Waiting-feedback
// events trigger an email nudge; terminal events are forwarded to NATS for
// external subscribers. Both sinks are optional.
type consumerService struct {
	pubSub        *gochannel.GoChannel
	topicName     string
	emailService  mailer.IEmailService
	natsPublisher *pipelinenats.Publisher
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	emailService mailer.IEmailService,
	natsPublisher *pipelinenats.Publisher,
) IConsumerService {
	return &consumerService{
		pubSub:        pubSub,
		topicName:     topicName,
		emailService:  emailService,
		natsPublisher: natsPublisher,
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
	var envelope eventEnvelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		log.Printf("[ERROR] Failed to unmarshal event: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	event := events.BaseEvent{
		Type:       envelope.Type,
		Data:       envelope.Data,
		OccurredAt: time.Now(),
	}
	if t, err := time.Parse(time.RFC3339, envelope.OccurredAt); err == nil {
		event.OccurredAt = t
	}

	switch envelope.Type {
	case events.RunWaitingFeedbackEvent:
		cs.notifyWaitingFeedback(envelope.Data)
	case events.RunDoneEvent, events.RunFailedEvent, events.RunCancelledEvent:
		cs.forwardToNATS(ctx, event)
	}

	msg.Ack()
}

func (cs *consumerService) notifyWaitingFeedback(data map[string]interface{}) {
	if cs.emailService == nil {
		return
	}
	email := stringField(data, "user_email")
	if email == "" {
		return
	}
	runID := stringField(data, "run_id")
	construct := stringField(data, "construct_name")
	revision := intField(data, "revision")

	if err := cs.emailService.SendFeedbackRequest(email, runID, construct, revision); err != nil {
		log.Printf("[ERROR] Failed to send feedback request mail for run %s: %v", runID, err)
	}
}

func (cs *consumerService) forwardToNATS(ctx context.Context, event events.Event) {
	if cs.natsPublisher == nil {
		return
	}
	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := cs.natsPublisher.Publish(publishCtx, event); err != nil {
		log.Printf("[ERROR] Failed to forward %s to NATS: %v", event.EventType(), err)
	}
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func intField(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
