package ext_services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"encore.app/billing/models"
	"encore.dev/rlog"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// messageNamespace scopes message ids derived from event idempotency keys
var messageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:billing:events"))

//go:generate mockgen -package=mocks -destination=mocks/publisher_mock.go . EventPublisher
type EventPublisher interface {
	PublishBillCreated(ctx context.Context, event models.BillCreatedEvent) error
}

// MessageSender delivers a message to the configured queue. *Broker satisfies it.
type MessageSender interface {
	Publish(ctx context.Context, msg amqp.Publishing) error
}

type publisher struct {
	sender MessageSender
	now    func() time.Time
}

func NewBrokerPublisher(sender MessageSender) *publisher {
	log := rlog.With("module", "event_publisher")
	log.Info("event publisher initialized", "sender_available", sender != nil)

	return &publisher{sender: sender, now: time.Now}
}

// PublishBillCreated wraps the event in its envelope and sends it as a persistent JSON message.
// The message id is derived from the bill so republished copies can be deduplicated.
func (p *publisher) PublishBillCreated(ctx context.Context, event models.BillCreatedEvent) error {
	log := rlog.With("module", "event_publisher").
		With("event_name", models.BillCreatedEventName).
		With("bill_id", event.BillID)

	body, err := json.Marshal(event.Envelope())
	if err != nil {
		log.Error("failed to serialize event", "error", err)
		return fmt.Errorf("serialize %s: %w", models.BillCreatedEventName, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewSHA1(messageNamespace, []byte(event.IdempotencyKey())).String(),
		Type:         models.BillCreatedEventName,
		Timestamp:    p.now().UTC(),
		AppId:        event.Source,
		Body:         body,
	}

	if err := p.sender.Publish(ctx, msg); err != nil {
		return err
	}

	log.Info("event published", "message_id", msg.MessageId)
	return nil
}
