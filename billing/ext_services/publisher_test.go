package ext_services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"encore.app/billing/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	msgs []amqp.Publishing
	err  error
}

func (s *recordingSender) Publish(ctx context.Context, msg amqp.Publishing) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func testEvent() models.BillCreatedEvent {
	return models.BillCreatedEvent{
		BillID:        12,
		BillNumber:    "B-12",
		IssuedAt:      "2024-05-01",
		Subtotal:      "20.00",
		Tax:           "2.00",
		Total:         "22.00",
		Currency:      "USD",
		OccurredAtUTC: time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
		Source:        "go-api",
	}
}

func TestPublisher_PublishBillCreated(t *testing.T) {
	t.Run("when_sender_accepts_message", func(t *testing.T) {
		sender := &recordingSender{}
		p := NewBrokerPublisher(sender)
		p.now = func() time.Time { return time.Date(2024, 5, 1, 8, 31, 0, 0, time.UTC) }

		require.NoError(t, p.PublishBillCreated(context.TODO(), testEvent()))
		require.NoError(t, p.PublishBillCreated(context.TODO(), testEvent()))
		require.Len(t, sender.msgs, 2)
		msg := sender.msgs[0]

		t.Run("should_send_persistent_json", func(t *testing.T) {
			assert.Equal(t, "application/json", msg.ContentType)
			assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
			assert.Equal(t, "bill.created", msg.Type)
			assert.Equal(t, "go-api", msg.AppId)
		})

		t.Run("should_wrap_event_in_envelope", func(t *testing.T) {
			var envelope struct {
				EventName     string                  `json:"eventName"`
				OccurredAtUTC time.Time               `json:"occurredAtUtc"`
				Payload       models.BillCreatedEvent `json:"payload"`
			}
			require.NoError(t, json.Unmarshal(msg.Body, &envelope))
			assert.Equal(t, "bill.created", envelope.EventName)
			assert.True(t, testEvent().OccurredAtUTC.Equal(envelope.OccurredAtUTC))
			assert.Equal(t, int64(12), envelope.Payload.BillID)
			assert.Equal(t, "22.00", envelope.Payload.Total.String())
		})

		t.Run("should_derive_stable_message_id", func(t *testing.T) {
			assert.NotEmpty(t, msg.MessageId)
			assert.Equal(t, msg.MessageId, sender.msgs[1].MessageId)
		})
	})

	t.Run("when_sender_fails", func(t *testing.T) {
		t.Run("should_return_error", func(t *testing.T) {
			failure := &models.BrokerError{Op: "publish", Err: errors.New("down")}
			p := NewBrokerPublisher(&recordingSender{err: failure})

			err := p.PublishBillCreated(context.TODO(), testEvent())

			assert.ErrorIs(t, err, failure)
		})
	})
}
