package core

import (
	"context"

	"encore.app/billing/ext_services"
	"encore.app/billing/models"
	"encore.dev/rlog"
)

func NewBillingActivities(publisher ext_services.EventPublisher) *BillingActivities {
	return &BillingActivities{
		publisher: publisher,
	}
}

type BillingActivities struct {
	publisher ext_services.EventPublisher
}

// PublishBillCreated publishes the event through the broker. Errors are retried by Temporal.
func (a *BillingActivities) PublishBillCreated(ctx context.Context, event models.BillCreatedEvent) error {
	logger := rlog.With("module", "billing_activities")
	logger.Info("Republishing bill created event", "bill_id", event.BillID)

	if err := a.publisher.PublishBillCreated(ctx, event); err != nil {
		logger.Warn("Republish attempt failed", "bill_id", event.BillID, "error", err)
		return err
	}

	logger.Info("Bill created event republished", "bill_id", event.BillID)
	return nil
}
