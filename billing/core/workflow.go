package core

import (
	"time"

	"encore.app/billing/models"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// RepublishInput is the input of the republish workflow
type RepublishInput struct {
	Event models.BillCreatedEvent `json:"event"`
}

type BillWorkflows struct {
	cfg *models.AppConfig
}

func NewBillWorkflows(cfg *models.AppConfig) *BillWorkflows {
	return &BillWorkflows{cfg: cfg}
}

// RepublishBillCreated delivers a bill.created event whose synchronous publish failed.
// Retries are driven by the activity retry policy.
func (w *BillWorkflows) RepublishBillCreated(ctx workflow.Context, input RepublishInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting republish workflow", "bill_id", input.Event.BillID)

	activityCtx := workflow.WithActivityOptions(ctx, getDefaultActivityOptions(w.cfg))
	if err := workflow.ExecuteActivity(
		activityCtx, (&BillingActivities{}).PublishBillCreated, input.Event,
	).Get(ctx, nil); err != nil {
		logger.Error("Republish exhausted retries", "bill_id", input.Event.BillID, "error", err)
		return err
	}

	logger.Info("Republish workflow completed", "bill_id", input.Event.BillID)
	return nil
}

// getDefaultActivityOptions returns activity options based on configuration
func getDefaultActivityOptions(cfg *models.AppConfig) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: time.Duration(cfg.Temporal.ActivityStartToCloseTimeout()) * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Duration(cfg.Temporal.ActivityRetryPolicy.InitialInterval()) * time.Second,
			BackoffCoefficient: cfg.Temporal.ActivityRetryPolicy.BackoffCoefficient(),
			MaximumInterval:    time.Duration(cfg.Temporal.ActivityRetryPolicy.MaximumInterval()) * time.Second,
			MaximumAttempts:    int32(cfg.Temporal.ActivityRetryPolicy.MaximumAttempts()),
		},
	}
}
