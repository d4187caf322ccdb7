package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"encore.app/billing/models"
	"encore.dev/rlog"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

//go:generate mockgen -package=mocks -destination=mocks/republish_mock.go . RepublishScheduler
type RepublishScheduler interface {
	ScheduleRepublish(ctx context.Context, event models.BillCreatedEvent) error
}

type republishScheduler struct {
	temporalClient client.Client
	cfg            *models.AppConfig
}

func NewRepublishScheduler(cfg *models.AppConfig, temporalClient client.Client) *republishScheduler {
	log := rlog.With("module", "billing_core")
	log.Info("republish scheduler initialized", "temporal_client_available", temporalClient != nil)

	return &republishScheduler{temporalClient: temporalClient, cfg: cfg}
}

// RepublishWorkflowID is unique per bill so a bill is never republished by two workflows
func RepublishWorkflowID(billID int64) string {
	return fmt.Sprintf("bill-created-%d", billID)
}

func (s *republishScheduler) ScheduleRepublish(ctx context.Context, event models.BillCreatedEvent) error {
	workflowID := RepublishWorkflowID(event.BillID)
	log := rlog.With("module", "billing_core").With("bill_id", event.BillID).With("workflow_id", workflowID)

	workflowOptions := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                s.cfg.Temporal.TaskQueue(),
		WorkflowExecutionTimeout: time.Duration(s.cfg.Temporal.RepublishExecutionTimeout()) * time.Second,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	run, err := s.temporalClient.ExecuteWorkflow(ctx, workflowOptions, (&BillWorkflows{}).RepublishBillCreated, RepublishInput{Event: event})
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			log.Info("republish already scheduled")
			return nil
		}
		log.Error("failed to start republish workflow", "error", err)
		return fmt.Errorf("failed to start republish workflow: %w", err)
	}

	log.Info("republish workflow started", "run_id", run.GetRunID())
	return nil
}
