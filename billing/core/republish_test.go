package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
)

func TestRepublishScheduler_ScheduleRepublish(t *testing.T) {
	t.Run("when_workflow_starts", func(t *testing.T) {
		t.Run("should_use_one_workflow_id_per_bill", func(t *testing.T) {
			temporalClient := mocks.NewClient(t)
			run := mocks.NewWorkflowRun(t)
			run.On("GetRunID").Return("run-1")
			temporalClient.On("ExecuteWorkflow", mock.Anything,
				mock.MatchedBy(func(opts client.StartWorkflowOptions) bool {
					return opts.ID == "bill-created-5" &&
						opts.TaskQueue == "billing-test" &&
						opts.WorkflowExecutionTimeout == time.Hour &&
						opts.WorkflowIDReusePolicy == enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE
				}),
				mock.Anything,
				RepublishInput{Event: testEvent()},
			).Return(run, nil).Once()

			err := NewRepublishScheduler(testCfg(), temporalClient).ScheduleRepublish(context.TODO(), testEvent())

			require.NoError(t, err)
		})
	})

	t.Run("when_workflow_already_ran_for_the_bill", func(t *testing.T) {
		t.Run("should_treat_it_as_scheduled", func(t *testing.T) {
			temporalClient := mocks.NewClient(t)
			temporalClient.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(nil, serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "", "")).Once()

			err := NewRepublishScheduler(testCfg(), temporalClient).ScheduleRepublish(context.TODO(), testEvent())

			assert.NoError(t, err)
		})
	})

	t.Run("when_temporal_is_unavailable", func(t *testing.T) {
		t.Run("should_return_error", func(t *testing.T) {
			temporalClient := mocks.NewClient(t)
			temporalClient.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(nil, errors.New("connection refused")).Once()

			err := NewRepublishScheduler(testCfg(), temporalClient).ScheduleRepublish(context.TODO(), testEvent())

			assert.ErrorContains(t, err, "failed to start republish workflow")
		})
	})
}
