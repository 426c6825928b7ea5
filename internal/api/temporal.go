package api

import (
	"context"
	"errors"
	"fmt"

	"shipdocs/internal/workflows"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
)

// TemporalGenerator starts GenerateShippingDocumentsWorkflow and blocks on
// its result, so the HTTP caller sees a synchronous request.
type TemporalGenerator struct {
	Client    tclient.Client
	TaskQueue string
}

func (g TemporalGenerator) Generate(ctx context.Context, in workflows.GenerateInput) (workflows.GenerateOutput, error) {
	wfID := workflows.GenerateWorkflowID(in.POID)
	we, err := g.Client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       wfID,
		TaskQueue:                                g.TaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.GenerateShippingDocumentsWorkflow, in)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return workflows.GenerateOutput{}, fmt.Errorf("%w: %s", ErrGenerationRunning, wfID)
		}
		return workflows.GenerateOutput{}, fmt.Errorf("start %s: %w", wfID, err)
	}
	var out workflows.GenerateOutput
	if err := we.Get(ctx, &out); err != nil {
		return workflows.GenerateOutput{}, err
	}
	return out, nil
}
