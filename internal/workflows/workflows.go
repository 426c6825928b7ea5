package workflows

import (
	"fmt"
	"time"

	"shipdocs/internal/activities"
	"shipdocs/internal/documents"
	"shipdocs/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetGenerateProgress = "GetGenerateProgress"

// GenerateWorkflowID is fixed per PO so a second request for the same PO
// conflicts with one still running.
func GenerateWorkflowID(poID int) string {
	return fmt.Sprintf("generate-po-%d", poID)
}

// GenerateShippingDocumentsWorkflow prepares the BOL and Packing Slip data
// for one PO, renders both documents and marks the PO generated. Steps run
// one after another and are not retried.
func GenerateShippingDocumentsWorkflow(ctx workflow.Context, input GenerateInput) (GenerateOutput, error) {
	progress := GenerateProgress{
		POID:        input.POID,
		CurrentStep: "init",
		Status:      "processing",
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetGenerateProgress, func() (GenerateProgress, error) {
		return progress, nil
	}); err != nil {
		return GenerateOutput{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	step := func(name string, run func() error) error {
		progress.CurrentStep = name
		progress.Steps[name] = "processing"
		if err := run(); err != nil {
			progress.Steps[name] = "failed"
			progress.Status = "failed"
			progress.FailReason = err.Error()
			logger.Error("generation step failed", "po_id", input.POID, "step", name, "error", err)
			return err
		}
		progress.Steps[name] = "done"
		return nil
	}

	var prepared documents.PrepareOutput
	if err := step("prepare_data", func() error {
		return workflow.ExecuteActivity(ctx, "PrepareShippingDataActivity", documents.PrepareInput{
			POID:            input.POID,
			Addresses:       input.Addresses,
			BOLNumber:       input.BOLNumber,
			BOLData:         input.BOLData,
			PackingSlipData: input.PackingSlipData,
		}).Get(ctx, &prepared)
	}); err != nil {
		return GenerateOutput{}, err
	}

	out := GenerateOutput{PODocumentID: prepared.PODocumentID}
	render := func(t models.DocumentType, data []byte, dst *documents.RenderOutput) error {
		return workflow.ExecuteActivity(ctx, "RenderDocumentActivity", documents.RenderInput{
			PODocumentID:   prepared.PODocumentID,
			PODocumentName: prepared.PODocumentName,
			AccountID:      prepared.AccountID,
			DocumentType:   t,
			Data:           data,
			UseSchema:      input.UseSchema,
		}).Get(ctx, dst)
	}
	if err := step("render_bol", func() error {
		return render(models.DocumentTypeBOL, prepared.BOLData, &out.BOL)
	}); err != nil {
		return GenerateOutput{}, err
	}
	if err := step("render_packing_slip", func() error {
		return render(models.DocumentTypePackingSlip, prepared.PackingSlipData, &out.PackingSlip)
	}); err != nil {
		return GenerateOutput{}, err
	}
	if err := step("mark_generated", func() error {
		return workflow.ExecuteActivity(ctx, "MarkPOGeneratedActivity", activities.MarkPOGeneratedInput{PODocumentID: prepared.PODocumentID}).Get(ctx, nil)
	}); err != nil {
		return GenerateOutput{}, err
	}
	progress.Status = "completed"
	return out, nil
}
