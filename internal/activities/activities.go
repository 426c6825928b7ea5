package activities

import (
	"context"
	"errors"

	"shipdocs/internal/documents"
	"shipdocs/internal/util"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// Pipeline is the part of *documents.Service the generation workflow drives.
type Pipeline interface {
	Prepare(ctx context.Context, in documents.PrepareInput) (documents.PrepareOutput, error)
	Render(ctx context.Context, in documents.RenderInput) (documents.RenderOutput, error)
	MarkGenerated(ctx context.Context, poID int) error
}

type Activities struct {
	pipeline Pipeline
}

func New(p Pipeline) *Activities {
	return &Activities{pipeline: p}
}

func (a *Activities) PrepareShippingDataActivity(ctx context.Context, in documents.PrepareInput) (documents.PrepareOutput, error) {
	out, err := a.pipeline.Prepare(ctx, in)
	if err != nil {
		return documents.PrepareOutput{}, applicationError(err)
	}
	return out, nil
}

func (a *Activities) RenderDocumentActivity(ctx context.Context, in documents.RenderInput) (documents.RenderOutput, error) {
	activity.GetLogger(ctx).Info("rendering document", "po_document_id", in.PODocumentID, "document_type", string(in.DocumentType))
	out, err := a.pipeline.Render(ctx, in)
	if err != nil {
		return documents.RenderOutput{}, applicationError(err)
	}
	return out, nil
}

func (a *Activities) MarkPOGeneratedActivity(ctx context.Context, in MarkPOGeneratedInput) error {
	if err := a.pipeline.MarkGenerated(ctx, in.PODocumentID); err != nil {
		return applicationError(err)
	}
	return nil
}

// ErrorType names the failure class carried across the workflow boundary,
// where wrapped sentinel errors no longer survive.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, util.ErrNotFound):
		return ErrTypeNotFound
	case errors.Is(err, util.ErrNoPurchaseOrder):
		return ErrTypeNoPurchaseOrder
	case errors.Is(err, util.ErrNoExtractableText):
		return ErrTypeNoExtractableText
	case errors.Is(err, util.ErrMalformedLLMJSON):
		return ErrTypeMalformedLLMJSON
	case errors.Is(err, util.ErrCircuitOpen), errors.Is(err, util.ErrUpstream):
		return ErrTypeUpstream
	default:
		return ErrTypeInternal
	}
}

func applicationError(err error) error {
	return temporal.NewNonRetryableApplicationError(err.Error(), ErrorType(err), err)
}
