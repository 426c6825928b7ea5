package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.PrepareShippingDataActivity)
	w.RegisterActivity(a.RenderDocumentActivity)
	w.RegisterActivity(a.MarkPOGeneratedActivity)
}
