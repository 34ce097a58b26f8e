package telemetry

import (
	"context"

	"github.com/petasbytes/spec-planner/internal/metrics"
)

// EmitTaskFeatures records size features of the task text, never the text.
func EmitTaskFeatures(ctx context.Context, title, body string) {
	if !ObserveEnabled() {
		return
	}
	runID, _ := RunIDFromContext(ctx)
	Emit(EventTaskFeatures, map[string]any{
		"run_id":           runID,
		"features_version": "1",
		"title":            metrics.CountFeatures(title).Fields(),
		"body":             metrics.CountFeatures(body).Fields(),
	})
}
