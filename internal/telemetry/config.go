package telemetry

import (
	"os"
	"path/filepath"
)

var observeEnabled bool

func init() {
	// Read once at process start. Mid-run environment changes have no effect
	// except the explicit override in ObserveEnabled.
	observeEnabled = os.Getenv("AGT_OBSERVE_JSON") == "1"
}

// ObserveEnabled reports whether JSONL emission is on.
func ObserveEnabled() bool {
	// Preserve startup-evaluated default, but allow tests to enable mid-run via env override.
	if os.Getenv("AGT_OBSERVE_JSON") == "1" {
		return true
	}
	return observeEnabled
}

// ArtifactsDir is where events.jsonl is written: AGT_ARTIFACTS_DIR, or .agent
// in the working directory.
func ArtifactsDir() string {
	if d := os.Getenv("AGT_ARTIFACTS_DIR"); d != "" {
		return filepath.Clean(d)
	}
	return ".agent"
}
