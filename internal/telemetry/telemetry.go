// Package telemetry appends structured run events to a local JSONL file when
// AGT_OBSERVE_JSON=1. Events never carry raw task text or tool arguments.
package telemetry

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"
)

// Event names.
const (
	EventRunStarted   = "run_started"
	EventRunStatus    = "run_status"
	EventToolExec     = "tool_exec"
	EventRunFinished  = "run_finished"
	EventTaskFeatures = "task_features"
)

// Emit writes a single JSON line to <ArtifactsDir>/events.jsonl when
// observation is enabled. It augments fields with RFC3339Nano time and the
// event name. Failures are reported on stderr and never returned.
func Emit(name string, fields map[string]any) {
	if !ObserveEnabled() {
		return
	}

	// Make a shallow copy so callers' maps aren't mutated.
	m := make(map[string]any, len(fields)+2)
	maps.Copy(m, fields)
	m["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	m["event"] = name

	b, err := json.Marshal(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: marshal: %v\n", err)
		return
	}

	dir := ArtifactsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: mkdir %s: %v\n", dir, err)
		return
	}

	path := filepath.Join(dir, "events.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: open %s: %v\n", path, err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(b, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: write %s: %v\n", path, err)
		return
	}
}
