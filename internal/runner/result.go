package runner

import (
	"github.com/petasbytes/spec-planner/internal/agentsvc"
)

type Task struct {
	Title string
	Body  string
}

// CallRecord is one tool call as it was handled.
type CallRecord struct {
	CallID string
	Tool   string
	// Title is the task title when the arguments decoded, else empty.
	Title string
	// Output is what was submitted; empty when the call was ignored.
	Output string
	// Result is one of the metrics.Result* values.
	Result string
}

type Result struct {
	ThreadID  string
	RunID     string
	Status    agentsvc.Status
	LastError *agentsvc.RunError
	Calls     []CallRecord
	Polls     int
}

// ExitCode maps a run outcome to a process exit status: 0 when the run
// completed or was cancelled, 1 for everything else.
func ExitCode(res Result, err error) int {
	if err != nil {
		return 1
	}
	switch res.Status {
	case agentsvc.StatusCompleted, agentsvc.StatusCancelled:
		return 0
	}
	return 1
}
