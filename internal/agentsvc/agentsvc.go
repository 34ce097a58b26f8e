// Package agentsvc is the boundary to the hosted agent service: threads,
// messages, runs and tool-output submission.
//
// Two backends implement Service:
//   - Assistants: the Assistants-style REST API (Azure AI Agent Service,
//     Azure OpenAI, OpenAI) through openai-go.
//   - Messages: an in-process emulation of threads and runs on top of the
//     Anthropic Messages API.
package agentsvc

import (
	"context"
	"errors"

	"github.com/petasbytes/spec-planner/tools"
)

// ErrUnknownRun is returned for thread or run ids the backend does not know.
var ErrUnknownRun = errors.New("agentsvc: unknown thread or run")

type Status string

const (
	StatusQueued         Status = "queued"
	StatusInProgress     Status = "in_progress"
	StatusRequiresAction Status = "requires_action"
	StatusCancelling     Status = "cancelling"
	StatusCancelled      Status = "cancelled"
	StatusFailed         Status = "failed"
	StatusCompleted      Status = "completed"
	StatusIncomplete     Status = "incomplete"
	StatusExpired        Status = "expired"
)

// Terminal reports whether no further transitions will happen.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusFailed, StatusCompleted, StatusIncomplete, StatusExpired:
		return true
	}
	return false
}

// Failed reports whether s is a terminal state that did not succeed and was
// not requested by the caller.
func (s Status) Failed() bool {
	switch s {
	case StatusFailed, StatusIncomplete, StatusExpired:
		return true
	}
	return false
}

type Agent struct {
	ID   string
	Name string
}

type Thread struct {
	ID string
}

type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RunError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

// ToolCall is a function call the agent is waiting on. Arguments is the raw
// JSON text as sent by the service.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type ToolOutput struct {
	CallID string
	Output string
}

// Run is a snapshot of a run. ToolCalls is only populated while Status is
// requires_action; LastError only once the run failed.
type Run struct {
	ID        string
	ThreadID  string
	Status    Status
	ToolCalls []ToolCall
	LastError *RunError
}

type RunParams struct {
	AgentID string
	// Tools, when non-empty, are sent with the run so the agent can call
	// them even if they are not part of its stored definition.
	Tools []tools.ToolDefinition
}

type Service interface {
	GetAgent(ctx context.Context, agentID string) (Agent, error)
	CreateThread(ctx context.Context) (Thread, error)
	CreateMessage(ctx context.Context, threadID, content string) error
	CreateRun(ctx context.Context, threadID string, params RunParams) (Run, error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error)
	CancelRun(ctx context.Context, threadID, runID string) (Run, error)
}
