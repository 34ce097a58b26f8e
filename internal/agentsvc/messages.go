package agentsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/petasbytes/spec-planner/internal/logger"
	"github.com/petasbytes/spec-planner/internal/windowing"
	"github.com/petasbytes/spec-planner/tools"
)

const defaultMaxTokens = 2048

// Messages emulates threads and runs on top of the Anthropic Messages API.
// Conversation state lives in memory for the lifetime of the value. A run
// advances one model call per GetRun while it is queued or in progress.
type Messages struct {
	client       *anthropic.Client
	model        anthropic.Model
	instructions string
	maxTokens    int64
	inputBudget  int

	mu      sync.Mutex
	threads map[string]*localThread
}

type localThread struct {
	conv []anthropic.MessageParam
	runs map[string]*localRun
}

type localRun struct {
	run   Run
	tools []tools.ToolDefinition
}

var _ Service = (*Messages)(nil)

type MessagesOption func(*Messages)

// WithMaxTokens caps each model response. Defaults to 2048.
func WithMaxTokens(n int64) MessagesOption {
	return func(m *Messages) {
		if n > 0 {
			m.maxTokens = n
		}
	}
}

// WithInputBudget trims the conversation sent on each step to roughly n
// tokens (see windowing.Trim). Zero sends everything.
func WithInputBudget(n int) MessagesOption {
	return func(m *Messages) { m.inputBudget = n }
}

func NewMessages(client *anthropic.Client, model anthropic.Model, instructions string, opts ...MessagesOption) *Messages {
	m := &Messages{
		client:       client,
		model:        model,
		instructions: instructions,
		maxTokens:    defaultMaxTokens,
		threads:      map[string]*localThread{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// GetAgent has no remote agent registry to consult; the id only labels runs.
func (m *Messages) GetAgent(_ context.Context, agentID string) (Agent, error) {
	if strings.TrimSpace(agentID) == "" {
		return Agent{}, errors.New("get agent: empty agent id")
	}
	return Agent{ID: agentID, Name: string(m.model)}, nil
}

func (m *Messages) CreateThread(_ context.Context) (Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "thread_" + uuid.NewString()
	m.threads[id] = &localThread{runs: map[string]*localRun{}}
	return Thread{ID: id}, nil
}

func (m *Messages) CreateMessage(_ context.Context, threadID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	th, ok := m.threads[threadID]
	if !ok {
		return fmt.Errorf("create message: %w: %s", ErrUnknownRun, threadID)
	}
	if th.activeRun() != nil {
		return fmt.Errorf("create message: thread %s has an active run", threadID)
	}
	th.conv = append(th.conv, anthropic.NewUserMessage(anthropic.NewTextBlock(content)))
	return nil
}

func (m *Messages) CreateRun(_ context.Context, threadID string, params RunParams) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	th, ok := m.threads[threadID]
	if !ok {
		return Run{}, fmt.Errorf("create run: %w: %s", ErrUnknownRun, threadID)
	}
	if th.activeRun() != nil {
		return Run{}, fmt.Errorf("create run: thread %s already has an active run", threadID)
	}
	if len(th.conv) == 0 {
		return Run{}, fmt.Errorf("create run: thread %s has no messages", threadID)
	}
	lr := &localRun{
		run:   Run{ID: "run_" + uuid.NewString(), ThreadID: threadID, Status: StatusQueued},
		tools: params.Tools,
	}
	th.runs[lr.run.ID] = lr
	return lr.run, nil
}

func (m *Messages) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	th, lr, err := m.lookup(threadID, runID)
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	switch lr.run.Status {
	case StatusQueued, StatusInProgress:
		m.step(ctx, th, lr)
	case StatusCancelling:
		lr.run.Status = StatusCancelled
	}
	return lr.run, nil
}

func (m *Messages) SubmitToolOutputs(_ context.Context, threadID, runID string, outputs []ToolOutput) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	th, lr, err := m.lookup(threadID, runID)
	if err != nil {
		return Run{}, fmt.Errorf("submit tool outputs: %w", err)
	}
	if lr.run.Status != StatusRequiresAction {
		return Run{}, fmt.Errorf("submit tool outputs: run %s is %s, not %s", runID, lr.run.Status, StatusRequiresAction)
	}

	pending := make(map[string]bool, len(lr.run.ToolCalls))
	for _, tc := range lr.run.ToolCalls {
		pending[tc.ID] = true
	}
	byID := make(map[string]string, len(outputs))
	for _, o := range outputs {
		if !pending[o.CallID] {
			return Run{}, fmt.Errorf("submit tool outputs: unexpected tool call id %q", o.CallID)
		}
		if _, dup := byID[o.CallID]; dup {
			return Run{}, fmt.Errorf("submit tool outputs: duplicate tool call id %q", o.CallID)
		}
		byID[o.CallID] = o.Output
	}
	if len(byID) != len(pending) {
		return Run{}, fmt.Errorf("submit tool outputs: got %d output(s) for %d pending call(s)", len(byID), len(pending))
	}

	// Results go back in the order the model asked for them.
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(lr.run.ToolCalls))
	for _, tc := range lr.run.ToolCalls {
		out := byID[tc.ID]
		blocks = append(blocks, anthropic.NewToolResultBlock(tc.ID, out, strings.HasPrefix(out, "Error:")))
	}
	th.conv = append(th.conv, anthropic.NewUserMessage(blocks...))
	lr.run.ToolCalls = nil
	lr.run.Status = StatusInProgress
	return lr.run, nil
}

func (m *Messages) CancelRun(_ context.Context, threadID, runID string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, lr, err := m.lookup(threadID, runID)
	if err != nil {
		return Run{}, fmt.Errorf("cancel run: %w", err)
	}
	if lr.run.Status.Terminal() {
		return Run{}, fmt.Errorf("cancel run: run %s already %s", runID, lr.run.Status)
	}
	lr.run.Status = StatusCancelling
	lr.run.ToolCalls = nil
	return lr.run, nil
}

func (m *Messages) lookup(threadID, runID string) (*localThread, *localRun, error) {
	th, ok := m.threads[threadID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: thread %s", ErrUnknownRun, threadID)
	}
	lr, ok := th.runs[runID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: run %s", ErrUnknownRun, runID)
	}
	return th, lr, nil
}

func (th *localThread) activeRun() *localRun {
	for _, lr := range th.runs {
		if !lr.run.Status.Terminal() {
			return lr
		}
	}
	return nil
}

// step performs one model call and moves the run to its next state.
// Called with m.mu held.
func (m *Messages) step(ctx context.Context, th *localThread, lr *localRun) {
	sent, stats := windowing.Trim(th.conv, m.inputBudget, windowing.HeuristicCounter{})
	if stats.Dropped > 0 || stats.OverBudget {
		logger.Named("agentsvc").Debug("conversation trimmed",
			"run_id", lr.run.ID, "dropped", stats.Dropped, "estimate", stats.Total,
			"budget", stats.Budget, "over_budget", stats.OverBudget)
	}
	params := anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		Messages:  sent,
	}
	if m.instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: m.instructions}}
	}
	if len(lr.tools) > 0 {
		params.Tools = anthropicTools(lr.tools)
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		lr.run.Status = StatusFailed
		lr.run.LastError = &RunError{Code: "server_error", Message: err.Error()}
		return
	}
	th.conv = append(th.conv, msg.ToParam())

	var calls []ToolCall
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			calls = append(calls, ToolCall{ID: v.ID, Name: v.Name, Arguments: string(v.Input)})
		}
	}
	switch {
	case len(calls) > 0:
		lr.run.Status = StatusRequiresAction
		lr.run.ToolCalls = calls
	case msg.StopReason == anthropic.StopReasonMaxTokens:
		lr.run.Status = StatusIncomplete
		lr.run.LastError = &RunError{Code: "max_tokens", Message: "response truncated at the token limit"}
	default:
		lr.run.Status = StatusCompleted
	}
}

func anthropicTools(defs []tools.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		schema := anthropic.ToolInputSchemaParam{Properties: d.Parameters["properties"]}
		if req, ok := d.Parameters["required"].([]string); ok {
			schema.Required = req
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: schema,
		}})
	}
	return out
}
