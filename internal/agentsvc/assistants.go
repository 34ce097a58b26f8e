package agentsvc

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/petasbytes/spec-planner/tools"
)

// Assistants implements Service over the Assistants REST API.
type Assistants struct {
	client openai.Client
}

var _ Service = (*Assistants)(nil)

func NewAssistants(client openai.Client) *Assistants {
	return &Assistants{client: client}
}

func (a *Assistants) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	asst, err := a.client.Beta.Assistants.Get(ctx, agentID)
	if err != nil {
		return Agent{}, fmt.Errorf("get agent %s: %w", agentID, err)
	}
	return Agent{ID: asst.ID, Name: asst.Name}, nil
}

func (a *Assistants) CreateThread(ctx context.Context) (Thread, error) {
	th, err := a.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return Thread{}, fmt.Errorf("create thread: %w", err)
	}
	return Thread{ID: th.ID}, nil
}

func (a *Assistants) CreateMessage(ctx context.Context, threadID, content string) error {
	_, err := a.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role:    openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{OfString: openai.String(content)},
	})
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (a *Assistants) CreateRun(ctx context.Context, threadID string, params RunParams) (Run, error) {
	body := openai.BetaThreadRunNewParams{AssistantID: params.AgentID}
	if len(params.Tools) > 0 {
		body.Tools = functionTools(params.Tools)
	}
	run, err := a.client.Beta.Threads.Runs.New(ctx, threadID, body)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return fromOpenAIRun(run), nil
}

func (a *Assistants) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := a.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return fromOpenAIRun(run), nil
}

func (a *Assistants) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (Run, error) {
	body := openai.BetaThreadRunSubmitToolOutputsParams{
		ToolOutputs: make([]openai.BetaThreadRunSubmitToolOutputsParamsToolOutput, 0, len(outputs)),
	}
	for _, o := range outputs {
		body.ToolOutputs = append(body.ToolOutputs, openai.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: openai.String(o.CallID),
			Output:     openai.String(o.Output),
		})
	}
	run, err := a.client.Beta.Threads.Runs.SubmitToolOutputs(ctx, threadID, runID, body)
	if err != nil {
		return Run{}, fmt.Errorf("submit tool outputs: %w", err)
	}
	return fromOpenAIRun(run), nil
}

func (a *Assistants) CancelRun(ctx context.Context, threadID, runID string) (Run, error) {
	run, err := a.client.Beta.Threads.Runs.Cancel(ctx, threadID, runID)
	if err != nil {
		return Run{}, fmt.Errorf("cancel run %s: %w", runID, err)
	}
	return fromOpenAIRun(run), nil
}

func functionTools(defs []tools.ToolDefinition) []openai.AssistantToolUnionParam {
	out := make([]openai.AssistantToolUnionParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.AssistantToolUnionParam{OfFunction: &openai.FunctionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        d.Name,
				Description: openai.String(d.Description),
				Parameters:  shared.FunctionParameters(d.Parameters),
			},
		}})
	}
	return out
}

func fromOpenAIRun(r *openai.Run) Run {
	out := Run{
		ID:       r.ID,
		ThreadID: r.ThreadID,
		Status:   Status(r.Status),
	}
	if out.Status == StatusRequiresAction {
		for _, tc := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	if r.LastError.Code != "" || r.LastError.Message != "" {
		out.LastError = &RunError{Code: r.LastError.Code, Message: r.LastError.Message}
	}
	return out
}
