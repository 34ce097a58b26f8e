package runner_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff/v5"

	"github.com/petasbytes/spec-planner/internal/agentsvc"
	"github.com/petasbytes/spec-planner/internal/schedule"
)

// fakeService replays scripted GetRun snapshots; the last one repeats.
type fakeService struct {
	mu sync.Mutex

	script       []agentsvc.Run
	polls        int
	agentErr     error
	getErr       error
	submitErr    error
	cancelStatus agentsvc.Status
	cancelErr    error

	messages        []string
	runParams       []agentsvc.RunParams
	submits         [][]agentsvc.ToolOutput
	cancels         int
	cancelErrAtCall error
}

func newFakeService(script ...agentsvc.Run) *fakeService {
	return &fakeService{script: script, cancelStatus: agentsvc.StatusCancelling}
}

func (f *fakeService) GetAgent(_ context.Context, id string) (agentsvc.Agent, error) {
	if f.agentErr != nil {
		return agentsvc.Agent{}, f.agentErr
	}
	return agentsvc.Agent{ID: id, Name: "planner"}, nil
}

func (f *fakeService) CreateThread(context.Context) (agentsvc.Thread, error) {
	return agentsvc.Thread{ID: "thread_1"}, nil
}

func (f *fakeService) CreateMessage(_ context.Context, _ string, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, content)
	return nil
}

func (f *fakeService) CreateRun(_ context.Context, threadID string, p agentsvc.RunParams) (agentsvc.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runParams = append(f.runParams, p)
	return agentsvc.Run{ID: "run_1", ThreadID: threadID, Status: agentsvc.StatusQueued}, nil
}

func (f *fakeService) GetRun(_ context.Context, threadID, runID string) (agentsvc.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return agentsvc.Run{}, f.getErr
	}
	if len(f.script) == 0 {
		return agentsvc.Run{}, errors.New("empty script")
	}
	i := min(f.polls, len(f.script)-1)
	f.polls++
	r := f.script[i]
	r.ID, r.ThreadID = runID, threadID
	return r, nil
}

func (f *fakeService) SubmitToolOutputs(_ context.Context, threadID, runID string, outputs []agentsvc.ToolOutput) (agentsvc.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return agentsvc.Run{}, f.submitErr
	}
	f.submits = append(f.submits, outputs)
	return agentsvc.Run{ID: runID, ThreadID: threadID, Status: agentsvc.StatusQueued}, nil
}

func (f *fakeService) CancelRun(ctx context.Context, threadID, runID string) (agentsvc.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	f.cancelErrAtCall = ctx.Err()
	if f.cancelErr != nil {
		return agentsvc.Run{}, f.cancelErr
	}
	return agentsvc.Run{ID: runID, ThreadID: threadID, Status: f.cancelStatus}, nil
}

// fakePoster stands in for the webhook; calls listed in fail return a
// transport error.
type fakePoster struct {
	mu       sync.Mutex
	code     int
	fail     map[int]error
	payloads []any
}

func (p *fakePoster) Post(_ context.Context, payload any) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	if err := p.fail[len(p.payloads)]; err != nil {
		return 0, err
	}
	if p.code == 0 {
		return 200, nil
	}
	return p.code, nil
}

func (p *fakePoster) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func instant(maxAttempts int) schedule.Schedule {
	return schedule.Schedule{MaxAttempts: maxAttempts, BackOff: &backoff.ZeroBackOff{}}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func status(s agentsvc.Status) agentsvc.Run { return agentsvc.Run{Status: s} }

func requiresAction(calls ...agentsvc.ToolCall) agentsvc.Run {
	return agentsvc.Run{Status: agentsvc.StatusRequiresAction, ToolCalls: calls}
}

func taskCall(id, title string) agentsvc.ToolCall {
	return agentsvc.ToolCall{
		ID:        id,
		Name:      "create_github_task",
		Arguments: `{"title":"` + title + `","body":"details","labels":["planning"]}`,
	}
}
