package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/petasbytes/spec-planner/internal/agentsvc"
	"github.com/petasbytes/spec-planner/internal/logger"
	"github.com/petasbytes/spec-planner/internal/metrics"
	"github.com/petasbytes/spec-planner/internal/schedule"
	"github.com/petasbytes/spec-planner/internal/telemetry"
	"github.com/petasbytes/spec-planner/tools"
)

const cancelTimeout = 10 * time.Second

type Runner struct {
	svc         agentsvc.Service
	tools       []tools.ToolDefinition
	sched       schedule.Schedule
	out         io.Writer
	log         *slog.Logger
	metrics     *metrics.Recorder
	unknown     UnknownToolPolicy
	attachTools bool
}

func New(svc agentsvc.Service, toolDefs []tools.ToolDefinition, opts ...Option) *Runner {
	r := &Runner{
		svc:         svc,
		tools:       toolDefs,
		sched:       schedule.Schedule{Interval: schedule.DefaultInterval},
		out:         os.Stdout,
		attachTools: true,
	}
	for _, o := range opts {
		o(r)
	}
	if r.log == nil {
		r.log = logger.Named("runner")
	}
	return r
}

// Message is the opening user message for task.
func Message(task Task) string {
	return fmt.Sprintf("Spec Title: %s\n\nSpec Body: %s", task.Title, task.Body)
}

// Run creates a thread and a run for task and drives it to a terminal state.
// A nil error means the run reached a terminal status, which may still be a
// failure; use ExitCode to classify. When the schedule budget runs out or
// ctx is cancelled the run is cancelled on a best-effort basis and the
// schedule error is returned.
func (r *Runner) Run(ctx context.Context, task Task, agentID string) (Result, error) {
	var res Result

	agent, err := r.svc.GetAgent(ctx, agentID)
	if err != nil {
		return res, err
	}
	r.log.Debug("agent resolved", "agent_id", agent.ID, "name", agent.Name)

	fmt.Fprintf(r.out, "Starting run for Spec: %s\n", task.Title)

	thread, err := r.svc.CreateThread(ctx)
	if err != nil {
		return res, err
	}
	res.ThreadID = thread.ID
	if err := r.svc.CreateMessage(ctx, thread.ID, Message(task)); err != nil {
		return res, err
	}

	params := agentsvc.RunParams{AgentID: agentID}
	if r.attachTools {
		params.Tools = r.tools
	}
	run, err := r.svc.CreateRun(ctx, thread.ID, params)
	if err != nil {
		return res, err
	}
	res.RunID = run.ID
	res.Status = run.Status

	ctx = telemetry.WithRunID(ctx, run.ID)
	log := r.log.With("thread_id", thread.ID, "run_id", run.ID)
	log.Info("run created", "status", run.Status, "tools_attached", len(params.Tools))
	telemetry.Emit(telemetry.EventRunStarted, map[string]any{
		"run_id":    run.ID,
		"thread_id": thread.ID,
		"agent_id":  agentID,
		"tools":     len(params.Tools),
	})
	telemetry.EmitTaskFeatures(ctx, task.Title, task.Body)

	err = r.sched.Until(ctx, func(ctx context.Context, attempt int) (bool, error) {
		cur, err := r.svc.GetRun(ctx, thread.ID, run.ID)
		if err != nil {
			return false, err
		}
		res.Polls = attempt
		res.Status = cur.Status
		r.metrics.Poll()
		fmt.Fprintf(r.out, "Run Status: %s\n", cur.Status)
		telemetry.Emit(telemetry.EventRunStatus, map[string]any{
			"run_id":  run.ID,
			"attempt": attempt,
			"status":  string(cur.Status),
		})

		if cur.Status.Terminal() {
			res.LastError = cur.LastError
			return true, nil
		}
		if cur.Status != agentsvc.StatusRequiresAction {
			return false, nil
		}

		outputs, records := r.answer(ctx, cur.ToolCalls)
		res.Calls = append(res.Calls, records...)
		if len(outputs) == 0 {
			log.Warn("no tool outputs to submit", "pending_calls", len(cur.ToolCalls))
			return false, nil
		}
		if _, err := r.svc.SubmitToolOutputs(ctx, thread.ID, run.ID, outputs); err != nil {
			return false, err
		}
		log.Debug("tool outputs submitted", "count", len(outputs))
		return false, nil
	})
	if err != nil {
		if errors.Is(err, schedule.ErrBudgetExhausted) || ctx.Err() != nil {
			r.cancel(ctx, log, thread.ID, run.ID, &res)
		}
		r.finish(log, res, err)
		return res, err
	}

	switch {
	case res.Status == agentsvc.StatusCompleted:
		fmt.Fprintln(r.out, "Planning Complete.")
	case res.Status == agentsvc.StatusCancelled:
		fmt.Fprintln(r.out, "Run cancelled.")
	case res.Status.Failed():
		fmt.Fprintf(r.out, "Agent failed: %s\n", describeFailure(res))
	}
	r.finish(log, res, nil)
	return res, nil
}

// cancel asks the service to stop the run. The parent ctx may already be
// done, so the request runs on a detached context.
func (r *Runner) cancel(ctx context.Context, log *slog.Logger, threadID, runID string, res *Result) {
	cctx, stop := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer stop()
	run, err := r.svc.CancelRun(cctx, threadID, runID)
	if err != nil {
		log.Warn("cancel run failed", "err", err)
		return
	}
	res.Status = run.Status
	log.Info("run cancellation requested", "status", run.Status)
}

func (r *Runner) finish(log *slog.Logger, res Result, err error) {
	r.metrics.RunFinished(string(res.Status))
	fields := map[string]any{
		"run_id": res.RunID,
		"status": string(res.Status),
		"polls":  res.Polls,
		"calls":  len(res.Calls),
	}
	if res.LastError != nil {
		fields["error_code"] = res.LastError.Code
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	telemetry.Emit(telemetry.EventRunFinished, fields)
	log.Info("run finished", "status", res.Status, "polls", res.Polls, "calls", len(res.Calls), "err", err)
}

func describeFailure(res Result) string {
	if res.LastError == nil {
		return string(res.Status)
	}
	return res.LastError.Error()
}

// answer executes the batch in order and returns the outputs to submit.
func (r *Runner) answer(ctx context.Context, calls []agentsvc.ToolCall) ([]agentsvc.ToolOutput, []CallRecord) {
	outputs := make([]agentsvc.ToolOutput, 0, len(calls))
	records := make([]CallRecord, 0, len(calls))
	seen := make(map[string]bool, len(calls))
	for _, call := range calls {
		if seen[call.ID] {
			r.log.Warn("duplicate tool call id in batch", "call_id", call.ID)
			continue
		}
		seen[call.ID] = true

		rec := r.execTool(ctx, call)
		records = append(records, rec)
		if rec.Result != metrics.ResultIgnored {
			outputs = append(outputs, agentsvc.ToolOutput{CallID: call.ID, Output: rec.Output})
		}
	}
	return outputs, records
}

func (r *Runner) execTool(ctx context.Context, call agentsvc.ToolCall) CallRecord {
	runID, _ := telemetry.RunIDFromContext(ctx)
	input := json.RawMessage(call.Arguments)
	rec := CallRecord{CallID: call.ID, Tool: call.Name}

	// Helper to emit a tool_exec event
	emit := func(start time.Time, errClass string) {
		fields := map[string]any{
			"tool_name":   call.Name,
			"call_id":     call.ID,
			"duration_ms": time.Since(start).Milliseconds(),
			"input_size":  len(input),
			"output_size": len(rec.Output),
			"run_id":      runID,
			"error":       nil,
		}
		if errClass != "" {
			fields["error"] = errClass
		}
		telemetry.Emit(telemetry.EventToolExec, fields)
	}

	start := time.Now()
	def := tools.Lookup(r.tools, call.Name)
	if def == nil {
		if r.unknown == IgnoreUnknown {
			rec.Result = metrics.ResultIgnored
			r.log.Warn("ignoring call to unregistered tool; the run may stall", "tool", call.Name, "call_id", call.ID)
		} else {
			rec.Result = metrics.ResultUnsupported
			rec.Output = fmt.Sprintf("Error: unsupported tool %q", call.Name)
			r.log.Warn("rejecting call to unregistered tool", "tool", call.Name, "call_id", call.ID)
		}
		r.metrics.ToolCall(call.Name, rec.Result)
		emit(start, "tool not found")
		return rec
	}

	if def.Summarize != nil {
		rec.Title = def.Summarize(input)
	}
	if rec.Title != "" {
		fmt.Fprintf(r.out, "Agent executing tool: %s\n", rec.Title)
	}

	out, err := def.Function(ctx, input)
	if err != nil {
		rec.Result = metrics.ResultError
		rec.Output = "Error: " + err.Error()
		class := "tool error"
		if errors.Is(err, tools.ErrInvalidArguments) {
			class = "invalid arguments"
		}
		r.log.Warn("tool call failed", "tool", call.Name, "call_id", call.ID, "err", err)
		r.metrics.ToolCall(call.Name, rec.Result)
		// Raw payloads stay out of telemetry; the class is enough.
		emit(start, class)
		return rec
	}

	rec.Result = metrics.ResultSuccess
	rec.Output = out
	r.log.Info("tool call answered", "tool", call.Name, "call_id", call.ID, "output", out)
	r.metrics.ToolCall(call.Name, rec.Result)
	emit(start, "")
	return rec
}
