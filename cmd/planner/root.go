package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petasbytes/spec-planner/internal/config"
	"github.com/petasbytes/spec-planner/internal/logger"
	"github.com/petasbytes/spec-planner/internal/metrics"
	"github.com/petasbytes/spec-planner/internal/runner"
	"github.com/petasbytes/spec-planner/internal/schedule"
	"github.com/petasbytes/spec-planner/internal/webhook"
	"github.com/petasbytes/spec-planner/memory"
	"github.com/petasbytes/spec-planner/tools"
)

type rootOptions struct {
	ConfigPath   string
	Title        string
	Body         string
	AgentID      string
	WebhookURL   string
	Provider     string
	PollInterval time.Duration
	MaxPolls     int
	Timeout      time.Duration
	UnknownTools string
	LogLevel     string
	LogFormat    string
	MetricsFile  string
	Transcript   string
}

// planner holds state shared between the command and its caller.
type planner struct {
	options  rootOptions
	lookup   config.LookupFunc
	dotEnv   []string
	exitCode int
}

func newPlanner() *planner {
	return &planner{lookup: os.LookupEnv, dotEnv: []string{".env"}}
}

func execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := newPlanner()
	if err := newRootCmd(p).ExecuteContext(ctx); err != nil {
		return 1
	}
	return p.exitCode
}

func newRootCmd(p *planner) *cobra.Command {
	o := &p.options
	cmd := &cobra.Command{
		Use:   "planner",
		Short: "Break a spec into tasks with a hosted agent",
		Long: `planner sends a spec title and body to a hosted agent, polls the run and
forwards every create_github_task call to the task webhook.

Settings come from a YAML file, .env, the environment and flags, in that
order of precedence (flags win).`,
		Example: `  # Typical CI usage, everything from the environment
  ISSUE_TITLE="Add login" ISSUE_BODY="..." planner

  # Bounded polling with a config file
  planner --config planner.yaml --max-polls 150 --timeout 10m`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(p.dotEnv...); err != nil {
				return err
			}
			cfg, err := p.loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}
			p.exitCode = p.run(cmd, cfg)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.ConfigPath, "config", "c", "", "path to a YAML config file")
	f.StringVar(&o.Title, "title", "", "spec title (overrides ISSUE_TITLE)")
	f.StringVar(&o.Body, "body", "", "spec body (overrides ISSUE_BODY)")
	f.StringVar(&o.AgentID, "agent-id", "", "agent to run (overrides AGENT_ID)")
	f.StringVar(&o.WebhookURL, "webhook-url", "", "task webhook (overrides LOGIC_APP_URL)")
	f.StringVar(&o.Provider, "provider", "", "agent backend: azure-project, azure-openai, openai or anthropic")
	f.DurationVar(&o.PollInterval, "poll-interval", 0, "time between run status polls")
	f.IntVar(&o.MaxPolls, "max-polls", 0, "give up after this many polls (0 = unbounded)")
	f.DurationVar(&o.Timeout, "timeout", 0, "give up after this long (0 = unbounded)")
	f.StringVar(&o.UnknownTools, "unknown-tools", "", "calls to unregistered tools: reject or ignore")
	f.StringVar(&o.LogLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&o.LogFormat, "log-format", "", "text or json")
	f.StringVar(&o.MetricsFile, "metrics-file", "", "write prometheus textfile metrics here")
	f.StringVar(&o.Transcript, "transcript", "", "write a JSON run transcript here")

	return cmd
}

// loadConfig layers defaults, the YAML file, the environment and the flags
// that were set on cmd, then validates the result.
func (p *planner) loadConfig(cmd *cobra.Command) (config.Config, error) {
	o := p.options
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(p.lookup); err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	str := func(dst *string, name, v string) {
		if changed(name) {
			*dst = v
		}
	}
	str(&cfg.Task.Title, "title", o.Title)
	str(&cfg.Task.Body, "body", o.Body)
	str(&cfg.Agent.AgentID, "agent-id", o.AgentID)
	str(&cfg.Webhook.URL, "webhook-url", o.WebhookURL)
	str(&cfg.Agent.Provider, "provider", o.Provider)
	str(&cfg.Tools.UnknownPolicy, "unknown-tools", o.UnknownTools)
	str(&cfg.Log.Level, "log-level", o.LogLevel)
	str(&cfg.Log.Format, "log-format", o.LogFormat)
	str(&cfg.Output.MetricsFile, "metrics-file", o.MetricsFile)
	str(&cfg.Output.TranscriptFile, "transcript", o.Transcript)
	if changed("poll-interval") {
		cfg.Poll.Interval = o.PollInterval
	}
	if changed("max-polls") {
		cfg.Poll.MaxAttempts = o.MaxPolls
	}
	if changed("timeout") {
		cfg.Poll.Timeout = o.Timeout
	}

	cfg.Resolve(p.lookup)
	return cfg, cfg.Validate()
}

// run executes one agent run and returns the process exit status.
func (p *planner) run(cmd *cobra.Command, cfg config.Config) int {
	log := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: close log file: %v\n", err)
		}
	}()

	svc, err := newService(cfg)
	if err != nil {
		log.Error("agent service setup failed", "provider", cfg.Agent.Provider, "err", err)
		return 1
	}
	policy, err := runner.ParseUnknownToolPolicy(cfg.Tools.UnknownPolicy)
	if err != nil {
		log.Error("bad unknown tool policy", "err", err)
		return 1
	}

	rec := metrics.NewRecorder()
	poster := recordingPoster{next: webhook.New(cfg.Webhook.URL, cfg.Webhook.Timeout), rec: rec}
	r := runner.New(svc, tools.Registry(poster),
		runner.WithSchedule(schedule.Schedule{
			Interval:    cfg.Poll.Interval,
			MaxAttempts: cfg.Poll.MaxAttempts,
			MaxElapsed:  cfg.Poll.Timeout,
		}),
		runner.WithOutput(cmd.OutOrStdout()),
		runner.WithMetrics(rec),
		runner.WithUnknownToolPolicy(policy),
		runner.WithAttachTools(cfg.Agent.AttachTools),
	)

	started := time.Now().UTC()
	res, runErr := r.Run(cmd.Context(), runner.Task{Title: cfg.Task.Title, Body: cfg.Task.Body}, cfg.Agent.AgentID)
	if runErr != nil {
		log.Error("run did not finish", "thread_id", res.ThreadID, "run_id", res.RunID, "err", runErr)
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", runErr)
	}

	if err := rec.WriteTextfile(cfg.Output.MetricsFile); err != nil {
		log.Warn("write metrics", "path", cfg.Output.MetricsFile, "err", err)
	}
	if path := cfg.Output.TranscriptFile; path != "" {
		if err := memory.SaveTranscript(path, toTranscript(res, started, time.Now().UTC())); err != nil {
			log.Warn("write transcript", "path", path, "err", err)
		}
	}
	return runner.ExitCode(res, runErr)
}

func toTranscript(res runner.Result, started, finished time.Time) memory.Transcript {
	t := memory.Transcript{
		ThreadID:   res.ThreadID,
		RunID:      res.RunID,
		Status:     string(res.Status),
		Polls:      res.Polls,
		Calls:      make([]memory.Call, 0, len(res.Calls)),
		StartedAt:  started,
		FinishedAt: finished,
	}
	if res.LastError != nil {
		t.LastError = res.LastError.Error()
	}
	for _, c := range res.Calls {
		t.Calls = append(t.Calls, memory.Call{
			CallID: c.CallID,
			Tool:   c.Tool,
			Title:  c.Title,
			Output: c.Output,
			Result: c.Result,
		})
	}
	return t
}
