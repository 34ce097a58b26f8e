package runner

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/petasbytes/spec-planner/internal/metrics"
	"github.com/petasbytes/spec-planner/internal/schedule"
)

// UnknownToolPolicy decides what happens to calls for tools that are not
// registered.
type UnknownToolPolicy int

const (
	// RejectUnknown answers with an "Error: unsupported tool" output.
	RejectUnknown UnknownToolPolicy = iota
	// IgnoreUnknown leaves the call unanswered. The service may then keep
	// the run in requires_action until it expires.
	IgnoreUnknown
)

func ParseUnknownToolPolicy(s string) (UnknownToolPolicy, error) {
	switch s {
	case "", "reject":
		return RejectUnknown, nil
	case "ignore":
		return IgnoreUnknown, nil
	}
	return RejectUnknown, fmt.Errorf("unknown tool policy %q", s)
}

func (p UnknownToolPolicy) String() string {
	if p == IgnoreUnknown {
		return "ignore"
	}
	return "reject"
}

type Option func(*Runner)

func WithSchedule(s schedule.Schedule) Option {
	return func(r *Runner) { r.sched = s }
}

// WithOutput sets where progress lines are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithUnknownToolPolicy(p UnknownToolPolicy) Option {
	return func(r *Runner) { r.unknown = p }
}

// WithAttachTools controls whether the tool schemas are sent on run creation.
func WithAttachTools(attach bool) Option {
	return func(r *Runner) { r.attachTools = attach }
}
