package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Tool call results.
const (
	ResultSuccess     = "success"
	ResultError       = "error"
	ResultUnsupported = "unsupported"
	ResultIgnored     = "ignored"
)

// Recorder holds the planner's counters on a private registry. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	reg       *prometheus.Registry
	polls     prometheus.Counter
	toolCalls *prometheus.CounterVec
	webhooks  *prometheus.CounterVec
	runs      *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_polls_total",
			Help: "Run status polls issued.",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_tool_calls_total",
			Help: "Tool calls answered, by tool and result.",
		}, []string{"tool", "result"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_webhook_requests_total",
			Help: "Webhook POSTs by HTTP status code; code is \"error\" when no response arrived.",
		}, []string{"code"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_runs_total",
			Help: "Runs finished, by final status.",
		}, []string{"status"}),
	}
	r.reg.MustRegister(r.polls, r.toolCalls, r.webhooks, r.runs)
	return r
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

func (r *Recorder) Poll() {
	if r == nil {
		return
	}
	r.polls.Inc()
}

func (r *Recorder) ToolCall(tool, result string) {
	if r == nil {
		return
	}
	r.toolCalls.WithLabelValues(tool, result).Inc()
}

// Webhook records one POST. code <= 0 means the request failed in transport.
func (r *Recorder) Webhook(code int) {
	if r == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	r.webhooks.WithLabelValues(label).Inc()
}

func (r *Recorder) RunFinished(status string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(status).Inc()
}

// WriteTextfile writes all counters in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
