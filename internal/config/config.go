// Package config loads planner settings. Precedence, lowest first:
// Default, YAML file, .env file, process environment, command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/petasbytes/spec-planner/internal/provider"
)

// Unknown tool policies.
const (
	UnknownReject = "reject"
	UnknownIgnore = "ignore"
)

type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Task    TaskConfig    `yaml:"task"`
	Webhook WebhookConfig `yaml:"webhook"`
	Poll    PollConfig    `yaml:"poll"`
	Tools   ToolsConfig   `yaml:"tools"`
	Log     LogConfig     `yaml:"log"`
	Output  OutputConfig  `yaml:"output"`
}

type AgentConfig struct {
	// Provider is one of the provider package backend names. Empty means
	// infer from the credentials present (see Resolve).
	Provider         string `yaml:"provider"`
	ConnectionString string `yaml:"connection_string"`
	AgentID          string `yaml:"agent_id"`
	Endpoint         string `yaml:"endpoint"`
	APIVersion       string `yaml:"api_version"`
	APIKey           string `yaml:"api_key"`
	Model            string `yaml:"model"`
	Instructions     string `yaml:"instructions"`
	// InputBudget bounds the conversation re-sent per step by the anthropic
	// backend, in estimated tokens. Zero sends everything.
	InputBudget int  `yaml:"input_budget"`
	AttachTools bool `yaml:"attach_tools"`
}

type TaskConfig struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type PollConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

type ToolsConfig struct {
	UnknownPolicy string `yaml:"unknown_policy"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type OutputConfig struct {
	MetricsFile    string `yaml:"metrics_file"`
	TranscriptFile string `yaml:"transcript_file"`
}

func Default() Config {
	return Config{
		Agent:   AgentConfig{AttachTools: true},
		Webhook: WebhookConfig{Timeout: 30 * time.Second},
		Poll:    PollConfig{Interval: 2 * time.Second},
		Tools:   ToolsConfig{UnknownPolicy: UnknownReject},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load returns Default overlaid with the YAML file at path. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays values from the environment. Only variables that are
// set and non-empty take effect.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return v, true
	}
	str := func(dst *string, key string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	var errs []error
	dur := func(dst *time.Duration, key string) {
		if v, ok := get(key); ok {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(dst *int, key string) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(dst *bool, key string) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str(&c.Agent.Provider, "AGT_PROVIDER")
	str(&c.Agent.ConnectionString, "AZURE_PROJECT_CONNECTION_STRING")
	str(&c.Agent.AgentID, "AGENT_ID")
	str(&c.Agent.Endpoint, "AZURE_OPENAI_ENDPOINT")
	str(&c.Agent.APIVersion, "AGT_API_VERSION")
	str(&c.Agent.APIKey, "AZURE_OPENAI_API_KEY")
	str(&c.Agent.Model, "AGT_MODEL")
	str(&c.Agent.Instructions, "AGT_INSTRUCTIONS")
	num(&c.Agent.InputBudget, "AGT_INPUT_BUDGET")
	flag(&c.Agent.AttachTools, "AGT_ATTACH_TOOLS")

	str(&c.Task.Title, "ISSUE_TITLE")
	str(&c.Task.Body, "ISSUE_BODY")

	str(&c.Webhook.URL, "LOGIC_APP_URL")
	dur(&c.Webhook.Timeout, "AGT_WEBHOOK_TIMEOUT")

	dur(&c.Poll.Interval, "AGT_POLL_INTERVAL")
	num(&c.Poll.MaxAttempts, "AGT_MAX_POLLS")
	dur(&c.Poll.Timeout, "AGT_RUN_TIMEOUT")

	str(&c.Tools.UnknownPolicy, "AGT_UNKNOWN_TOOLS")

	str(&c.Log.Level, "AGT_LOG_LEVEL")
	str(&c.Log.Format, "AGT_LOG_FORMAT")
	str(&c.Log.File, "AGT_LOG_FILE")

	str(&c.Output.MetricsFile, "AGT_METRICS_FILE")
	str(&c.Output.TranscriptFile, "AGT_TRANSCRIPT")

	return errors.Join(errs...)
}

// Resolve infers the provider when unset and fills the API key from the
// provider's conventional variable. Call it after flags are applied.
func (c *Config) Resolve(lookup LookupFunc) {
	has := func(key string) bool {
		v, ok := lookup(key)
		return ok && strings.TrimSpace(v) != ""
	}
	a := &c.Agent
	if a.Provider == "" {
		switch {
		case a.ConnectionString != "":
			a.Provider = provider.AzureProject
		case a.Endpoint != "":
			a.Provider = provider.AzureOpenAI
		case has("OPENAI_API_KEY"):
			a.Provider = provider.OpenAI
		case has("ANTHROPIC_API_KEY"):
			a.Provider = provider.Anthropic
		}
	}
	if a.APIKey == "" {
		switch a.Provider {
		case provider.OpenAI:
			a.APIKey, _ = lookup("OPENAI_API_KEY")
		case provider.Anthropic:
			a.APIKey, _ = lookup("ANTHROPIC_API_KEY")
		}
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(c.Task.Title) == "" {
		add("task title is required (ISSUE_TITLE or --title)")
	}
	if strings.TrimSpace(c.Agent.AgentID) == "" {
		add("agent id is required (AGENT_ID or --agent-id)")
	}
	if err := validateURL(c.Webhook.URL); err != nil {
		add("webhook url (LOGIC_APP_URL or --webhook-url): %v", err)
	}
	if c.Webhook.Timeout <= 0 {
		add("webhook timeout must be positive, got %s", c.Webhook.Timeout)
	}

	if c.Agent.InputBudget < 0 {
		add("input budget must be >= 0, got %d", c.Agent.InputBudget)
	}

	if c.Poll.Interval <= 0 {
		add("poll interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.MaxAttempts < 0 {
		add("max polls must be >= 0, got %d", c.Poll.MaxAttempts)
	}
	if c.Poll.Timeout < 0 {
		add("run timeout must be >= 0, got %s", c.Poll.Timeout)
	}

	switch a := c.Agent; a.Provider {
	case "":
		add("no agent backend configured: set AZURE_PROJECT_CONNECTION_STRING, AZURE_OPENAI_ENDPOINT, OPENAI_API_KEY or ANTHROPIC_API_KEY")
	case provider.AzureProject:
		if _, err := provider.ParseConnectionString(a.ConnectionString); err != nil {
			add("AZURE_PROJECT_CONNECTION_STRING: %v", err)
		}
	case provider.AzureOpenAI:
		if err := validateURL(a.Endpoint); err != nil {
			add("AZURE_OPENAI_ENDPOINT: %v", err)
		}
	case provider.OpenAI:
		if a.APIKey == "" {
			add("openai provider requires OPENAI_API_KEY")
		}
	case provider.Anthropic:
		if a.APIKey == "" {
			add("anthropic provider requires ANTHROPIC_API_KEY")
		}
	default:
		add("unknown provider %q", a.Provider)
	}

	switch c.Tools.UnknownPolicy {
	case UnknownReject, UnknownIgnore:
	default:
		add("unknown tool policy %q (want %s or %s)", c.Tools.UnknownPolicy, UnknownReject, UnknownIgnore)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("unknown log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("unknown log format %q (want text or json)", c.Log.Format)
	}

	return errors.Join(errs...)
}

// parseDuration accepts Go durations ("2s", "500ms") and bare seconds ("2").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
