package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CreateTaskToolName is the function name the agent uses to request a task.
const CreateTaskToolName = "create_github_task"

// ErrInvalidArguments marks tool input that does not match the declared schema.
var ErrInvalidArguments = errors.New("invalid arguments")

// Poster delivers a JSON payload to the task-creation endpoint and reports the
// HTTP status code. A non-nil error means no response was received.
type Poster interface {
	Post(ctx context.Context, payload any) (int, error)
}

type CreateTaskInput struct {
	Title  string   `json:"title" jsonschema_description:"Title of the task"`
	Body   string   `json:"body" jsonschema_description:"Detailed description"`
	Labels []string `json:"labels,omitempty" jsonschema_description:"Labels to apply to the task"`
}

// createTaskPayload is the webhook body; labels is always an array.
type createTaskPayload struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
}

var CreateTaskInputSchema = GenerateSchema[CreateTaskInput]()

// CreateTask returns the create_github_task definition bound to poster.
func CreateTask(poster Poster) ToolDefinition {
	return ToolDefinition{
		Name:        CreateTaskToolName,
		Description: "Creates a technical task in GitHub Issues.",
		Parameters:  CreateTaskInputSchema,
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			in, err := DecodeCreateTaskInput(input)
			if err != nil {
				return "", err
			}
			code, err := poster.Post(ctx, createTaskPayload(in))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Success: %d", code), nil
		},
		Summarize: func(input json.RawMessage) string {
			in, err := DecodeCreateTaskInput(input)
			if err != nil {
				return ""
			}
			return in.Title
		},
	}
}

// DecodeCreateTaskInput decodes and validates create_github_task arguments.
// Labels are trimmed, empty entries dropped, and nil becomes an empty list.
func DecodeCreateTaskInput(input json.RawMessage) (CreateTaskInput, error) {
	var in CreateTaskInput
	if len(input) == 0 {
		return in, fmt.Errorf("%w: empty payload", ErrInvalidArguments)
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Body) == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		return in, fmt.Errorf("%w: missing required field(s): %s", ErrInvalidArguments, strings.Join(missing, ", "))
	}

	labels := make([]string, 0, len(in.Labels))
	for _, l := range in.Labels {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	in.Labels = labels
	return in, nil
}
