// Package tools defines tool contracts and implementations.
//
// Includes:
//   - ToolDefinition: name, description, JSON parameter schema, handler.
//   - GenerateSchema[T](): derive JSON Schema from Go structs.
//   - create_github_task: forwards a task to the task-creation webhook.
//   - Invariants: every call the agent makes is answered with exactly one output.
package tools
