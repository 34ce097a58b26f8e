package tools

// Registry returns all tool definitions wired for the agent
func Registry(poster Poster) []ToolDefinition {
	return []ToolDefinition{CreateTask(poster)}
}
