// Package provider builds the SDK clients the agent backends talk through.
package provider

// Backend names accepted by configuration.
const (
	AzureProject = "azure-project"
	AzureOpenAI  = "azure-openai"
	OpenAI       = "openai"
	Anthropic    = "anthropic"
)

// Known reports whether name is one of the supported backends.
func Known(name string) bool {
	switch name {
	case AzureProject, AzureOpenAI, OpenAI, Anthropic:
		return true
	}
	return false
}
