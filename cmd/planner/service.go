package main

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/petasbytes/spec-planner/internal/agentsvc"
	"github.com/petasbytes/spec-planner/internal/config"
	"github.com/petasbytes/spec-planner/internal/metrics"
	"github.com/petasbytes/spec-planner/internal/provider"
	"github.com/petasbytes/spec-planner/tools"
)

// newService builds the agent backend selected by cfg.Agent.Provider.
func newService(cfg config.Config) (agentsvc.Service, error) {
	a := cfg.Agent
	if a.Provider == provider.Anthropic {
		var opts []anthropicopt.RequestOption
		if a.APIKey != "" {
			opts = append(opts, anthropicopt.WithAPIKey(a.APIKey))
		}
		model := anthropic.Model(a.Model)
		if model == "" {
			model = provider.DefaultModel
		}
		return agentsvc.NewMessages(provider.NewAnthropicClient(opts...), model, a.Instructions,
			agentsvc.WithInputBudget(a.InputBudget)), nil
	}

	var cred azcore.TokenCredential
	if a.Provider == provider.AzureProject || (a.Provider == provider.AzureOpenAI && a.APIKey == "") {
		c, err := provider.NewCredential()
		if err != nil {
			return nil, err
		}
		cred = c
	}
	client, err := provider.NewAssistantsClient(provider.AssistantsConfig{
		Provider:         a.Provider,
		ConnectionString: a.ConnectionString,
		Endpoint:         a.Endpoint,
		APIVersion:       a.APIVersion,
		APIKey:           a.APIKey,
	}, cred)
	if err != nil {
		return nil, err
	}
	return agentsvc.NewAssistants(client), nil
}

// recordingPoster counts webhook responses by status code.
type recordingPoster struct {
	next tools.Poster
	rec  *metrics.Recorder
}

func (p recordingPoster) Post(ctx context.Context, payload any) (int, error) {
	code, err := p.next.Post(ctx, payload)
	if err != nil {
		p.rec.Webhook(0)
		return code, err
	}
	p.rec.Webhook(code)
	return code, nil
}
