package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

const (
	// ProjectScope is the token audience for Azure AI project endpoints.
	ProjectScope = "https://management.azure.com/.default"

	DefaultProjectAPIVersion     = "2024-12-01-preview"
	DefaultAzureOpenAIAPIVersion = "2024-05-01-preview"

	// tokens are refreshed this long before they expire
	tokenRefreshSkew = 2 * time.Minute
)

// AssistantsConfig selects and configures an Assistants-API backend.
type AssistantsConfig struct {
	Provider         string
	ConnectionString string
	Endpoint         string
	APIVersion       string
	APIKey           string
}

// NewCredential returns the ambient Azure credential chain (environment,
// workload identity, managed identity, Azure CLI).
func NewCredential() (azcore.TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	return cred, nil
}

// NewAssistantsClient builds an openai.Client for the configured provider.
// cred is required for azure-project, and for azure-openai without an API
// key. Extra opts are applied last.
func NewAssistantsClient(cfg AssistantsConfig, cred azcore.TokenCredential, opts ...option.RequestOption) (openai.Client, error) {
	var base []option.RequestOption
	switch cfg.Provider {
	case AzureProject:
		pc, err := ParseConnectionString(cfg.ConnectionString)
		if err != nil {
			return openai.Client{}, err
		}
		if cred == nil {
			return openai.Client{}, errors.New("azure-project: token credential required")
		}
		v := cfg.APIVersion
		if v == "" {
			v = DefaultProjectAPIVersion
		}
		base = append(base,
			option.WithBaseURL(pc.Endpoint()),
			option.WithQuery("api-version", v),
			WithBearerToken(cred, ProjectScope),
		)
	case AzureOpenAI:
		if cfg.Endpoint == "" {
			return openai.Client{}, errors.New("azure-openai: endpoint required")
		}
		v := cfg.APIVersion
		if v == "" {
			v = DefaultAzureOpenAIAPIVersion
		}
		base = append(base, azure.WithEndpoint(cfg.Endpoint, v))
		switch {
		case cfg.APIKey != "":
			base = append(base, azure.WithAPIKey(cfg.APIKey))
		case cred != nil:
			base = append(base, azure.WithTokenCredential(cred))
		default:
			return openai.Client{}, errors.New("azure-openai: API key or token credential required")
		}
	case OpenAI:
		if cfg.APIKey != "" {
			base = append(base, option.WithAPIKey(cfg.APIKey))
		}
		if cfg.Endpoint != "" {
			base = append(base, option.WithBaseURL(cfg.Endpoint))
		}
	default:
		return openai.Client{}, fmt.Errorf("provider %q has no Assistants API", cfg.Provider)
	}
	return openai.NewClient(append(base, opts...)...), nil
}

// WithBearerToken authenticates every request with a token for scope taken
// from cred. Tokens are cached until shortly before they expire.
func WithBearerToken(cred azcore.TokenCredential, scope string) option.RequestOption {
	ts := &tokenSource{cred: cred, scope: scope}
	return option.WithMiddleware(func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		tok, err := ts.token(req.Context())
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		return next(req)
	})
}

type tokenSource struct {
	cred  azcore.TokenCredential
	scope string

	mu  sync.Mutex
	cur azcore.AccessToken
}

func (ts *tokenSource) token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.cur.Token != "" && time.Until(ts.cur.ExpiresOn) > tokenRefreshSkew {
		return ts.cur.Token, nil
	}
	tok, err := ts.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{ts.scope}})
	if err != nil {
		return "", fmt.Errorf("get token for %s: %w", ts.scope, err)
	}
	ts.cur = tok
	return tok.Token, nil
}
