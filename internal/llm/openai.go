package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/doctorhouse/internal/config"
)

// OpenAIProvider serves both api.openai.com and Azure OpenAI deployments;
// go-openai switches URL layout and auth header based on the client config.
type OpenAIProvider struct {
	client *openai.Client
	name   string
	models []string
}

func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		name:   "openai",
		models: []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4"},
	}
}

// NewAzureProvider builds a provider for an Azure OpenAI deployment. The
// endpoint may be the full chat-completions URL
// (https://<res>.openai.azure.com/openai/deployments/<name>/chat/completions)
// or the bare resource URL combined with cfg.Deployment.
func NewAzureProvider(cfg config.AzureConfig) (*OpenAIProvider, error) {
	baseURL, deployment, err := ParseAzureEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if cfg.Deployment != "" {
		deployment = cfg.Deployment
	}
	if deployment == "" {
		return nil, fmt.Errorf("azure endpoint %q names no deployment", cfg.Endpoint)
	}

	oc := openai.DefaultAzureConfig(cfg.APIKey, baseURL)
	if cfg.APIVersion != "" {
		oc.APIVersion = cfg.APIVersion
	}
	oc.AzureModelMapperFunc = func(string) string { return deployment }

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(oc),
		name:   "azure",
		models: []string{deployment},
	}, nil
}

// ParseAzureEndpoint splits an Azure OpenAI URL into the resource base URL
// and, when present, the deployment name. Query parameters are dropped.
func ParseAzureEndpoint(raw string) (baseURL, deployment string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse azure endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("azure endpoint %q is not an absolute URL", raw)
	}

	path := u.Path
	const marker = "/openai/deployments/"
	if i := strings.Index(path, marker); i >= 0 {
		rest := path[i+len(marker):]
		deployment, _, _ = strings.Cut(rest, "/")
		path = path[:i]
	}
	return u.Scheme + "://" + u.Host + strings.TrimRight(path, "/"), deployment, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Models() []string { return p.models }

func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	oReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
	}
	// A zero temperature would be dropped by omitempty and fall back to the
	// service default of 1.
	if req.Temperature > 0 {
		oReq.Temperature = float32(req.Temperature)
	} else {
		oReq.Temperature = math.SmallestNonzeroFloat32
	}
	if req.MaxTokens > 0 {
		oReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, oReq)
	if err != nil {
		return nil, fmt.Errorf("%s chat: %w", p.name, p.upstream(err))
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &ChatResponse{
		ID:           resp.ID,
		Provider:     p.name,
		Model:        resp.Model,
		Content:      content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		CostUSD:      CalculateCost(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *OpenAIProvider) upstream(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &UpstreamError{Provider: p.name, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &UpstreamError{Provider: p.name, StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}
