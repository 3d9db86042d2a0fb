package synthesis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Request is the uniform payload every generation provider receives.
type Request struct {
	System   string
	Query    string
	Evidence string
}

// Provider is one candidate in the fallback chain. New providers plug in
// without touching the chain loop.
type Provider interface {
	Name() string
	Invoke(ctx context.Context, req Request) (string, error)
}

// ProviderConfig configures an OpenAI-compatible chat completion provider.
// Anything speaking the /chat/completions dialect works through BaseURL.
type ProviderConfig struct {
	Name        string
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

// OpenAIProvider generates structured answers over an OpenAI-compatible API.
type OpenAIProvider struct {
	name        string
	client      *openai.Client
	model       string
	timeout     time.Duration
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a provider. The API key is read from the
// environment variable named by APIKeyEnv.
func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("provider %s: missing API key in env %s", cfg.Name, cfg.APIKeyEnv)
	}
	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	return &OpenAIProvider{
		name:        cfg.Name,
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		timeout:     timeout,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name returns the provider identifier used for model-override hints.
func (p *OpenAIProvider) Name() string { return p.name }

// Invoke issues one bounded-timeout generation call and returns the raw
// structured text unmodified.
func (p *OpenAIProvider) Invoke(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: userMessage(req)},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

// userMessage binds the query to its evidence block; the grounding contract
// itself lives in the system prompt.
func userMessage(req Request) string {
	return fmt.Sprintf(`FOUNDER'S INPUT:
"""%s"""

CONTEXTUAL EVIDENCE:
%s

Provide your structured response following the EXACT format specified in the system prompt.
- Create a SUMMARY section first that addresses the founder's complete situation
- Create a separate QUESTION section for EACH distinct question you identified
- Remember: ONLY use quotes from the evidence above
- Be opinionated but evidence-backed
- If evidence is insufficient for any question, say so explicitly
- Use 2-3 sentence quotes that provide full context, not single lines`, req.Query, req.Evidence)
}

// isTransient reports whether a provider error justifies the single retry a
// generation candidate is allowed: rate limits, server errors, timeouts and
// connection failures.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
