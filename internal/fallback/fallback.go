// Package fallback produces open-ended replies when no rule or guided step
// applies.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrUnavailable is returned when no generator is configured.
var ErrUnavailable = errors.New("fallback generator unavailable")

// ErrEmptyCompletion is returned when the upstream answers with no text.
var ErrEmptyCompletion = errors.New("fallback generator returned no content")

// Generator answers a message given recent conversation context.
type Generator interface {
	Generate(ctx context.Context, message, history, userName string) (string, error)
}

// ChatCompleter is the subset of the OpenAI client the generator needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config selects the upstream model.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// New returns a generator for cfg. Without an API key it returns one that
// always fails with ErrUnavailable.
func New(cfg Config) Generator {
	if cfg.APIKey == "" {
		return Unavailable{}
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return WithTimeout(NewOpenAI(openai.NewClientWithConfig(clientCfg), cfg.Model, cfg.MaxTokens), cfg.Timeout)
}

// Unavailable fails closed.
type Unavailable struct{}

// Generate always returns ErrUnavailable.
func (Unavailable) Generate(context.Context, string, string, string) (string, error) {
	return "", ErrUnavailable
}

// OpenAI generates replies through an OpenAI-compatible chat completion API.
type OpenAI struct {
	client    ChatCompleter
	model     string
	maxTokens int
}

// NewOpenAI wraps client.
func NewOpenAI(client ChatCompleter, model string, maxTokens int) *OpenAI {
	if maxTokens <= 0 {
		maxTokens = 200
	}
	return &OpenAI{client: client, model: model, maxTokens: maxTokens}
}

// Generate sends the system prompt and the user message.
func (g *OpenAI) Generate(ctx context.Context, message, history, userName string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(history, userName)},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

type timeoutGenerator struct {
	next    Generator
	timeout time.Duration
}

// WithTimeout bounds every Generate call. A non-positive timeout returns next
// unchanged.
func WithTimeout(next Generator, timeout time.Duration) Generator {
	if timeout <= 0 {
		return next
	}
	return &timeoutGenerator{next: next, timeout: timeout}
}

func (t *timeoutGenerator) Generate(ctx context.Context, message, history, userName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Generate(ctx, message, history, userName)
}
