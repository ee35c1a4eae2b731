// Package openai provides the chat completion client used to generate answers.
package openai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ragchat/internal/domain"
	"ragchat/internal/remote"
)

// Default configuration values.
const (
	DefaultBaseURL        = "https://api.openai.com/v1/"
	DefaultModel          = "gpt-4o-mini"
	DefaultTemperature    = 0.3
	DefaultRequestTimeout = 30 * time.Second
	DefaultOverallTimeout = 45 * time.Second
)

// Client is an OpenAI chat completion client implementing domain.Completer.
type Client struct {
	client         sdk.Client
	model          string
	temperature    float64
	maxTokens      int
	overallTimeout time.Duration
}

// Config configures the completion client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float64
	MaxTokens   int
	// RequestTimeout bounds each HTTP attempt made by the SDK.
	RequestTimeout time.Duration
	// OverallTimeout bounds the whole call including retries.
	OverallTimeout time.Duration
	MaxRetries     int
}

// NewClient creates a completion client. A missing key is a configuration error.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrConfiguration, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.OverallTimeout < cfg.RequestTimeout {
		cfg.OverallTimeout = max(DefaultOverallTimeout, cfg.RequestTimeout)
	}
	return &Client{
		client: sdk.NewClient(
			option.WithAPIKey(key),
			option.WithBaseURL(cfg.BaseURL),
			option.WithRequestTimeout(cfg.RequestTimeout),
			option.WithMaxRetries(cfg.MaxRetries),
		),
		model:          cfg.Model,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		overallTimeout: cfg.OverallTimeout,
	}, nil
}

// Complete sends the conversation and returns the first choice's text.
// Every failure is reported as domain.ErrCompletion.
func (c *Client) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(c.model),
		Messages:    toParams(messages),
		Temperature: sdk.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(c.maxTokens))
	}

	resp, err := remote.Do(ctx, c.overallTimeout, func(ctx context.Context) (*sdk.ChatCompletion, error) {
		return c.client.Chat.Completions.New(ctx, params)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCompletion, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", domain.ErrCompletion)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", domain.ErrCompletion)
	}
	return text, nil
}

func toParams(messages []domain.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case domain.RoleAssistant:
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}
