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
	"ragchat/internal/embedding"
	"ragchat/internal/remote"
)

// Default configuration values.
const (
	DefaultBaseURL        = "https://api.openai.com/v1/"
	DefaultModel          = "text-embedding-3-small"
	DefaultDimension      = 1536
	DefaultRequestTimeout = 15 * time.Second
	DefaultOverallTimeout = 30 * time.Second
)

// Client is an OpenAI embeddings client implementing domain.Embedder.
// It holds no mutable state and is safe for concurrent use.
type Client struct {
	client         sdk.Client
	model          string
	dimension      int
	overallTimeout time.Duration
}

// Config configures the embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Dimension int
	// RequestTimeout bounds each HTTP attempt made by the SDK.
	RequestTimeout time.Duration
	// OverallTimeout bounds the whole call including retries.
	OverallTimeout time.Duration
	MaxRetries     int
}

// NewClient creates a new embeddings client using the provided configuration.
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
	if cfg.Dimension == 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Dimension < 0 {
		return nil, fmt.Errorf("%w: invalid embedding dimension %d", domain.ErrConfiguration, cfg.Dimension)
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
		dimension:      cfg.Dimension,
		overallTimeout: cfg.OverallTimeout,
	}, nil
}

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns one unit-length vector per input text, in input order.
// All texts go out in a single request. Every failure is reported as
// domain.ErrEmbedding.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	params := sdk.EmbeddingNewParams{
		Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: sdk.EmbeddingModel(c.model),
	}
	// only the text-embedding-3 family accepts a dimensions override
	if strings.HasPrefix(c.model, "text-embedding-3") {
		params.Dimensions = sdk.Int(int64(c.dimension))
	}

	resp, err := remote.Do(ctx, c.overallTimeout, func(ctx context.Context) (*sdk.CreateEmbeddingResponse, error) {
		return c.client.Embeddings.New(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", domain.ErrEmbedding)
	}
	return c.collect(resp.Data, len(texts))
}

func (c *Client) collect(data []sdk.Embedding, n int) ([][]float64, error) {
	if len(data) != n {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrEmbedding, n, len(data))
	}
	out := make([][]float64, n)
	for _, d := range data {
		idx := int(d.Index)
		if idx < 0 || idx >= n || out[idx] != nil {
			return nil, fmt.Errorf("%w: bad embedding index %d", domain.ErrEmbedding, idx)
		}
		if len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("%w: %w: got %d, want %d",
				domain.ErrEmbedding, domain.ErrDimensionMismatch, len(d.Embedding), c.dimension)
		}
		v, ok := embedding.Normalize(d.Embedding)
		if !ok {
			return nil, fmt.Errorf("%w: embedding %d cannot be normalized", domain.ErrEmbedding, idx)
		}
		out[idx] = v
	}
	return out, nil
}
