package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cloo-solutions/docchat/internal/domain"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultEmbeddingModel      = string(openai.SmallEmbedding3)
	DefaultEmbeddingDimensions = 384
	DefaultChatModel           = openai.GPT4oMini
	DefaultBatchSize           = 100
	DefaultConcurrency         = 4
)

// ErrEmptyText is returned when a query to embed is blank.
var ErrEmptyText = domain.NewDomainError(domain.ErrCodeValidation, "text cannot be empty")

// EmbeddingAPI embeds a batch of inputs, returning one vector per input in order.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

// ChatAPI runs a single non-streaming completion.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, prompt string) (string, error)
}

// OpenAIAdapter talks to an OpenAI-compatible HTTP API.
type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	dimensions     int
	chatModel      string
	temperature    float32
	maxTokens      int
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		dimensions:     cfg.EmbeddingDimensions,
		chatModel:      cfg.ChatModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
	}
}

// CreateEmbeddings calls the embeddings endpoint and orders the result by input index.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      inputs,
		Model:      a.embeddingModel,
		Dimensions: a.dimensions,
	})
	if err != nil {
		return nil, err
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
	BatchSize           int
	Concurrency         int
	RequestsPerSecond   float64
	ChatModel           string
	Temperature         float32
	MaxTokens           int
}

func (c Config) withDefaults() Config {
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.EmbeddingDimensions <= 0 {
		c.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.ChatModel == "" {
		c.ChatModel = DefaultChatModel
	}
	return c
}

// Client embeds text and completes prompts. Embedding batches run
// concurrently under a request rate limit.
type Client struct {
	embeddings  EmbeddingAPI
	chat        ChatAPI
	dimensions  int
	batchSize   int
	concurrency int
	limiter     *rate.Limiter
}

// NewClient creates a client backed by the OpenAI-compatible API in cfg.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	adapter := NewOpenAIAdapter(cfg)
	return newClient(adapter, adapter, cfg)
}

func newClient(embeddings EmbeddingAPI, chat ChatAPI, cfg Config) *Client {
	cfg = cfg.withDefaults()
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		embeddings:  embeddings,
		chat:        chat,
		dimensions:  cfg.EmbeddingDimensions,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		limiter:     rate.NewLimiter(limit, cfg.Concurrency),
	}
}

// Dimensions is the length of every vector this client returns.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// EmbedDocuments returns one vector per text, in input order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		batch := texts[start:end]
		offset := start

		g.Go(func() error {
			if err := c.limiter.Wait(gctx); err != nil {
				return domain.Wrap(domain.ErrBackendUnavailable, err)
			}
			vectors, err := c.embeddings.CreateEmbeddings(gctx, batch)
			if err != nil {
				return domain.Wrap(domain.ErrBackendUnavailable, fmt.Errorf("failed to create embeddings: %w", err))
			}
			if len(vectors) != len(batch) {
				return domain.Wrap(domain.ErrBackendUnavailable,
					fmt.Errorf("embedding backend returned %d vectors for %d inputs", len(vectors), len(batch)))
			}
			for i, v := range vectors {
				if len(v) != c.dimensions {
					return domain.Wrap(domain.ErrDimensionMismatch,
						fmt.Errorf("got %d dimensions, want %d", len(v), c.dimensions))
				}
				out[offset+i] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Complete runs prompt through the chat model once, without retry.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	answer, err := c.chat.CreateChatCompletion(ctx, prompt)
	if err != nil {
		return "", domain.Wrap(domain.ErrBackendUnavailable, fmt.Errorf("failed to create chat completion: %w", err))
	}
	return answer, nil
}
