// Package openai implements the LLM and embedding providers on the OpenAI
// API, or any endpoint speaking the same protocol.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	vexora "github.com/PeterKuehne/vexora"
	goopenai "github.com/sashabaranov/go-openai"
)

// Defaults. text-embedding-3-small is 1536-dimensional.
const (
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = string(goopenai.SmallEmbedding3)
	DefaultDimensions     = 1536
)

// Compile-time interface checks.
var _ vexora.Provider = (*Provider)(nil)
var _ vexora.EmbeddingProvider = (*Provider)(nil)

// Provider implements both chat and embedding on one OpenAI client.
type Provider struct {
	client     *goopenai.Client
	chatModel  string
	embedModel string
	dimensions int
	logger     *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithChatModel overrides the chat completion model.
func WithChatModel(model string) Option {
	return func(p *Provider) { p.chatModel = model }
}

// WithEmbeddingModel overrides the embedding model and its dimension count.
func WithEmbeddingModel(model string, dimensions int) Option {
	return func(p *Provider) {
		p.embedModel = model
		p.dimensions = dimensions
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint
// (Ollama, vLLM, Azure OpenAI).
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		cfg := goopenai.DefaultConfig("")
		cfg.BaseURL = baseURL
		p.client = goopenai.NewClientWithConfig(cfg)
	}
}

// WithProviderLogger sets a structured logger. Default: discard.
func WithProviderLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// NewProvider creates a provider with the given API key. Options apply after
// the default client is built, so WithBaseURL must rebuild it with the key.
func NewProvider(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		client:     goopenai.NewClient(apiKey),
		chatModel:  DefaultChatModel,
		embedModel: DefaultEmbeddingModel,
		dimensions: DefaultDimensions,
		logger:     vexora.NopLogger(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name returns "openai".
func (p *Provider) Name() string { return "openai" }

// Dimensions returns the embedding vector size.
func (p *Provider) Dimensions() int { return p.dimensions }

// Chat sends a non-streaming chat completion request.
func (p *Provider) Chat(ctx context.Context, req vexora.ChatRequest) (vexora.ChatResponse, error) {
	messages := make([]goopenai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    p.chatModel,
		Messages: messages,
	})
	if err != nil {
		return vexora.ChatResponse{}, fmt.Errorf("chat completion: %w", translateErr(err))
	}
	if len(resp.Choices) == 0 {
		return vexora.ChatResponse{}, fmt.Errorf("chat completion: no choices returned")
	}

	return vexora.ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: vexora.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// Embed returns one vector per input text, in input order.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
		Input: texts,
		Model: goopenai.EmbeddingModel(p.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", translateErr(err))
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	// Response order is not guaranteed; use the per-item index.
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("create embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}

	p.logger.Debug("embedded texts", "count", len(texts), "model", p.embedModel)
	return out, nil
}

// translateErr converts go-openai API errors into *vexora.ErrHTTP so the
// retry wrappers can recognize transient status codes.
func translateErr(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &vexora.ErrHTTP{Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &vexora.ErrHTTP{Status: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}
