package embed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIOptions configures an OpenAI embedder.
type OpenAIOptions struct {
	APIKey     string
	Model      string
	Dimensions int
	BaseURL    string // optional, for compatible endpoints
}

// OpenAI calls the OpenAI embeddings API.
type OpenAI struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAI builds an OpenAI embedder.
func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("embed: openai api key is required")
	}
	if opts.Model == "" {
		opts.Model = string(openai.SmallEmbedding3)
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAI{
		client:     openai.NewClientWithConfig(cfg),
		model:      openai.EmbeddingModel(opts.Model),
		dimensions: opts.Dimensions,
	}, nil
}

// Embed implements Embedder.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      o.model,
		Dimensions: o.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("embed: openai: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embed: openai: empty response")
	}
	return resp.Data[0].Embedding, nil
}
