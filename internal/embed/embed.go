// Package embed computes request and atom embeddings. Embedding models live
// outside Signalbox; this package is the boundary to them.
package embed

import (
	"context"
	"fmt"

	"github.com/zulandar/signalbox/internal/config"
)

// Embedder turns text into a vector. Implementations must be safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// New builds the embedder selected by cfg. Provider "none" returns a nil
// Embedder; callers then fall back to keyword matching.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "none":
		return nil, nil
	case "hash", "":
		return NewHash(cfg.Dimensions), nil
	case "openai":
		e, err := NewOpenAI(OpenAIOptions{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("embed: unsupported provider %q", cfg.Provider)
	}
}
