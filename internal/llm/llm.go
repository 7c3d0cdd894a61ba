// Package llm defines the language-model gateway used to interpret media and
// to select and run actions.
package llm

import (
	"context"

	"lifelog/internal/models"
)

const (
	DefaultEmbeddingDimensions = 1536
	DefaultEmbeddingModel      = "text-embedding-3-small"
	DefaultChatModel           = "gpt-4o-mini"
	DefaultTranscriptionModel  = "whisper-1"
)

// Gateway is the set of model operations the pipeline depends on.
type Gateway interface {
	// GetEmbeddings embeds description and echoes name back in the result.
	GetEmbeddings(ctx context.Context, name, description string, opts *EmbeddingOptions) (Embedding, error)
	// Query returns free-form text. An empty model reply yields "".
	Query(ctx context.Context, system, content string) (string, error)
	// QueryStructured constrains the reply to the JSON contract of out and
	// decodes it into out. out must be a pointer to a contract struct.
	QueryStructured(ctx context.Context, system, content string, out any) error
	DescribeImage(ctx context.Context, media models.Media) (string, error)
	DescribeAudio(ctx context.Context, media models.Media) (string, error)
}

// Embedding is a vector for one named piece of text.
type Embedding struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Embeddings  []float64 `json:"embeddings"`
}

// EmbeddingOptions overrides embedding defaults. Zero fields keep the default.
type EmbeddingOptions struct {
	Dimensions int
	Model      string
}

// Resolve merges o over the defaults. A nil receiver yields the defaults.
func (o *EmbeddingOptions) Resolve() EmbeddingOptions {
	out := EmbeddingOptions{Dimensions: DefaultEmbeddingDimensions, Model: DefaultEmbeddingModel}
	if o == nil {
		return out
	}
	if o.Dimensions > 0 {
		out.Dimensions = o.Dimensions
	}
	if o.Model != "" {
		out.Model = o.Model
	}
	return out
}
