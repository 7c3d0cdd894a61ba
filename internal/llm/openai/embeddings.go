package openai

import (
	"context"

	"lifelog/internal/llm"
)

type embeddingRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage usage `json:"usage"`
}

func (c *Client) GetEmbeddings(ctx context.Context, name, description string, opts *llm.EmbeddingOptions) (llm.Embedding, error) {
	resolved := opts.Resolve()
	var resp embeddingResponse
	err := c.postJSON(ctx, "getEmbeddings", "/embeddings", embeddingRequest{
		Input:      description,
		Model:      resolved.Model,
		Dimensions: resolved.Dimensions,
	}, &resp)
	if err != nil {
		return llm.Embedding{}, err
	}
	if len(resp.Data) == 0 {
		return llm.Embedding{}, &llm.GatewayError{Op: "getEmbeddings", Err: llm.ErrParse}
	}
	c.usage.RecordUsage(llm.Usage{
		Model:        resolved.Model,
		Op:           "getEmbeddings",
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	})
	return llm.Embedding{Name: name, Description: description, Embeddings: resp.Data[0].Embedding}, nil
}
