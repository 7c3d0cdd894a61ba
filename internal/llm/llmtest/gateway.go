// Package llmtest provides a scripted llm.Gateway for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"lifelog/internal/llm"
	"lifelog/internal/models"
	"lifelog/internal/schema"
)

// Call records one gateway invocation.
type Call struct {
	Op      string
	System  string
	Content string
	Media   string
}

// Gateway answers from scripted functions. Structured replies are raw JSON
// decoded through the same contract validation the real client applies.
// Unset functions fail the call.
type Gateway struct {
	QueryFunc      func(system, content string) (string, error)
	StructuredFunc func(system, content string) (string, error)
	ImageFunc      func(media models.Media) (string, error)
	AudioFunc      func(media models.Media) (string, error)
	EmbedFunc      func(description string, opts llm.EmbeddingOptions) ([]float64, error)

	mu    sync.Mutex
	calls []Call
}

var _ llm.Gateway = (*Gateway)(nil)

// Calls returns a copy of the recorded calls in order.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallsTo returns the recorded calls for one operation.
func (g *Gateway) CallsTo(op string) []Call {
	var out []Call
	for _, c := range g.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (g *Gateway) record(c Call) {
	g.mu.Lock()
	g.calls = append(g.calls, c)
	g.mu.Unlock()
}

func (g *Gateway) GetEmbeddings(ctx context.Context, name, description string, opts *llm.EmbeddingOptions) (llm.Embedding, error) {
	g.record(Call{Op: "getEmbeddings", Content: description})
	if err := ctx.Err(); err != nil {
		return llm.Embedding{}, err
	}
	resolved := opts.Resolve()
	if g.EmbedFunc == nil {
		return llm.Embedding{Name: name, Description: description, Embeddings: make([]float64, resolved.Dimensions)}, nil
	}
	vec, err := g.EmbedFunc(description, resolved)
	if err != nil {
		return llm.Embedding{}, &llm.GatewayError{Op: "getEmbeddings", Err: err}
	}
	return llm.Embedding{Name: name, Description: description, Embeddings: vec}, nil
}

func (g *Gateway) Query(ctx context.Context, system, content string) (string, error) {
	g.record(Call{Op: "query", System: system, Content: content})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.QueryFunc == nil {
		return "", &llm.GatewayError{Op: "query", Err: fmt.Errorf("no scripted reply")}
	}
	out, err := g.QueryFunc(system, content)
	if err != nil {
		return "", &llm.GatewayError{Op: "query", Err: err}
	}
	return out, nil
}

func (g *Gateway) QueryStructured(ctx context.Context, system, content string, out any) error {
	g.record(Call{Op: "queryStructured", System: system, Content: content})
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.StructuredFunc == nil {
		return &llm.GatewayError{Op: "query", Err: fmt.Errorf("no scripted reply")}
	}
	raw, err := g.StructuredFunc(system, content)
	if err != nil {
		return &llm.GatewayError{Op: "query", Err: err}
	}
	if raw == "" {
		return &llm.GatewayError{Op: "query", Err: llm.ErrParse}
	}
	if err := schema.Decode([]byte(raw), out); err != nil {
		return &llm.GatewayError{Op: "query", Err: fmt.Errorf("%w: %w", llm.ErrParse, err)}
	}
	return nil
}

func (g *Gateway) DescribeImage(ctx context.Context, media models.Media) (string, error) {
	g.record(Call{Op: "describeImage", Media: media.Key})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.ImageFunc == nil {
		return "", &llm.GatewayError{Op: "describeImage", Err: fmt.Errorf("no scripted reply")}
	}
	return g.ImageFunc(media)
}

func (g *Gateway) DescribeAudio(ctx context.Context, media models.Media) (string, error) {
	g.record(Call{Op: "describeAudio", Media: media.Key})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.AudioFunc == nil {
		return "", &llm.GatewayError{Op: "describeAudio", Err: fmt.Errorf("no scripted reply")}
	}
	return g.AudioFunc(media)
}
