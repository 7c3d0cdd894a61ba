package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"lifelog/internal/llm"
	"lifelog/internal/media"
	"lifelog/internal/models"
	"lifelog/internal/schema"
)

const describeImagePrompt = "Describe in detail the image below."

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
			Refusal *string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
	Usage *usage `json:"usage"`
}

func (r chatResponse) content() string {
	if len(r.Choices) == 0 || r.Choices[0].Message.Content == nil {
		return ""
	}
	return *r.Choices[0].Message.Content
}

func (c *Client) chat(ctx context.Context, op string, req chatRequest) (chatResponse, error) {
	var resp chatResponse
	if err := c.postJSON(ctx, op, "/chat/completions", req, &resp); err != nil {
		return chatResponse{}, err
	}
	if resp.Usage != nil {
		c.usage.RecordUsage(llm.Usage{
			Model:        req.Model,
			Op:           op,
			PromptTokens: resp.Usage.PromptTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		})
	}
	return resp, nil
}

func (c *Client) Query(ctx context.Context, system, content string) (string, error) {
	resp, err := c.chat(ctx, "query", chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: content},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.content(), nil
}

func (c *Client) QueryStructured(ctx context.Context, system, content string, out any) error {
	format, err := schema.For("query", out)
	if err != nil {
		return err
	}
	resp, err := c.chat(ctx, "query", chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: content},
		},
		ResponseFormat: &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: format.Name, Schema: format.Schema},
		},
	})
	if err != nil {
		return err
	}

	if len(resp.Choices) > 0 && resp.Choices[0].Message.Refusal != nil {
		return &llm.GatewayError{Op: "query", Err: fmt.Errorf("%w: refused: %s", llm.ErrParse, *resp.Choices[0].Message.Refusal)}
	}
	raw := resp.content()
	if raw == "" {
		return &llm.GatewayError{Op: "query", Err: llm.ErrParse}
	}
	if err := schema.Decode([]byte(raw), out); err != nil {
		return &llm.GatewayError{Op: "query", Err: fmt.Errorf("%w: %w", llm.ErrParse, err)}
	}
	return nil
}

func (c *Client) DescribeImage(ctx context.Context, m models.Media) (string, error) {
	dataURL, err := media.ToBase64(m.ContentType, bytes.NewReader(m.Payload))
	if err != nil {
		return "", &llm.GatewayError{Op: "describeImage", Err: err}
	}
	resp, err := c.chat(ctx, "describeImage", chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: describeImagePrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL, Detail: "low"}},
			},
		}},
	})
	if err != nil {
		return "", err
	}
	return resp.content(), nil
}
