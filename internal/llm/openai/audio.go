package openai

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"

	"lifelog/internal/llm"
	"lifelog/internal/models"
)

type transcriptionResponse struct {
	Text string `json:"text"`
}

// DescribeAudio transcribes English audio. The endpoint reports no token
// usage, so zero usage is recorded.
func (c *Client) DescribeAudio(ctx context.Context, m models.Media) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := m.Filename
	if filename == "" {
		filename = "audio" + extensionFor(m.ContentType)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	contentType := m.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", &llm.GatewayError{Op: "describeAudio", Err: err}
	}
	if _, err := part.Write(m.Payload); err != nil {
		return "", &llm.GatewayError{Op: "describeAudio", Err: err}
	}
	for _, field := range [][2]string{{"model", c.transcriptionModel}, {"language", "en"}} {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return "", &llm.GatewayError{Op: "describeAudio", Err: err}
		}
	}
	if err := writer.Close(); err != nil {
		return "", &llm.GatewayError{Op: "describeAudio", Err: err}
	}

	var resp transcriptionResponse
	if err := c.post(ctx, "describeAudio", "/audio/transcriptions", writer.FormDataContentType(), body, &resp); err != nil {
		return "", err
	}
	c.usage.RecordUsage(llm.Usage{Model: c.transcriptionModel, Op: "describeAudio"})
	return resp.Text, nil
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
