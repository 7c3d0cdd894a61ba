package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"lifelog/internal/action"
	"lifelog/internal/llm"
	"lifelog/internal/llm/openai"
	"lifelog/internal/media"
	"lifelog/internal/schema"
	"lifelog/internal/store"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	if errors.Is(err, media.ErrUnsupportedContentType) {
		lines = append(lines, "hint: supported content is text (txt, md, csv, json), images (jpeg, png, gif) and audio (mp3, wav, flac, ogg, webm, mpeg).")
	}
	if errors.Is(err, action.ErrUnknownActionType) {
		lines = append(lines, "hint: DATAPOINT has no handler yet; other selected actions still ran.")
	}
	if errors.Is(err, action.ErrTodoNotFound) {
		lines = append(lines, "hint: the action result was recorded; list pending todos with: lifelog todo list")
	}

	var gatewayErr *llm.GatewayError
	if errors.As(err, &gatewayErr) {
		switch {
		case gatewayErr.Status == http.StatusUnauthorized || gatewayErr.Status == http.StatusForbidden:
			lines = append(lines, "hint: verify OPENAI_API_KEY (or openai.api_key in ~/.lifelog.toml).")
		case gatewayErr.Status == http.StatusTooManyRequests:
			lines = append(lines, "hint: the provider is rate limiting; retry shortly.")
		case gatewayErr.Status == http.StatusNotFound:
			lines = append(lines, "hint: check openai.chat_model and LIFELOG_OPENAI_BASE_URL.")
		case gatewayErr.Status >= 500:
			lines = append(lines, "hint: the provider returned an internal error; retry the step with: lifelog process <media-key>")
		}
	}

	var validationErr *schema.ValidationError
	if errors.As(err, &validationErr) || errors.Is(err, llm.ErrParse) {
		lines = append(lines, "hint: the model reply did not match the expected structure; nothing was recorded for that step.")
	}

	if store.IsConnection(err) {
		lines = append(lines, "hint: check db_path or LIFELOG_DB points to a writable location.")
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; increase openai.timeout_seconds for long audio.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines, "hint: cannot reach the model endpoint; check network access and LIFELOG_OPENAI_BASE_URL.")
	}

	if errors.Is(err, openai.ErrMissingAPIKey) {
		lines = append(lines, "hint: set OPENAI_API_KEY in the environment or a .env file.")
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
