package main

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lifelog/internal/models"
)

// noteMeta is the optional YAML front matter of a markdown note.
type noteMeta struct {
	Description string `yaml:"description"`
	Datetime    string `yaml:"datetime"`
	Source      string `yaml:"source"`
}

// parseNote splits optional front matter from a markdown note body.
func parseNote(input string) (noteMeta, string, error) {
	var meta noteMeta

	lines := strings.Split(input, "\n")
	if len(lines) < 3 || strings.TrimSpace(lines[0]) != "---" {
		return meta, input, nil
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return meta, "", fmt.Errorf("front matter not closed")
	}
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &meta); err != nil {
		return meta, "", fmt.Errorf("parse front matter: %w", err)
	}
	body := strings.TrimLeft(strings.Join(lines[end+1:], "\n"), "\n")
	return meta, body, nil
}

// apply copies front matter onto unset ingest fields.
func (m noteMeta) apply(description *string, datetime *time.Time, source *models.IngestSource) error {
	if *description == "" {
		*description = strings.TrimSpace(m.Description)
	}
	if datetime.IsZero() && strings.TrimSpace(m.Datetime) != "" {
		parsed, err := parseDatetime(m.Datetime)
		if err != nil {
			return err
		}
		*datetime = parsed
	}
	if *source == "" && strings.TrimSpace(m.Source) != "" {
		parsed, err := models.ParseIngestSource(m.Source)
		if err != nil {
			return err
		}
		*source = parsed
	}
	return nil
}

func parseDatetime(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q (want RFC3339 or YYYY-MM-DD)", raw)
}
