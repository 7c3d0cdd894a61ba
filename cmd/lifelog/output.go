package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"lifelog/internal/format"
	"lifelog/internal/ingest"
	"lifelog/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

// stdout receives command output. Tests swap it for a buffer.
var stdout io.Writer = os.Stdout

func writeStructured(payload any) error {
	return outputFormatter.Write(stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(stdout, format, args...)
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatMediaLine(m models.Media) string {
	summary := m.Description
	if summary == "" && m.Category == models.CategoryText {
		summary = string(m.Payload)
	}
	return fmt.Sprintf("%s  %-5s  %-15s  %s  %s", m.Key, m.Category, m.Source, formatTime(m.Datetime), truncate(oneLine(summary), 60))
}

func writeMediaList(items []models.Media) error {
	for _, m := range items {
		if err := writePlain("%s\n", formatMediaLine(m)); err != nil {
			return err
		}
	}
	return nil
}

func writeMediaDetail(m models.Media, results []models.ActionResult) error {
	lines := []string{
		fmt.Sprintf("key: %s", m.Key),
		fmt.Sprintf("category: %s", m.Category),
		fmt.Sprintf("content_type: %s", m.ContentType),
		fmt.Sprintf("source: %s", m.Source),
		fmt.Sprintf("datetime: %s", formatTime(m.Datetime)),
		fmt.Sprintf("created: %s", formatTime(m.Created)),
		fmt.Sprintf("size: %d bytes", len(m.Payload)),
	}
	if m.Filename != "" {
		lines = append(lines, fmt.Sprintf("filename: %s", m.Filename))
	}
	if m.Description != "" {
		lines = append(lines, fmt.Sprintf("description: %s", m.Description))
	}
	if m.Category == models.CategoryText && len(m.Payload) > 0 {
		lines = append(lines, fmt.Sprintf("text: %s", string(m.Payload)))
	}
	if len(results) > 0 {
		lines = append(lines, "results:")
		for _, r := range results {
			lines = append(lines, fmt.Sprintf("  - %s %s: %s", r.Key, r.ActionType, formatValue(r.Value)))
		}
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatTodoLine(t models.Todo) string {
	mark := "[ ]"
	if t.Done {
		mark = "[x]"
	}
	due := ""
	if t.Due != nil {
		due = "  due " + formatTime(*t.Due)
	}
	return fmt.Sprintf("%s %s  %s%s", mark, t.Key, t.Description, due)
}

func writeTodoList(todos []models.Todo) error {
	for _, t := range todos {
		if err := writePlain("%s\n", formatTodoLine(t)); err != nil {
			return err
		}
	}
	return nil
}

func writeResultList(results []models.ActionResult) error {
	for _, r := range results {
		if err := writePlain("%s  %-13s  media=%s  %s  %s\n", r.Key, r.ActionType, r.MediaKey, formatTime(r.Created), formatValue(r.Value)); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(report ingest.Report) error {
	lines := []string{
		fmt.Sprintf("media: %s (%s)", report.Media.Key, report.Media.Category),
		fmt.Sprintf("interpretation: %s", truncate(oneLine(report.Interpretation), 200)),
	}
	actions := make([]string, 0, len(report.Actions))
	for _, a := range report.Actions {
		actions = append(actions, string(a))
	}
	if len(actions) == 0 {
		lines = append(lines, "actions: none")
	} else {
		lines = append(lines, fmt.Sprintf("actions: %s", strings.Join(actions, ", ")))
	}
	if report.Memory != nil {
		lines = append(lines, fmt.Sprintf("memory: %s", *report.Memory))
	}
	if report.Query != nil {
		lines = append(lines, fmt.Sprintf("query: %s", *report.Query))
	}
	for _, r := range report.Results {
		lines = append(lines, fmt.Sprintf("  %s %s: %s", r.ActionType, r.Key, formatValue(r.Value)))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

// formatValue renders an action value as sorted key=value pairs.
func formatValue(value map[string]any) string {
	keys := make([]string, 0, len(value))
	for k := range value {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := value[k]
		if v == nil {
			parts = append(parts, k+"=null")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
