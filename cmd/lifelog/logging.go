package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"lifelog/internal/config"
)

const logLevelEnvKey = "LIFELOG_LOG_LEVEL"

// levelSource names where the effective log level came from.
type levelSource string

const (
	levelFromFlag    levelSource = "flag"
	levelFromEnv     levelSource = "env"
	levelFromConfig  levelSource = "config"
	levelFromDefault levelSource = "default"
)

type levelChoice struct {
	raw    string
	source levelSource
}

// chooseLogLevel applies flag > env > config precedence. Blank values fall
// through.
func chooseLogLevel(flagLevel, envLevel, configLevel string) levelChoice {
	for _, c := range []levelChoice{
		{raw: flagLevel, source: levelFromFlag},
		{raw: envLevel, source: levelFromEnv},
		{raw: configLevel, source: levelFromConfig},
	} {
		if strings.TrimSpace(c.raw) != "" {
			return c
		}
	}
	return levelChoice{source: levelFromDefault}
}

// configureLoggerForCLI installs the default logger. A bad --log-level is an
// error; a bad env or config value degrades to the default level and returns a
// warning for stderr.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	choice := chooseLogLevel(flagLevel, os.Getenv(logLevelEnvKey), configLevel)
	level, err := parseLogLevel(choice.raw)
	if err == nil {
		slog.SetDefault(newLogger(level))
		return "", nil
	}

	var warning string
	switch choice.source {
	case levelFromFlag:
		return "", fmt.Errorf("invalid --log-level %q", choice.raw)
	case levelFromEnv:
		warning = fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", logLevelEnvKey, choice.raw, config.DefaultLogLevel)
	case levelFromConfig:
		warning = fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", choice.raw, config.DefaultLogLevel)
	}
	fallback, _ := parseLogLevel(config.DefaultLogLevel)
	slog.SetDefault(newLogger(fallback))
	return warning, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return slog.LevelInfo, nil
	}
	if strings.EqualFold(value, "warning") {
		value = "warn"
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// newLogger writes text records to stderr so stdout stays clean for --json
// and --yaml. Debug logging also reports call sites.
func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})
	return slog.New(handler).With("app", "lifelog", "version", version)
}
