package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"lifelog/internal/action"
	"lifelog/internal/blobstore"
	"lifelog/internal/config"
	"lifelog/internal/ingest"
	"lifelog/internal/llm"
	"lifelog/internal/llm/openai"
	"lifelog/internal/media"
	"lifelog/internal/store"
)

// app holds the components one CLI invocation needs.
type app struct {
	cfg      *config.Config
	store    *store.Store
	media    *media.Service
	pipeline *action.Pipeline
	registry *prometheus.Registry
	logger   *slog.Logger
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := slog.Default()

	blobs, err := openBlobStore(ctx, cfg.Blobs)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.DBPath, store.Options{Blobs: blobs, Logger: logger})
	if err != nil {
		return nil, err
	}
	svc := media.NewService(st)
	return &app{
		cfg:      cfg,
		store:    st,
		media:    svc,
		pipeline: action.NewPipeline(svc, action.DefaultRegistry(), logger),
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func openBlobStore(ctx context.Context, cfg config.BlobConfig) (blobstore.BlobStore, error) {
	switch cfg.Backend {
	case config.BlobBackendInline:
		return nil, nil
	case config.BlobBackendS3:
		return blobstore.NewS3(ctx, blobstore.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			UseSSL:    cfg.S3.UseSSL,
		})
	default:
		if cfg.Root == "" {
			return nil, fmt.Errorf("blobs.root is required for the local backend")
		}
		return blobstore.NewLocalCAS(cfg.Root)
	}
}

// gateway builds the OpenAI client. Token usage goes to the app registry.
func (a *app) gateway() (llm.Gateway, error) {
	telemetry, err := llm.NewTelemetry(a.logger, a.registry)
	if err != nil {
		return nil, err
	}
	return openai.New(openai.Config{
		APIKey:             a.cfg.OpenAI.APIKey,
		BaseURL:            a.cfg.OpenAI.BaseURL,
		ChatModel:          a.cfg.OpenAI.ChatModel,
		TranscriptionModel: a.cfg.OpenAI.TranscriptionModel,
		Timeout:            a.cfg.OpenAI.Timeout(),
		Usage:              telemetry,
		Logger:             a.logger,
	})
}

func (a *app) orchestrator() (*ingest.Orchestrator, error) {
	gw, err := a.gateway()
	if err != nil {
		return nil, err
	}
	return ingest.New(a.media, gw, a.pipeline, a.logger), nil
}

// writeMetrics dumps the token counters when --metrics-file is set.
func (a *app) writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
