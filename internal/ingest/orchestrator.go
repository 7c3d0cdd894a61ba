// Package ingest drives one media record through interpretation, action
// selection, and action execution.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"lifelog/internal/action"
	"lifelog/internal/llm"
	"lifelog/internal/media"
	"lifelog/internal/models"
)

// ErrMediaNotFound is returned by ProcessKey for unknown keys.
var ErrMediaNotFound = errors.New("media not found")

// Report is the outcome of processing one media record.
type Report struct {
	Media          models.Media          `json:"media"`
	Interpretation string                `json:"interpretation"`
	Actions        []models.ActionType   `json:"actions"`
	Memory         *string               `json:"memory"`
	Query          *string               `json:"query"`
	Results        []models.ActionResult `json:"results"`
	Errors         []string              `json:"errors,omitempty"`
}

// Orchestrator runs the ingestion flow sequentially with no retries.
type Orchestrator struct {
	svc      *media.Service
	gateway  llm.Gateway
	pipeline *action.Pipeline
	logger   *slog.Logger
	newKey   func() string
}

func New(svc *media.Service, gateway llm.Gateway, pipeline *action.Pipeline, logger *slog.Logger) *Orchestrator {
	if pipeline == nil {
		pipeline = action.NewPipeline(svc, nil, logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		svc:      svc,
		gateway:  gateway,
		pipeline: pipeline,
		logger:   logger,
		newKey:   uuid.NewString,
	}
}

// Ingest stores new media and processes it.
func (o *Orchestrator) Ingest(ctx context.Context, in media.IngestInput) (Report, error) {
	m, err := o.svc.Ingest(ctx, in)
	if err != nil {
		return Report{}, err
	}
	return o.Process(ctx, m)
}

// ProcessKey loads stored media by key and processes it.
func (o *Orchestrator) ProcessKey(ctx context.Context, key string) (Report, error) {
	m, ok, err := o.svc.Media.Get(ctx, key)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return Report{}, fmt.Errorf("media %q: %w", key, ErrMediaNotFound)
	}
	return o.Process(ctx, m)
}

// Process interprets m, asks the model which actions apply, and runs each.
// Interpretation and routing failures abort. Per-action failures are joined
// into the returned error while the remaining actions still run.
func (o *Orchestrator) Process(ctx context.Context, m models.Media) (Report, error) {
	report := Report{Media: m, Results: []models.ActionResult{}}

	interpretation, err := llm.Interpretation(ctx, o.gateway, m)
	if err != nil {
		return report, fmt.Errorf("interpret %s: %w", m.Key, err)
	}
	report.Interpretation = interpretation

	if m.Description == "" && m.Category != models.CategoryText && interpretation != "" {
		m.Description = interpretation
		saved, err := o.svc.Media.Put(ctx, m.Key, m)
		if err != nil {
			return report, fmt.Errorf("save interpretation for %s: %w", m.Key, err)
		}
		report.Media = saved
	}

	identified, err := llm.IdentifyActions(ctx, o.gateway, interpretation)
	if err != nil {
		return report, fmt.Errorf("identify actions for %s: %w", m.Key, err)
	}
	report.Actions = identified.Actions
	report.Memory = identified.Memory
	report.Query = identified.Query
	o.logger.Info("actions identified", "media", m.Key, "actions", identified.Actions)

	var errs []error
	for _, actionType := range identified.Actions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := o.pipeline.Execute(ctx, o.gateway, actionType, o.newKey(), m, interpretation)
		if result.Key != "" {
			report.Results = append(report.Results, result)
		}
		if err != nil {
			o.logger.Warn("action failed", "media", m.Key, "action", actionType, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", actionType, err))
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", actionType, err))
			continue
		}
		o.logger.Info("action performed", "media", m.Key, "action", actionType, "key", result.Key)
	}
	return report, errors.Join(errs...)
}
