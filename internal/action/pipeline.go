package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"lifelog/internal/llm"
	"lifelog/internal/media"
	"lifelog/internal/models"
	"lifelog/internal/schema"
)

// Pipeline runs actions against stored media.
type Pipeline struct {
	svc      *media.Service
	registry *Registry
	logger   *slog.Logger
}

// NewPipeline uses the DefaultRegistry when registry is nil.
func NewPipeline(svc *media.Service, registry *Registry, logger *slog.Logger) *Pipeline {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{svc: svc, registry: registry, logger: logger}
}

func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Prompt returns the system prompt for actionType given m.
func (p *Pipeline) Prompt(ctx context.Context, actionType models.ActionType, m models.Media) (string, error) {
	def, err := p.registry.Lookup(actionType)
	if err != nil {
		return "", err
	}
	return def.Prompt(ctx, p.svc, m)
}

// PerformAction validates raw against the action contract, records the
// ActionResult under key, then applies the side effect. A validation failure
// writes nothing. A side-effect failure is returned together with the
// already-recorded result.
func (p *Pipeline) PerformAction(ctx context.Context, actionType models.ActionType, key string, m models.Media, raw []byte) (models.ActionResult, error) {
	def, err := p.registry.Lookup(actionType)
	if err != nil {
		return models.ActionResult{}, err
	}

	payload := def.NewPayload()
	if err := schema.Decode(raw, payload); err != nil {
		return models.ActionResult{}, err
	}
	value, err := schema.ToMap(payload)
	if err != nil {
		return models.ActionResult{}, fmt.Errorf("encode %s payload: %w", actionType, err)
	}

	now := p.svc.Now()
	result, err := p.svc.ActionResults.Put(ctx, key, models.ActionResult{
		Key:        key,
		MediaKey:   m.Key,
		ActionType: actionType,
		Value:      value,
		Datetime:   now,
		Created:    now,
	})
	if err != nil {
		return models.ActionResult{}, err
	}
	p.logger.Debug("action recorded", "action", actionType, "key", key, "media", m.Key)

	if def.Perform == nil {
		return result, nil
	}
	if err := def.Perform(ctx, p.svc, key, m, payload); err != nil {
		return result, fmt.Errorf("%s side effect: %w", actionType, err)
	}
	return result, nil
}

// Execute asks gw for the action payload using the action prompt and
// interpretation, then performs it.
func (p *Pipeline) Execute(ctx context.Context, gw llm.Gateway, actionType models.ActionType, key string, m models.Media, interpretation string) (models.ActionResult, error) {
	def, err := p.registry.Lookup(actionType)
	if err != nil {
		return models.ActionResult{}, err
	}
	prompt, err := def.Prompt(ctx, p.svc, m)
	if err != nil {
		return models.ActionResult{}, fmt.Errorf("%s prompt: %w", actionType, err)
	}
	payload := def.NewPayload()
	if err := gw.QueryStructured(ctx, prompt, interpretation, payload); err != nil {
		return models.ActionResult{}, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return models.ActionResult{}, fmt.Errorf("encode %s payload: %w", actionType, err)
	}
	return p.PerformAction(ctx, actionType, key, m, raw)
}
