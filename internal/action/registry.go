// Package action holds the catalog of model-selectable actions and the
// pipeline that validates, records, and applies them.
package action

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lifelog/internal/media"
	"lifelog/internal/models"
	"lifelog/internal/schema"
)

var (
	ErrUnknownActionType = errors.New("unknown action type")
	ErrTodoNotFound      = errors.New("todo not found")
)

// PromptFunc builds the system prompt for an action. It may read the store.
type PromptFunc func(ctx context.Context, svc *media.Service, m models.Media) (string, error)

// PerformFunc applies an action's side effect with its validated payload.
type PerformFunc func(ctx context.Context, svc *media.Service, key string, m models.Media, payload any) error

// Definition describes one action. Perform may be nil.
type Definition struct {
	Type       models.ActionType
	NewPayload func() any
	Prompt     PromptFunc
	Perform    PerformFunc
}

// Format returns the structured-output contract for the action payload.
func (d Definition) Format() (schema.Format, error) {
	return schema.For(string(d.Type), d.NewPayload())
}

// define binds a typed payload contract to a Definition.
func define[T any](typ models.ActionType, prompt PromptFunc, perform func(ctx context.Context, svc *media.Service, key string, m models.Media, payload *T) error) Definition {
	def := Definition{
		Type:       typ,
		NewPayload: func() any { return new(T) },
		Prompt:     prompt,
	}
	if perform != nil {
		def.Perform = func(ctx context.Context, svc *media.Service, key string, m models.Media, payload any) error {
			typed, ok := payload.(*T)
			if !ok {
				return fmt.Errorf("%s: unexpected payload %T", typ, payload)
			}
			return perform(ctx, svc, key, m, typed)
		}
	}
	return def
}

// Registry maps action types to definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[models.ActionType]Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: map[models.ActionType]Definition{}}
}

// DefaultRegistry registers the built-in actions. DATAPOINT has no handler.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range []Definition{foodEstimate(), todoCreate(), todoComplete()} {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a definition. Types outside the catalog and duplicates are rejected.
func (r *Registry) Register(def Definition) error {
	if !models.IsValidActionType(def.Type) {
		return fmt.Errorf("%w: %s", ErrUnknownActionType, def.Type)
	}
	if def.NewPayload == nil || def.Prompt == nil {
		return fmt.Errorf("action %s: payload and prompt are required", def.Type)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Type]; exists {
		return fmt.Errorf("action %s already registered", def.Type)
	}
	r.defs[def.Type] = def
	return nil
}

// Lookup returns the definition for t or ErrUnknownActionType.
func (r *Registry) Lookup(t models.ActionType) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[t]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownActionType, t)
	}
	return def, nil
}

// Types lists registered action types in catalog order.
func (r *Registry) Types() []models.ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ActionType
	for _, t := range models.ActionTypes() {
		if _, ok := r.defs[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
