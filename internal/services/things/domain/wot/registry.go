package wot

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Resolver resolves a definition URL to its Thing Model.
type Resolver interface {
	Resolve(ctx context.Context, definition string) (Model, error)
}

// Registry is an in-memory Resolver.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
}

// NewRegistry returns a registry holding models.
func NewRegistry(models ...Model) *Registry {
	r := &Registry{models: make(map[string]Model, len(models))}
	for _, m := range models {
		r.models[m.ID] = m
	}
	return r
}

// Put stores or replaces a model.
func (r *Registry) Put(m Model) error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrModelInvalid)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[m.ID] = m
	return nil
}

// Resolve implements Resolver.
func (r *Registry) Resolve(ctx context.Context, definition string) (Model, error) {
	if err := ctx.Err(); err != nil {
		return Model{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[strings.TrimSpace(definition)]
	if !ok {
		return Model{}, fmt.Errorf("%w: %s", ErrModelNotFound, definition)
	}
	return m, nil
}
