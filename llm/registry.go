package llm

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ModelDescriptor describes one generation backend reachable through the shared
// inference endpoint.
type ModelDescriptor struct {
	Key          string        `yaml:"key" json:"key"`
	ModelID      string        `yaml:"model" json:"model_id"`
	Description  string        `yaml:"description,omitempty" json:"description,omitempty"`
	Capabilities []string      `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	MaxContext   int           `yaml:"max_context,omitempty" json:"max_context"`
	Timeout      time.Duration `yaml:"timeout,omitempty" json:"timeout"`
}

// HasCapability reports whether the descriptor carries the given tag.
func (d ModelDescriptor) HasCapability(tag string) bool {
	return lo.Contains(d.Capabilities, strings.ToLower(strings.TrimSpace(tag)))
}

// Registry is the read-only catalogue of backends. It is built once at
// startup and never mutated, so concurrent reads need no locking.
type Registry struct {
	models map[string]ModelDescriptor
	keys   []string
}

// NewRegistry validates and freezes the given descriptors.
func NewRegistry(descriptors []ModelDescriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, &ConfigurationError{Reason: "model registry is empty"}
	}

	models := make(map[string]ModelDescriptor, len(descriptors))
	for _, d := range descriptors {
		key := strings.TrimSpace(d.Key)
		if key == "" {
			return nil, &ConfigurationError{Reason: "model descriptor without key"}
		}
		if _, dup := models[key]; dup {
			return nil, &ConfigurationError{Key: key, Reason: "registered twice"}
		}
		if strings.TrimSpace(d.ModelID) == "" {
			return nil, &ConfigurationError{Key: key, Reason: "backend model id is empty"}
		}
		if d.Timeout <= 0 {
			return nil, &ConfigurationError{Key: key, Reason: fmt.Sprintf("timeout must be positive, got %v", d.Timeout)}
		}

		// Copy the capability slice so callers cannot mutate the registry.
		d.Key = key
		d.Capabilities = lo.Map(d.Capabilities, func(c string, _ int) string {
			return strings.ToLower(strings.TrimSpace(c))
		})
		models[key] = d
	}

	keys := lo.Keys(models)
	sort.Strings(keys)

	return &Registry{models: models, keys: keys}, nil
}

// Lookup returns the descriptor for key or a *ConfigurationError.
func (r *Registry) Lookup(key string) (ModelDescriptor, error) {
	d, ok := r.models[key]
	if !ok {
		return ModelDescriptor{}, &ConfigurationError{Key: key, Reason: "not registered"}
	}
	return d, nil
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	_, ok := r.models[key]
	return ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Descriptors returns every descriptor in key order.
func (r *Registry) Descriptors() []ModelDescriptor {
	return lo.Map(r.keys, func(k string, _ int) ModelDescriptor {
		return r.models[k]
	})
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	return len(r.keys)
}
