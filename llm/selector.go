package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Task types understood by the selector.
const (
	TaskCode        = "code"
	TaskCreative    = "creative"
	TaskAnalysis    = "analysis"
	TaskChat        = "chat"
	TaskSpecialized = "specialized"
)

// DefaultCodeLengthThreshold is the prompt length above which code tasks are
// routed to the higher-context backend.
const DefaultCodeLengthThreshold = 4000

// SelectorConfig maps task types to registry keys.
type SelectorConfig struct {
	Routes              map[string]string `yaml:"routes,omitempty"`
	LongCodeKey         string            `yaml:"long_code_key,omitempty"`
	CodeLengthThreshold int               `yaml:"code_length_threshold,omitempty"`
	DefaultKey          string            `yaml:"default_key,omitempty"`
}

// Selector is a pure mapping from {task type, prompt length} to a registry key.
// It holds no references to I/O and is safe to share.
type Selector struct {
	routes      map[string]string
	longCodeKey string
	threshold   int
	defaultKey  string
}

// NewSelector builds a Selector. An empty DefaultKey is a configuration error.
func NewSelector(cfg SelectorConfig) (*Selector, error) {
	if strings.TrimSpace(cfg.DefaultKey) == "" {
		return nil, &ConfigurationError{Reason: "selector default key is empty"}
	}
	threshold := cfg.CodeLengthThreshold
	if threshold <= 0 {
		threshold = DefaultCodeLengthThreshold
	}

	routes := make(map[string]string, len(cfg.Routes))
	for task, key := range cfg.Routes {
		routes[normalizeTask(task)] = key
	}

	longCode := cfg.LongCodeKey
	if longCode == "" {
		longCode = routes[TaskCode]
	}

	return &Selector{
		routes:      routes,
		longCodeKey: longCode,
		threshold:   threshold,
		defaultKey:  cfg.DefaultKey,
	}, nil
}

// Select returns the registry key for a task. Identical inputs always yield
// identical output.
func (s *Selector) Select(taskType string, promptLen int) string {
	task := normalizeTask(taskType)

	if task == TaskCode && promptLen > s.threshold && s.longCodeKey != "" {
		return s.longCodeKey
	}
	if key, ok := s.routes[task]; ok && key != "" {
		return key
	}
	return s.defaultKey
}

// Threshold returns the code length threshold in effect.
func (s *Selector) Threshold() int {
	return s.threshold
}

// Validate checks that every key the selector can return is registered.
func (s *Selector) Validate(registry *Registry) error {
	targets := append(lo.Values(s.routes), s.defaultKey)
	if s.longCodeKey != "" {
		targets = append(targets, s.longCodeKey)
	}

	missing := lo.Uniq(lo.Filter(targets, func(key string, _ int) bool {
		return key != "" && !registry.Has(key)
	}))
	if len(missing) > 0 {
		sort.Strings(missing)
		return &ConfigurationError{Reason: fmt.Sprintf("selector routes to unregistered models %v", missing)}
	}
	return nil
}

func normalizeTask(task string) string {
	return strings.ToLower(strings.TrimSpace(task))
}
