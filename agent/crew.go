package agent

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/config"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/llm"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/memory"
)

// Crew holds one engine per enabled agent type.
type Crew struct {
	engines map[string]*Engine
	logger  zerolog.Logger
}

// NewCrew builds an engine for every enabled agent in cfg.
func NewCrew(
	logger zerolog.Logger,
	cfg *config.ServerConfig,
	generator llm.Generator,
	registry *llm.Registry,
	selector *llm.Selector,
	memoryWriter memory.Writer,
	opts ...Option,
) (*Crew, error) {
	c := &Crew{
		engines: make(map[string]*Engine),
		logger:  logger.With().Str("component", "crew").Logger(),
	}

	opts = append([]Option{WithStreaming(cfg.Streaming.ChunkSize, cfg.Streaming.Pacing)}, opts...)
	for agentType, profile := range cfg.EnabledAgents() {
		engine, err := NewEngine(logger, profile, cfg.Generation, generator, registry, selector, memoryWriter, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build engine for agent %q: %w", agentType, err)
		}
		c.engines[agentType] = engine
		c.logger.Info().
			Str("agentType", agentType).
			Str("model", engine.runtime.ModelKey).
			Bool("explicitModel", engine.runtime.ExplicitModel).
			Msg("Agent engine ready")
	}
	return c, nil
}

// Engine returns the engine for agentType.
func (c *Crew) Engine(agentType string) (*Engine, bool) {
	e, ok := c.engines[agentType]
	return e, ok
}

// Types returns the agent types in the crew, sorted.
func (c *Crew) Types() []string {
	types := make([]string, 0, len(c.engines))
	for t := range c.engines {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
