package agent

import (
	"fmt"
	"strings"

	"dario.cat/mergo"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/config"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/llm"
)

// RuntimeConfig is resolved once per engine and never changes afterwards.
type RuntimeConfig struct {
	ModelKey      string // resolved at construction; per-request routing may differ
	ExplicitModel bool   // profile pinned a model, selector is bypassed
	TaskType      string
	Preamble      string
	Capabilities  []string
	Options       llm.GenerationOptions
	SystemPrompt  string
}

// buildRuntimeConfig merges the global generation defaults with the
// profile's overrides and resolves the default model key.
func buildRuntimeConfig(profile *config.AgentConfig, defaults llm.GenerationOptions, registry *llm.Registry, selector *llm.Selector) (RuntimeConfig, error) {
	opts := defaults
	// Pointers are replaced rather than written through so shared defaults stay intact.
	if err := mergo.Merge(&opts, profile.Generation, mergo.WithOverride, mergo.WithoutDereference); err != nil {
		return RuntimeConfig{}, fmt.Errorf("failed to merge generation options for %q: %w", profile.Type, err)
	}

	rc := RuntimeConfig{
		TaskType:     profile.TaskType,
		Capabilities: append([]string(nil), profile.Capabilities...),
		Options:      opts.WithDefaults(),
		SystemPrompt: strings.TrimSpace(profile.SystemPrompt),
	}
	if rc.TaskType == "" {
		rc.TaskType = llm.TaskChat
	}

	switch {
	case profile.Model != "":
		rc.ModelKey = profile.Model
		rc.ExplicitModel = true
	case selector != nil:
		rc.ModelKey = selector.Select(rc.TaskType, 0)
	default:
		return RuntimeConfig{}, &llm.ConfigurationError{Reason: fmt.Sprintf("agent %q has no model and no selector", profile.Type)}
	}
	if _, err := registry.Lookup(rc.ModelKey); err != nil {
		return RuntimeConfig{}, err
	}

	rc.Preamble = buildPreamble(profile, rc.SystemPrompt)
	return rc, nil
}

// buildPreamble renders the persona description placed at the top of every prompt.
func buildPreamble(profile *config.AgentConfig, systemPrompt string) string {
	var b strings.Builder

	b.WriteString("You are ")
	b.WriteString(profile.Name)
	if profile.Tagline != "" {
		b.WriteString(", ")
		b.WriteString(profile.Tagline)
	}
	b.WriteString(".\n")

	if len(profile.Traits) > 0 {
		fmt.Fprintf(&b, "Personality traits: %s.\n", strings.Join(profile.Traits, ", "))
	}
	if profile.CommunicationStyle != "" {
		fmt.Fprintf(&b, "Communication style: %s.\n", profile.CommunicationStyle)
	}
	if profile.ExpertiseLevel != "" {
		fmt.Fprintf(&b, "Expertise level: %s.\n", profile.ExpertiseLevel)
	}
	if len(profile.Capabilities) > 0 {
		fmt.Fprintf(&b, "You can help with: %s.\n", strings.Join(profile.Capabilities, ", "))
	}
	if systemPrompt != "" {
		b.WriteString(systemPrompt)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Stay in character as %s and answer the user directly.", profile.Name)

	return b.String()
}
