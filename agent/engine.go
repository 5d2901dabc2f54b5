// Package agent turns agent profiles into persona-conditioned generate calls
// and keeps a short in-memory conversation per agent type.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/config"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/llm"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/memory"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/tracing"
)

// historyWindow is how many caller-supplied exchanges go into the prompt.
const historyWindow = 3

// Streaming defaults.
const (
	DefaultChunkSize = 50
	DefaultPacing    = 50 * time.Millisecond
)

// Metadata describes how a response was produced.
type Metadata struct {
	CapabilitiesUsed   []string  `json:"capabilities_used"`
	PersonalityApplied bool      `json:"personality_applied"`
	PromptLength       int       `json:"prompt_length"`
	Timestamp          time.Time `json:"timestamp"`
}

// Response is the envelope returned for every processed request.
type Response struct {
	Success    bool     `json:"success"`
	Text       string   `json:"text"`
	Error      string   `json:"error,omitempty"`
	AgentType  string   `json:"agent_type"`
	AgentName  string   `json:"agent_name"`
	ModelKey   string   `json:"model_key"`
	ModelID    string   `json:"model_id"`
	ElapsedMs  int64    `json:"elapsed_ms"`
	TokensUsed int      `json:"tokens_used"`
	Metadata   Metadata `json:"metadata"`
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithStyler sets the post-processing applied to successful responses.
func WithStyler(styler ResponseStyler) Option {
	return func(e *Engine) {
		if styler != nil {
			e.styler = styler
		}
	}
}

// WithStreaming sets the chunk size and pacing delay used by Stream.
func WithStreaming(chunkSize int, pacing time.Duration) Option {
	return func(e *Engine) {
		if chunkSize > 0 {
			e.chunkSize = chunkSize
		}
		if pacing >= 0 {
			e.pacing = pacing
		}
	}
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine answers requests on behalf of one agent type.
type Engine struct {
	profile   *config.AgentConfig
	runtime   RuntimeConfig
	generator llm.Generator
	registry  *llm.Registry
	selector  *llm.Selector
	memory    memory.Writer // optional
	styler    ResponseStyler
	chunkSize int
	pacing    time.Duration
	now       func() time.Time
	log       *ConversationLog
	logger    zerolog.Logger
}

// NewEngine resolves the agent's runtime configuration and verifies its
// model is registered. memoryWriter may be nil.
func NewEngine(
	logger zerolog.Logger,
	profile *config.AgentConfig,
	defaults llm.GenerationOptions,
	generator llm.Generator,
	registry *llm.Registry,
	selector *llm.Selector,
	memoryWriter memory.Writer,
	opts ...Option,
) (*Engine, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile is required for Engine")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required for Engine")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry is required for Engine")
	}

	rc, err := buildRuntimeConfig(profile, defaults, registry, selector)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		profile:   profile,
		runtime:   rc,
		generator: generator,
		registry:  registry,
		selector:  selector,
		memory:    memoryWriter,
		styler:    NoopStyler{},
		chunkSize: DefaultChunkSize,
		pacing:    DefaultPacing,
		now:       time.Now,
		log:       NewConversationLog(MaxTurns),
		logger: logger.With().
			Str("component", "agentEngine").
			Str("agentType", profile.Type).
			Logger(),
	}
	if len(profile.Vocabulary) > 0 {
		e.styler = NewVocabularyStyler(profile.Vocabulary)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Runtime returns the engine's resolved configuration.
func (e *Engine) Runtime() RuntimeConfig {
	return e.runtime
}

// History returns the in-memory conversation, oldest first.
func (e *Engine) History() []Turn {
	return e.log.Turns()
}

// Process answers input. Backend failures produce an unsuccessful Response
// carrying an apology; the only returned error is a *llm.ConfigurationError.
func (e *Engine) Process(ctx context.Context, input string, rc RequestContext) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "agent.process",
		tracing.String("agent.type", e.profile.Type),
	)
	defer span.End()

	prompt := e.buildPrompt(input, rc)
	promptLen := llm.TextLength(prompt)
	modelKey := e.resolveModel(rc, promptLen)
	desc, err := e.registry.Lookup(modelKey)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(tracing.String("model.key", modelKey), tracing.Int("prompt.length", promptLen))

	result, err := e.generator.Generate(ctx, llm.GenerationRequest{
		ModelKey: modelKey,
		Prompt:   prompt,
		Options:  e.runtime.Options,
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	now := e.now()
	resp := &Response{
		Success:   result.Success,
		AgentType: e.profile.Type,
		AgentName: e.profile.Name,
		ModelKey:  modelKey,
		ModelID:   desc.ModelID,
		Metadata: Metadata{
			CapabilitiesUsed:   detectCapabilities(e.runtime.Capabilities, input),
			PersonalityApplied: e.runtime.Preamble != "",
			PromptLength:       promptLen,
			Timestamp:          now,
		},
	}

	if !result.Success {
		e.logger.Warn().
			Str("model", modelKey).
			Str("error", result.Error).
			Msg("Generation failed, returning apology")
		resp.Text = e.apology()
		resp.Error = result.Error
		tracing.RecordError(span, errors.New(result.Error))
		return resp, nil
	}

	resp.Text = e.postProcess(result.Text)
	resp.ElapsedMs = result.ElapsedMs
	resp.TokensUsed = result.TokensUsed

	e.log.Append(now, input, resp.Text, rc)
	e.remember(ctx, input, resp.Text)

	e.logger.Debug().
		Str("model", modelKey).
		Int64("elapsedMs", resp.ElapsedMs).
		Int("tokens", resp.TokensUsed).
		Strs("capabilities", resp.Metadata.CapabilitiesUsed).
		Msg("Processed request")
	tracing.SetOK(span)
	return resp, nil
}

func (e *Engine) resolveModel(rc RequestContext, promptLen int) string {
	if e.runtime.ExplicitModel || e.selector == nil {
		return e.runtime.ModelKey
	}
	taskType := e.runtime.TaskType
	if rc.TaskType != "" {
		taskType = rc.TaskType
	}
	return e.selector.Select(taskType, promptLen)
}

func (e *Engine) buildPrompt(input string, rc RequestContext) string {
	var b strings.Builder
	b.WriteString(e.runtime.Preamble)
	b.WriteString("\n\n")

	if len(rc.History) > 0 {
		recent := rc.History
		if len(recent) > historyWindow {
			recent = recent[len(recent)-historyWindow:]
		}
		b.WriteString("Recent conversation:\n")
		for _, ex := range recent {
			fmt.Fprintf(&b, "User: %s\n%s: %s\n", ex.Input, e.profile.Name, ex.Response)
		}
		b.WriteString("\n")
	}

	if note := strings.TrimSpace(rc.Note); note != "" {
		fmt.Fprintf(&b, "Additional context: %s\n\n", note)
	}

	fmt.Fprintf(&b, "User: %s\n%s:", input, e.profile.Name)
	return b.String()
}

// postProcess trims the text, drops a leading "<Name>:" echo and applies the styler.
func (e *Engine) postProcess(text string) string {
	text = strings.TrimSpace(text)
	cue := e.profile.Name + ":"
	if len(text) >= len(cue) && strings.EqualFold(text[:len(cue)], cue) {
		text = strings.TrimSpace(text[len(cue):])
	}
	return e.styler.Style(text)
}

func (e *Engine) apology() string {
	if e.profile.FailureMessage != "" {
		return e.profile.FailureMessage
	}
	return fmt.Sprintf("I'm sorry, this is %s and I can't put together an answer right now. Please try again in a moment.", e.profile.Name)
}

func (e *Engine) remember(ctx context.Context, input, response string) {
	if e.memory == nil {
		return
	}
	_, err := e.memory.Remember(ctx, memory.Entry{
		Owner:      e.profile.Type,
		Category:   memory.CategoryConversation,
		Content:    fmt.Sprintf("User: %s\n%s: %s", input, e.profile.Name, response),
		Importance: scoreImportance(input, response),
		ExpiresAt:  e.now().Add(memory.DefaultTTL),
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist conversation memory")
	}
}
