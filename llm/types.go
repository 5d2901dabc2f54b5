package llm

import (
	"time"
	"unicode/utf8"
)

// Default sampling options applied to every generate call.
const (
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
	DefaultMaxTokens   = 2048
)

// GenerationOptions holds the sampling parameters sent to the backend.
// Nil fields fall back to the package defaults.
type GenerationOptions struct {
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	TopP        *float64 `yaml:"top_p,omitempty" json:"top_p,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Stop        []string `yaml:"stop,omitempty" json:"stop,omitempty"`
}

// WithDefaults returns a copy of o with every unset field defaulted.
func (o GenerationOptions) WithDefaults() GenerationOptions {
	out := o
	if out.Temperature == nil {
		out.Temperature = Float64(DefaultTemperature)
	}
	if out.TopP == nil {
		out.TopP = Float64(DefaultTopP)
	}
	if out.MaxTokens == nil {
		out.MaxTokens = Int(DefaultMaxTokens)
	}
	if out.Stop == nil {
		out.Stop = []string{}
	}
	return out
}

// Map renders the options in the backend's wire format.
func (o GenerationOptions) Map() map[string]any {
	d := o.WithDefaults()
	return map[string]any{
		"temperature": *d.Temperature,
		"top_p":       *d.TopP,
		"max_tokens":  *d.MaxTokens,
		"stop":        d.Stop,
	}
}

// GenerationRequest is built per call and discarded afterwards.
type GenerationRequest struct {
	ModelKey string
	Prompt   string
	Options  GenerationOptions
}

// GenerationResult is always populated, even when the call failed.
// A failed result has ElapsedMs and TokensUsed set to zero.
type GenerationResult struct {
	Success    bool   `json:"success"`
	Text       string `json:"text"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	TokensUsed int    `json:"tokens_used"`
	Error      string `json:"error,omitempty"`
	ModelKey   string `json:"model_key"`
	ModelID    string `json:"model_id"`
}

// FailedResult builds a failure result for the given descriptor.
func FailedResult(desc ModelDescriptor, err error) GenerationResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return GenerationResult{
		Success:  false,
		Error:    msg,
		ModelKey: desc.Key,
		ModelID:  desc.ModelID,
	}
}

// TextLength is the length of s in characters (runes). Token estimates,
// model selection and importance scoring all measure text this way.
func TextLength(s string) int {
	return utf8.RuneCountInString(s)
}

// EstimateTokens approximates token usage as one token per four characters,
// rounded up.
func EstimateTokens(prompt, text string) int {
	n := TextLength(prompt) + TextLength(text)
	return (n + 3) / 4
}

// ModelHealth is a point-in-time snapshot of one registered backend.
type ModelHealth struct {
	Key       string    `json:"key"`
	ModelID   string    `json:"model_id"`
	Online    bool      `json:"online"`
	Reachable bool      `json:"reachable"`
	Loaded    bool      `json:"loaded"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// GatewayHealth aggregates the gateway liveness probe with every registered model.
type GatewayHealth struct {
	Online      bool                   `json:"online"`
	Version     string                 `json:"version,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Models      map[string]ModelHealth `json:"models"`
	OnlineCount int                    `json:"online_count"`
	Total       int                    `json:"total"`
	CheckedAt   time.Time              `json:"checked_at"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
