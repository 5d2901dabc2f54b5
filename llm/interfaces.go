package llm

import (
	"context"
)

// Generator issues a single synchronous generate call.
// Implementations must never return an error for backend or transport
// failures; those are reported through GenerationResult. The only error a
// Generator returns is a *ConfigurationError for an unregistered model key.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// HealthProber reports backend liveness.
type HealthProber interface {
	// ModelStatus probes a single registered model.
	ModelStatus(ctx context.Context, key string) (ModelHealth, error)

	// Status probes the gateway and every registered model.
	Status(ctx context.Context) GatewayHealth
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerationRequest) (GenerationResult, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	return f(ctx, req)
}

// Ensure GeneratorFunc implements Generator
var _ Generator = GeneratorFunc(nil)
