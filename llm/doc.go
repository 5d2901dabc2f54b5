// Package llm holds the backend-neutral pieces of AI request routing.
//
// # Core Concepts
//
//  1. Registry: a read-only catalogue of ModelDescriptor values, built once at startup
//     from configuration and shared by reference. Every lookup resolves to exactly one
//     descriptor or fails with a *ConfigurationError.
//
//  2. Selector: a pure function from {task type, prompt length} to a registry key.
//     Code tasks with long prompts are routed to a higher-context backend.
//
//  3. Generator: the transport contract. Generate never returns an error for a
//     backend failure; the failure is captured in GenerationResult with zero elapsed
//     time and zero tokens. Only an unregistered model key is returned as an error.
//
//  4. Errors: Error classifies backend failures (upstream, timeout, network, circuit
//     open, rate limited) for logging, and ConfigurationError marks programmer errors.
//
// Usage Example
//
//	registry, err := llm.NewRegistry(cfg.Models)
//	selector, err := llm.NewSelector(cfg.Selector)
//	client := ollama.NewClient(logger, registry, ollama.Config{Host: cfg.Ollama.Host})
//
//	res, err := client.Generate(ctx, llm.GenerationRequest{
//	    ModelKey: selector.Select(llm.TaskCode, llm.TextLength(prompt)),
//	    Prompt:   prompt,
//	})
//	if err != nil {
//	    // unregistered key: a bug, not an outage
//	}
//	if !res.Success {
//	    // degrade gracefully using res.Error for logs
//	}
package llm
