package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/samber/lo"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/llm"
)

// ModelStatus implements llm.HealthProber. The model is online only when the
// gateway answers /api/version and /api/tags lists its backend model id.
func (c *Client) ModelStatus(ctx context.Context, key string) (llm.ModelHealth, error) {
	desc, err := c.registry.Lookup(key)
	if err != nil {
		return llm.ModelHealth{Key: key, Error: err.Error(), CheckedAt: time.Now()}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	if _, err := c.api.Version(ctx); err != nil {
		return offline(desc, fmt.Errorf("gateway liveness probe failed: %w", err)), nil
	}

	list, err := c.api.List(ctx)
	if err != nil {
		h := offline(desc, fmt.Errorf("list models failed: %w", err))
		h.Reachable = true
		return h, nil
	}

	return modelHealth(desc, list.Models), nil
}

// Status implements llm.HealthProber. It probes the gateway once and
// evaluates every registered model against a single model listing.
func (c *Client) Status(ctx context.Context) llm.GatewayHealth {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	descriptors := c.registry.Descriptors()
	health := llm.GatewayHealth{
		Models:    make(map[string]llm.ModelHealth, len(descriptors)),
		Total:     len(descriptors),
		CheckedAt: time.Now(),
	}

	version, err := c.api.Version(ctx)
	if err != nil {
		health.Error = fmt.Sprintf("gateway liveness probe failed: %v", err)
		for _, d := range descriptors {
			health.Models[d.Key] = offline(d, err)
		}
		c.logger.Warn().Err(err).Msg("Inference gateway offline")
		return health
	}
	health.Online = true
	health.Version = version

	list, err := c.api.List(ctx)
	if err != nil {
		health.Error = fmt.Sprintf("list models failed: %v", err)
		for _, d := range descriptors {
			h := offline(d, err)
			h.Reachable = true
			health.Models[d.Key] = h
		}
		return health
	}

	for _, d := range descriptors {
		h := modelHealth(d, list.Models)
		health.Models[d.Key] = h
		if h.Online {
			health.OnlineCount++
		}
	}

	c.logger.Debug().
		Str("version", version).
		Int("online", health.OnlineCount).
		Int("total", health.Total).
		Msg("Inference gateway status")
	return health
}

func offline(desc llm.ModelDescriptor, err error) llm.ModelHealth {
	return llm.ModelHealth{
		Key:       desc.Key,
		ModelID:   desc.ModelID,
		Error:     err.Error(),
		CheckedAt: time.Now(),
	}
}

func modelHealth(desc llm.ModelDescriptor, models []api.ListModelResponse) llm.ModelHealth {
	loaded := lo.ContainsBy(models, func(m api.ListModelResponse) bool {
		return sameModel(m.Name, desc.ModelID) || sameModel(m.Model, desc.ModelID)
	})

	h := llm.ModelHealth{
		Key:       desc.Key,
		ModelID:   desc.ModelID,
		Reachable: true,
		Loaded:    loaded,
		Online:    loaded,
		CheckedAt: time.Now(),
	}
	if !loaded {
		h.Error = fmt.Sprintf("model %s is not loaded", desc.ModelID)
	}
	return h
}

// sameModel compares model names, treating a missing tag as ":latest".
func sameModel(listed, want string) bool {
	if listed == "" {
		return false
	}
	return withTag(listed) == withTag(want)
}

func withTag(name string) string {
	if strings.Contains(name, ":") {
		return name
	}
	return name + ":latest"
}

// Ensure Client implements llm.HealthProber
var _ llm.HealthProber = (*Client)(nil)
