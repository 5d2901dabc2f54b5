package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/llm"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/tracing"
)

// Default transport settings.
const (
	DefaultHost           = "http://localhost:11434"
	DefaultConnectTimeout = 10 * time.Second
	DefaultHealthTimeout  = 5 * time.Second

	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

// BreakerConfig configures the per-model circuit breaker.
type BreakerConfig struct {
	Disabled    bool          `yaml:"disabled,omitempty"`
	MaxFailures uint32        `yaml:"max_failures,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Interval    time.Duration `yaml:"interval,omitempty"`
}

// Config configures the transport client.
type Config struct {
	Host              string        `yaml:"host,omitempty"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout,omitempty"`
	HealthTimeout     time.Duration `yaml:"health_timeout,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"` // 0 = unlimited
	Burst             int           `yaml:"burst,omitempty"`
	Breaker           BreakerConfig `yaml:"breaker,omitempty"`
}

// Client implements llm.Generator and llm.HealthProber against an
// Ollama-protocol endpoint.
type Client struct {
	api           *api.Client
	http          *http.Client
	generateURL   string
	registry      *llm.Registry
	limiter       *rate.Limiter
	breakers      map[string]*gobreaker.CircuitBreaker[string]
	healthTimeout time.Duration
	logger        zerolog.Logger
}

// NewClient creates a Client for every model in registry.
func NewClient(logger zerolog.Logger, registry *llm.Registry, cfg Config) (*Client, error) {
	if registry == nil {
		return nil, &llm.ConfigurationError{Reason: "model registry is required"}
	}

	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}
	baseURL, err := parseHost(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host: %w", err)
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = DefaultHealthTimeout
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	logger = logger.With().Str("component", "ollamaClient").Logger()

	httpClient := newHTTPClient(connectTimeout)
	c := &Client{
		api:           api.NewClient(baseURL, httpClient),
		http:          httpClient,
		generateURL:   baseURL.JoinPath("/api/generate").String(),
		registry:      registry,
		limiter:       rate.NewLimiter(limit, burst),
		breakers:      make(map[string]*gobreaker.CircuitBreaker[string]),
		healthTimeout: healthTimeout,
		logger:        logger,
	}
	if !cfg.Breaker.Disabled {
		for _, key := range registry.Keys() {
			c.breakers[key] = newBreaker(key, cfg.Breaker, logger)
		}
	}

	logger.Info().
		Str("host", baseURL.String()).
		Dur("connectTimeout", connectTimeout).
		Int("models", registry.Len()).
		Msg("Ollama client initialized")
	return c, nil
}

// newHTTPClient bounds only the dial; the read timeout is applied per model
// through the request context.
func newHTTPClient(connectTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: connectTimeout,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     120 * time.Second,
		},
	}
}

func newBreaker(key string, cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[string] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "model:" + key,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
		// Client errors (4xx) say nothing about backend health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var llmErr *llm.Error
			if !errors.As(err, &llmErr) || llmErr.Type != llm.ErrorTypeUpstream {
				return false
			}
			return llmErr.StatusCode >= http.StatusBadRequest && llmErr.StatusCode < http.StatusInternalServerError
		},
	})
}

// parseHost parses a host string into a URL.
func parseHost(host string) (*url.URL, error) {
	// If host doesn't have a scheme, add http://
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

// Generate implements llm.Generator.
func (c *Client) Generate(ctx context.Context, req llm.GenerationRequest) (llm.GenerationResult, error) {
	desc, err := c.registry.Lookup(req.ModelKey)
	if err != nil {
		c.logger.Error().Err(err).Str("modelKey", req.ModelKey).Msg("Generate called with unregistered model")
		return llm.GenerationResult{ModelKey: req.ModelKey, Error: err.Error()}, err
	}

	ctx, span := tracing.StartSpan(ctx, "llm.generate",
		tracing.String("model.key", desc.Key),
		tracing.String("model.id", desc.ModelID),
		tracing.Int("prompt.length", llm.TextLength(req.Prompt)),
	)
	defer span.End()

	fail := func(err error) (llm.GenerationResult, error) {
		typed := llm.ClassifyTransportError(err)
		tracing.RecordError(span, typed)
		c.logger.Warn().
			Err(typed).
			Str("modelKey", desc.Key).
			Str("errorType", string(typed.Type)).
			Msg("Generate failed")
		return llm.FailedResult(desc, typed), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(llm.NewRateLimitedError(err))
	}

	start := time.Now()
	var text string
	if breaker, ok := c.breakers[desc.Key]; ok {
		text, err = breaker.Execute(func() (string, error) {
			return c.generate(ctx, desc, req)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = llm.NewCircuitOpenError(desc.Key, err)
		}
	} else {
		text, err = c.generate(ctx, desc, req)
	}
	if err != nil {
		return fail(err)
	}

	elapsed := time.Since(start).Milliseconds()
	tokens := llm.EstimateTokens(req.Prompt, text)
	tracing.SetOK(span)

	c.logger.Debug().
		Str("modelKey", desc.Key).
		Int64("elapsedMs", elapsed).
		Int("tokens", tokens).
		Msg("Generate succeeded")

	return llm.GenerationResult{
		Success:    true,
		Text:       text,
		ElapsedMs:  elapsed,
		TokensUsed: tokens,
		ModelKey:   desc.Key,
		ModelID:    desc.ModelID,
	}, nil
}

// generateReply is the non-streamed /api/generate body. Some gateways put
// the text in content instead of response.
type generateReply struct {
	Response string `json:"response"`
	Content  string `json:"content"`
	Error    string `json:"error"`
}

// maxErrorBody caps how much of a failed reply is kept for the error message.
const maxErrorBody = 4 << 10

// generate performs the single non-streaming POST to /api/generate.
func (c *Client) generate(ctx context.Context, desc llm.ModelDescriptor, req llm.GenerationRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, desc.Timeout)
	defer cancel()

	stream := false
	body, err := json.Marshal(&api.GenerateRequest{
		Model:   desc.ModelID,
		Prompt:  req.Prompt,
		Stream:  &stream,
		Options: req.Options.Map(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.generateURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := api.StatusError{StatusCode: resp.StatusCode, Status: resp.Status, ErrorMessage: strings.TrimSpace(string(raw))}
		var reply generateReply
		if json.Unmarshal(raw, &reply) == nil && reply.Error != "" {
			statusErr.ErrorMessage = reply.Error
		}
		return "", llm.NewUpstreamError(fmt.Sprintf("backend returned status %d", resp.StatusCode), resp.StatusCode, statusErr)
	}

	var reply generateReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		if errors.Is(err, io.EOF) {
			return "", llm.NewUpstreamError("backend returned an empty body", resp.StatusCode, nil)
		}
		if callCtx.Err() != nil {
			return "", callCtx.Err()
		}
		return "", llm.NewUpstreamError("backend returned malformed JSON", resp.StatusCode, err)
	}
	if reply.Error != "" {
		return "", llm.NewUpstreamError("backend reported an error: "+reply.Error, resp.StatusCode, nil)
	}

	text := reply.Response
	if strings.TrimSpace(text) == "" {
		text = reply.Content
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", llm.NewUpstreamError("backend returned no text", resp.StatusCode, nil)
	}
	return text, nil
}

// Ensure Client implements llm.Generator
var _ llm.Generator = (*Client)(nil)
