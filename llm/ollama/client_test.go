package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/llm"
)

func testRegistry(t *testing.T) *llm.Registry {
	t.Helper()
	registry, err := llm.NewRegistry([]llm.ModelDescriptor{
		{Key: "chat", ModelID: "llama3.2:3b", Timeout: 2 * time.Second},
		{Key: "code", ModelID: "codellama", Timeout: 2 * time.Second},
		{Key: "slow", ModelID: "llama3.1:70b", Timeout: 50 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	return registry
}

func newTestClient(t *testing.T, srv *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.Host = srv.URL
	client, err := NewClient(zerolog.Nop(), testRegistry(t), cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

type generateBody struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  *bool          `json:"stream"`
	Options map[string]any `json:"options"`
}

func TestGenerate_Success(t *testing.T) {
	var got generateBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"hello world"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})
	prompt := strings.Repeat("p", 29)
	res, err := client.Generate(context.Background(), llm.GenerationRequest{ModelKey: "chat", Prompt: prompt})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !res.Success {
		t.Fatalf("Expected success, got %+v", res)
	}
	if res.Text != "hello world" {
		t.Errorf("Expected text %q, got %q", "hello world", res.Text)
	}
	// 29 + 11 = 40 characters
	if res.TokensUsed != 10 {
		t.Errorf("Expected 10 tokens, got %d", res.TokensUsed)
	}
	if res.ModelID != "llama3.2:3b" {
		t.Errorf("Expected model id llama3.2:3b, got %q", res.ModelID)
	}

	if got.Model != "llama3.2:3b" || got.Prompt != prompt {
		t.Errorf("Unexpected payload %+v", got)
	}
	if got.Stream == nil || *got.Stream {
		t.Error("Expected stream=false in payload")
	}
	if got.Options["temperature"] != 0.7 || got.Options["top_p"] != 0.9 {
		t.Errorf("Expected default sampling options, got %v", got.Options)
	}
	if got.Options["max_tokens"] != float64(2048) {
		t.Errorf("Expected max_tokens 2048, got %v", got.Options["max_tokens"])
	}
	if stop, ok := got.Options["stop"].([]any); !ok || len(stop) != 0 {
		t.Errorf("Expected empty stop list, got %#v", got.Options["stop"])
	}
}

func TestGenerate_TrimsWhitespace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"\n  hello world \n"}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv, Config{}).Generate(context.Background(), llm.GenerationRequest{ModelKey: "chat", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.Text != "hello world" {
		t.Errorf("Expected trimmed text, got %q", res.Text)
	}
}

func TestGenerate_ReplyShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		success bool
		want    string
	}{
		{name: "response field", body: `{"response":"hello world"}`, success: true, want: "hello world"},
		{name: "content field", body: `{"content":"hello world"}`, success: true, want: "hello world"},
		{name: "response wins over content", body: `{"response":"first","content":"second"}`, success: true, want: "first"},
		{name: "multi-line JSON", body: "{\n  \"model\": \"llama3.2:3b\",\n  \"response\": \"hello world\"\n}\n", success: true, want: "hello world"},
		{name: "no text field", body: `{}`, want: "no text"},
		{name: "blank text", body: `{"response":"  \n"}`, want: "no text"},
		{name: "error field", body: `{"error":"model is loading"}`, want: "model is loading"},
		{name: "malformed", body: `{"response":`, want: "malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res, err := newTestClient(t, srv, Config{}).Generate(context.Background(), llm.GenerationRequest{ModelKey: "chat", Prompt: "hi"})
			if err != nil {
				t.Fatalf("Generate returned error: %v", err)
			}
			if res.Success != tt.success {
				t.Fatalf("Expected success=%v, got %+v", tt.success, res)
			}
			if tt.success {
				if res.Text != tt.want {
					t.Errorf("Expected text %q, got %q", tt.want, res.Text)
				}
				return
			}
			if res.Text != "" || res.TokensUsed != 0 {
				t.Errorf("Failed results must carry no text or tokens, got %+v", res)
			}
			if !strings.Contains(res.Error, tt.want) {
				t.Errorf("Expected error to contain %q, got %q", tt.want, res.Error)
			}
		})
	}
}

func TestGenerate_NoTextTripsBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{Breaker: BreakerConfig{MaxFailures: 2, Timeout: time.Minute}})
	for i := 0; i < 3; i++ {
		_, _ = client.Generate(context.Background(), llm.GenerationRequest{ModelKey: "chat", Prompt: "hi"})
	}
	if hits.Load() != 2 {
		t.Errorf("Expected breaker to open after 2 empty replies, hits=%d", hits.Load())
	}
}

func TestGenerate_UnknownModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Backend must not be called for unknown model keys")
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv, Config{}).Generate(context.Background(), llm.GenerationRequest{ModelKey: "nope", Prompt: "hi"})
	if !llm.IsConfigurationError(err) {
		t.Fatalf("Expected configuration error, got %v", err)
	}
	if res.Success {
		t.Error("Expected failed result")
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		modelKey string
		contains string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("model crashed"))
			},
			modelKey: "chat",
			contains: "500",
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte("model not found"))
			},
			modelKey: "chat",
			contains: "404",
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			modelKey: "chat",
			contains: "empty body",
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			},
			modelKey: "slow",
			contains: "timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			res, err := newTestClient(t, srv, Config{}).Generate(context.Background(), llm.GenerationRequest{ModelKey: tt.modelKey, Prompt: "hi"})
			if err != nil {
				t.Fatalf("Generate must not return an error for backend failures, got %v", err)
			}
			if res.Success {
				t.Fatal("Expected failure")
			}
			if res.ElapsedMs != 0 || res.TokensUsed != 0 {
				t.Errorf("Failed results must have zero elapsed and tokens, got %+v", res)
			}
			if !strings.Contains(res.Error, tt.contains) {
				t.Errorf("Expected error to contain %q, got %q", tt.contains, res.Error)
			}
		})
	}
}

func TestGenerate_ConnectionRefused(t *testing.T) {
	client, err := NewClient(zerolog.Nop(), testRegistry(t), Config{Host: "http://127.0.0.1:1", ConnectTimeout: time.Second})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	for _, key := range []string{"chat", "code", "slow"} {
		res, err := client.Generate(context.Background(), llm.GenerationRequest{ModelKey: key, Prompt: "hi"})
		if err != nil {
			t.Fatalf("Generate returned error for %s: %v", key, err)
		}
		if res.Success || res.Error == "" {
			t.Errorf("Expected explicit failure for %s, got %+v", key, res)
		}
	}
}

func TestGenerate_CircuitOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("overloaded"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{Breaker: BreakerConfig{MaxFailures: 2, Timeout: time.Minute}})
	req := llm.GenerationRequest{ModelKey: "chat", Prompt: "hi"}

	for i := 0; i < 2; i++ {
		if res, _ := client.Generate(context.Background(), req); res.Success {
			t.Fatal("Expected failure")
		}
	}
	res, err := client.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(res.Error, "temporarily unavailable") {
		t.Errorf("Expected circuit open failure, got %q", res.Error)
	}
	if hits.Load() != 2 {
		t.Errorf("Expected backend to be hit twice, got %d", hits.Load())
	}

	// Breakers are per model: other keys still reach the backend.
	_, _ = client.Generate(context.Background(), llm.GenerationRequest{ModelKey: "code", Prompt: "hi"})
	if hits.Load() != 3 {
		t.Errorf("Expected code model to reach backend, hits=%d", hits.Load())
	}
}

func TestGenerate_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad options"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{Breaker: BreakerConfig{MaxFailures: 1}})
	for i := 0; i < 3; i++ {
		_, _ = client.Generate(context.Background(), llm.GenerationRequest{ModelKey: "chat", Prompt: "hi"})
	}
	if hits.Load() != 3 {
		t.Errorf("Expected every call to reach backend, got %d", hits.Load())
	}
}
