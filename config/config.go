package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/llm"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/llm/ollama"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/tracing"
)

// AgentConfig describes one agent type: its persona, the capabilities it
// advertises, and optional model and sampling overrides.
type AgentConfig struct {
	Type               string                `yaml:"type,omitempty" json:"type"`
	Name               string                `yaml:"name" json:"name"`
	Tagline            string                `yaml:"tagline,omitempty" json:"tagline,omitempty"`
	Traits             []string              `yaml:"traits,omitempty" json:"traits,omitempty"`
	CommunicationStyle string                `yaml:"communication_style,omitempty" json:"communication_style,omitempty"`
	ExpertiseLevel     string                `yaml:"expertise_level,omitempty" json:"expertise_level,omitempty"`
	Capabilities       []string              `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	TaskType           string                `yaml:"task_type,omitempty" json:"task_type,omitempty"` // code, creative, analysis, chat, specialized
	Model              string                `yaml:"model,omitempty" json:"model,omitempty"`         // registry key; overrides task-type selection
	Generation         llm.GenerationOptions `yaml:"generation,omitempty" json:"generation,omitempty"`
	SystemPrompt       string                `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	Vocabulary         map[string]string     `yaml:"vocabulary,omitempty" json:"vocabulary,omitempty"` // word substitutions applied to responses
	FailureMessage     string                `yaml:"failure_message,omitempty" json:"failure_message,omitempty"`
	Disabled           bool                  `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// StoreConfig locates the sqlite database and its migrations.
type StoreConfig struct {
	DBPath         string `yaml:"db_path,omitempty"`
	MigrationsPath string `yaml:"migrations_path,omitempty"`
}

// ResilienceConfig bounds the record store retry loop.
type ResilienceConfig struct {
	Retries     int           `yaml:"retries,omitempty"`
	BackoffUnit time.Duration `yaml:"backoff_unit,omitempty"`
}

// StreamingConfig controls simulated response streaming.
type StreamingConfig struct {
	ChunkSize int           `yaml:"chunk_size,omitempty"`
	Pacing    time.Duration `yaml:"pacing,omitempty"`
}

// SchedulesConfig holds cron expressions or durations for maintenance jobs.
type SchedulesConfig struct {
	Purge  string `yaml:"purge,omitempty"`  // e.g. "@every 1h", "0 */30 * * * *"
	Health string `yaml:"health,omitempty"` // e.g. "30s"
}

// DaemonConfig configures the daemon's listeners.
type DaemonConfig struct {
	GRPC string `yaml:"grpc,omitempty"` // TCP address for the gRPC health service
}

// ServerConfig represents configuration for the agentd daemon.
type ServerConfig struct {
	Server     DaemonConfig            `yaml:"server,omitempty"`
	Ollama     ollama.Config           `yaml:"ollama,omitempty"`
	Models     []llm.ModelDescriptor   `yaml:"models,omitempty"`
	Selector   llm.SelectorConfig      `yaml:"selector,omitempty"`
	Generation llm.GenerationOptions   `yaml:"generation,omitempty"`
	Agents     map[string]*AgentConfig `yaml:"agents,omitempty"`
	Store      StoreConfig             `yaml:"store,omitempty"`
	Resilience ResilienceConfig        `yaml:"resilience,omitempty"`
	Streaming  StreamingConfig         `yaml:"streaming,omitempty"`
	Tracing    tracing.Config          `yaml:"tracing,omitempty"`
	Schedules  SchedulesConfig         `yaml:"schedules,omitempty"`
}

// Defaults returns the built-in configuration every file is merged onto.
func Defaults() ServerConfig {
	return ServerConfig{
		Server: DaemonConfig{GRPC: "localhost:50051"},
		Ollama: ollama.Config{
			Host:           ollama.DefaultHost,
			ConnectTimeout: ollama.DefaultConnectTimeout,
			HealthTimeout:  ollama.DefaultHealthTimeout,
		},
		Models: []llm.ModelDescriptor{
			{Key: "general", ModelID: "llama3.2:3b", Description: "Lightweight general-purpose chat", Capabilities: []string{"chat", "general"}, MaxContext: 4096, Timeout: 30 * time.Second},
			{Key: "code", ModelID: "codellama:7b", Description: "Code generation and review", Capabilities: []string{"code"}, MaxContext: 4096, Timeout: 60 * time.Second},
			{Key: "code-large", ModelID: "deepseek-coder:6.7b", Description: "High-context code model", Capabilities: []string{"code", "long-context"}, MaxContext: 16384, Timeout: 90 * time.Second},
			{Key: "creative", ModelID: "mistral:7b", Description: "Creative writing", Capabilities: []string{"creative", "writing"}, MaxContext: 8192, Timeout: 45 * time.Second},
			{Key: "analysis", ModelID: "llama3.1:8b", Description: "Reasoning and analysis", Capabilities: []string{"analysis", "reasoning"}, MaxContext: 8192, Timeout: 60 * time.Second},
		},
		Selector: llm.SelectorConfig{
			Routes: map[string]string{
				llm.TaskCode:        "code",
				llm.TaskCreative:    "creative",
				llm.TaskAnalysis:    "analysis",
				llm.TaskChat:        "general",
				llm.TaskSpecialized: "analysis",
			},
			LongCodeKey:         "code-large",
			CodeLengthThreshold: llm.DefaultCodeLengthThreshold,
			DefaultKey:          "general",
		},
		Agents: make(map[string]*AgentConfig),
		Store: StoreConfig{
			DBPath:         "agentcore.db",
			MigrationsPath: "", // embedded migrations
		},
		Resilience: ResilienceConfig{
			Retries:     3,
			BackoffUnit: time.Second,
		},
		Streaming: StreamingConfig{
			ChunkSize: 50,
			Pacing:    50 * time.Millisecond,
		},
		Schedules: SchedulesConfig{
			Purge:  "@every 1h",
			Health: "30s",
		},
	}
}

// GetServerConfigPath returns the default user config file path.
// Can be overridden via AGENTS_CORE_CONFIG_PATH environment variable.
func GetServerConfigPath() string {
	if envPath := os.Getenv("AGENTS_CORE_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.agentcore/config.yaml"
	}
	return filepath.Join(homeDir, ".agentcore", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// LoadServerConfig loads server-side configuration.
// Defaults are merged with agents.yaml (AGENTS_CONFIG overrides its path) and
// then with the user config file at path, if it exists. Environment overrides
// are applied last.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := Defaults()

	agentsConfigPath := "agents.yaml"
	explicit := false
	if envPath := os.Getenv("AGENTS_CONFIG"); envPath != "" {
		agentsConfigPath = envPath
		explicit = true
	}

	agentsYAML, err := os.ReadFile(agentsConfigPath) //#nosec 304 -- intentional file read for config
	switch {
	case err == nil:
		if err := mergeYAML(&cfg, agentsYAML); err != nil {
			return nil, fmt.Errorf("failed to load agents config %q: %w", agentsConfigPath, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No agents.yaml in the working directory; built-in defaults only.
	default:
		return nil, fmt.Errorf("failed to read agents config from %q: %w", agentsConfigPath, err)
	}

	if path != "" {
		expandedPath := expandPath(path)
		if _, err := os.Stat(expandedPath); err == nil {
			userYAML, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
			if err != nil {
				return nil, fmt.Errorf("failed to read user config file %q: %w", expandedPath, err)
			}
			if err := mergeYAML(&cfg, userYAML); err != nil {
				return nil, fmt.Errorf("failed to load user config %q: %w", expandedPath, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	cfg.applyAgentDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeYAML parses data and merges it on top of cfg.
func mergeYAML(cfg *ServerConfig, data []byte) error {
	var overlay ServerConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := mergo.Merge(cfg, overlay, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func (c *ServerConfig) applyAgentDefaults() {
	if c.Agents == nil {
		c.Agents = make(map[string]*AgentConfig)
	}
	for agentType, agentCfg := range c.Agents {
		if agentCfg == nil {
			agentCfg = &AgentConfig{}
			c.Agents[agentType] = agentCfg
		}
		if agentCfg.Type == "" {
			agentCfg.Type = agentType
		}
		if agentCfg.Name == "" {
			agentCfg.Name = agentCfg.Type
		}
		if agentCfg.TaskType == "" {
			agentCfg.TaskType = llm.TaskChat
		}
	}
}

// Validate checks the invariants the rest of the system relies on.
func (c *ServerConfig) Validate() error {
	if len(c.Models) == 0 {
		return &llm.ConfigurationError{Reason: "no models configured"}
	}
	if c.Selector.DefaultKey == "" {
		return &llm.ConfigurationError{Reason: "selector.default_key is required"}
	}
	if c.Resilience.Retries < 1 {
		return fmt.Errorf("resilience.retries must be at least 1, got %d", c.Resilience.Retries)
	}
	if c.Streaming.ChunkSize < 1 {
		return fmt.Errorf("streaming.chunk_size must be at least 1, got %d", c.Streaming.ChunkSize)
	}
	for agentType, agentCfg := range c.Agents {
		if agentCfg.Model != "" && !lo.ContainsBy(c.Models, func(m llm.ModelDescriptor) bool { return m.Key == agentCfg.Model }) {
			return &llm.ConfigurationError{Key: agentCfg.Model, Reason: fmt.Sprintf("agent %q references an unregistered model", agentType)}
		}
	}
	return nil
}

// Registry builds the model registry and selector from the configuration.
// Every selector route is checked against the registry.
func (c *ServerConfig) Registry() (*llm.Registry, *llm.Selector, error) {
	registry, err := llm.NewRegistry(c.Models)
	if err != nil {
		return nil, nil, err
	}
	selector, err := llm.NewSelector(c.Selector)
	if err != nil {
		return nil, nil, err
	}
	if err := selector.Validate(registry); err != nil {
		return nil, nil, err
	}
	return registry, selector, nil
}

// EnabledAgents returns the agent configurations that are not disabled,
// keyed by agent type.
func (c *ServerConfig) EnabledAgents() map[string]*AgentConfig {
	return lo.PickBy(c.Agents, func(_ string, a *AgentConfig) bool {
		return a != nil && !a.Disabled
	})
}
