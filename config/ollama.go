package config

import (
	"os"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/llm/ollama"
)

// applyEnvOverrides applies environment variables on top of file configuration.
func applyEnvOverrides(cfg *ServerConfig) {
	if envHost := getOllamaHostFromEnv(); envHost != "" {
		cfg.Ollama.Host = envHost
	}
	if cfg.Ollama.Host == "" {
		cfg.Ollama.Host = ollama.DefaultHost
	}
	if dbPath := os.Getenv("AGENTS_CORE_DB"); dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
}

// getOllamaHostFromEnv gets the Ollama host from environment variable.
func getOllamaHostFromEnv() string {
	return os.Getenv("OLLAMA_HOST")
}
