// Package config loads the merged fixxit configuration. Values come from
// fixxit.json with zero fields backfilled from defaults; API keys may be
// supplied through the environment instead of the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"

	"github.com/fixxit/fixxit/internal/llm"
)

// Config represents the merged fixxit configuration
type Config struct {
	Logging LoggingConfig `json:"logging"`
	LLM     llm.Config    `json:"llm"`
	Bridge  BridgeConfig  `json:"bridge"`
	Tools   ToolsConfig   `json:"tools"`
	Agent   AgentConfig   `json:"agent"`
}

type LoggingConfig struct {
	Level      string `json:"level"`
	ShowCaller bool   `json:"showCaller"`
}

// BridgeConfig describes the backend subprocess and its timeouts.
type BridgeConfig struct {
	Command               string   `json:"command"`
	Args                  []string `json:"args"`
	Dir                   string   `json:"dir"`
	ConnectTimeoutSeconds int      `json:"connectTimeoutSeconds"`
	CallTimeoutSeconds    int      `json:"callTimeoutSeconds"`
}

// ToolsConfig points at the tool manifest and the enablement file.
type ToolsConfig struct {
	ManifestPath string `json:"manifestPath"`
	ConfigPath   string `json:"configPath"`
	// WatchConfig is a pointer so an explicit false in the file is
	// distinguishable from an absent key and survives the defaults merge.
	WatchConfig *bool `json:"watchConfig"`
}

// Watch reports whether the enablement file should be watched for live
// reload. On unless the config says false.
func (t ToolsConfig) Watch() bool {
	return t.WatchConfig == nil || *t.WatchConfig
}

// AgentConfig tunes the decision loop and the conversation window.
type AgentConfig struct {
	MaxToolCalls   int    `json:"maxToolCalls"`
	MaxHistory     int    `json:"maxHistory"`
	RetentionTurns int    `json:"retentionTurns"`
	SystemPrompt   string `json:"systemPrompt"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		LLM: llm.Config{
			Provider:       "openai",
			MaxTokens:      4000,
			TimeoutSeconds: 120,
		},
		Bridge: BridgeConfig{
			ConnectTimeoutSeconds: 30,
			CallTimeoutSeconds:    60,
		},
		Tools: ToolsConfig{
			ManifestPath: "tools.yaml",
			ConfigPath:   "tool_config.env",
		},
		Agent: AgentConfig{
			MaxToolCalls:   5,
			MaxHistory:     20,
			RetentionTurns: 5,
		},
	}
}

// Load reads configuration from the given path (fixxit.json next to the
// binary when empty). A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultPath()
	}

	cfg := &Config{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	defaults := Defaults()
	if err := mergo.Merge(cfg, defaults); err != nil {
		return nil, fmt.Errorf("merge defaults: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv lets the environment supply API keys so they stay out of the
// config file.
func applyEnv(cfg *Config) {
	if cfg.LLM.APIKey != "" {
		return
	}
	switch cfg.LLM.Provider {
	case "anthropic":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	default:
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func defaultPath() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), "fixxit.json")
	}
	return "fixxit.json"
}

// ConnectTimeout returns the bridge connect timeout as a duration.
func (b BridgeConfig) ConnectTimeout() time.Duration {
	return time.Duration(b.ConnectTimeoutSeconds) * time.Second
}

// CallTimeout returns the per-call timeout as a duration.
func (b BridgeConfig) CallTimeout() time.Duration {
	return time.Duration(b.CallTimeoutSeconds) * time.Second
}
