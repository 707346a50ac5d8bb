// internal/agent/agentconfig.go
package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"agentctl/internal/provider"
)

// Config is the per-project agent configuration from .agentctl/agent.yml.
type Config struct {
	Provider              string                       `yaml:"provider"`
	CheckpointBeforeTasks bool                         `yaml:"checkpoint_before_tasks"`
	CheckpointRequired    bool                         `yaml:"checkpoint_required"`
	AutoRestoreOnFailure  bool                         `yaml:"auto_restore_on_failure"`
	MaxCheckpoints        int                          `yaml:"max_checkpoints"`
	PromptTemplates       map[string]string            `yaml:"prompt_templates"`
	Providers             map[string]provider.Settings `yaml:"providers"`
	Embedding             EmbeddingConfig              `yaml:"embedding"`
}

// EmbeddingConfig configures the semantic index embedder.
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// DefaultConfig returns the configuration used when agent.yml is absent.
func DefaultConfig() *Config {
	return &Config{
		Provider:              "claude",
		CheckpointBeforeTasks: true,
		AutoRestoreOnFailure:  false,
		MaxCheckpoints:        20,
	}
}

// LoadConfig reads agent.yml, layering it over the defaults. A missing file
// is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read agent config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse agent config: %w", err)
	}
	return cfg, nil
}

// ProviderSettings returns the settings block for the named provider, or a
// zero value when none is configured.
func (c *Config) ProviderSettings(name string) provider.Settings {
	if c.Providers == nil {
		return provider.Settings{}
	}
	return c.Providers[name]
}
