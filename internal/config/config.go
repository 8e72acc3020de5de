package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: HANDOFF_SERVER__PORT sets server.port.
const EnvPrefix = "HANDOFF_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (HANDOFF_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	// Decoding merges lists into the defaults element by element.
	if k.Exists("matcher.categories") {
		cfg.Matcher.Categories = nil
	}
	if k.Exists("seed.patterns") {
		cfg.Seed.Patterns = nil
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Matcher.Threshold <= 0 || c.Matcher.Threshold > 1 {
		return fmt.Errorf("matcher.threshold must be in (0, 1], got %v", c.Matcher.Threshold)
	}
	seen := make(map[string]bool)
	for i, cat := range c.Matcher.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return fmt.Errorf("matcher.categories[%d]: name is required", i)
		}
		if seen[cat.Name] {
			return fmt.Errorf("matcher.categories: duplicate category %q", cat.Name)
		}
		seen[cat.Name] = true
		if len(cat.Keywords) == 0 {
			return fmt.Errorf("matcher.categories[%d] %q: at least one keyword is required", i, cat.Name)
		}
		for _, kw := range cat.Keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("matcher.categories[%d] %q: empty keyword", i, cat.Name)
			}
		}
	}

	if _, err := c.Window(); err != nil {
		return err
	}
	if _, err := c.SweepInterval(); err != nil {
		return err
	}

	switch c.Index.Backend {
	case BackendFTS, BackendVector:
	default:
		return fmt.Errorf("invalid index.backend %q: must be fts or vector", c.Index.Backend)
	}
	switch c.Index.Embedder {
	case EmbedderLexical:
	case EmbedderOpenAI:
		if c.Index.EmbeddingModel == "" {
			return fmt.Errorf("index.embedding_model is required for the openai embedder")
		}
	default:
		return fmt.Errorf("invalid index.embedder %q: must be lexical or openai", c.Index.Embedder)
	}
	if c.Index.Dimensions < 0 {
		return fmt.Errorf("index.dimensions must be non-negative")
	}

	if (c.Notify.Slack.Token == "") != (c.Notify.Slack.Channel == "") {
		return fmt.Errorf("notify.slack needs both token and channel")
	}
	if c.Bots.TeamsSecret != "" {
		if _, err := base64.StdEncoding.DecodeString(c.Bots.TeamsSecret); err != nil {
			return fmt.Errorf("bots.teams_secret must be base64: %w", err)
		}
	}

	return nil
}

// Window returns the escalation window.
func (c *Config) Window() (time.Duration, error) {
	return positiveDuration("escalation.window", c.Escalation.Window)
}

// SweepInterval returns how often timed out requests are swept.
func (c *Config) SweepInterval() (time.Duration, error) {
	return positiveDuration("escalation.sweep_interval", c.Escalation.SweepInterval)
}

func positiveDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, s)
	}
	return d, nil
}

// OpenAIKeyEnvVar names the environment variable holding the embedding API key.
const OpenAIKeyEnvVar = "OPENAI_API_KEY"
