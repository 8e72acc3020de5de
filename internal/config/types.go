package config

import "github.com/ziadkadry99/handoff/internal/matcher"

// Index backends.
const (
	BackendFTS    = "fts"
	BackendVector = "vector"
)

// Embedders for the vector backend.
const (
	EmbedderLexical = "lexical"
	EmbedderOpenAI  = "openai"
)

// Config is the top-level handoff configuration, corresponding to .handoff.yml.
type Config struct {
	Database   DatabaseConfig   `yaml:"database" koanf:"database"`
	Server     ServerConfig     `yaml:"server" koanf:"server"`
	Matcher    MatcherConfig    `yaml:"matcher" koanf:"matcher"`
	Escalation EscalationConfig `yaml:"escalation" koanf:"escalation"`
	Index      IndexConfig      `yaml:"index" koanf:"index"`
	Notify     NotifyConfig     `yaml:"notify" koanf:"notify"`
	Seed       SeedConfig       `yaml:"seed" koanf:"seed"`
	Bots       BotsConfig       `yaml:"bots" koanf:"bots"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// MatcherConfig tunes answer lookup.
type MatcherConfig struct {
	Threshold  float64            `yaml:"threshold" koanf:"threshold"`
	Categories []matcher.Category `yaml:"categories" koanf:"categories"`
}

// EscalationConfig holds Go duration strings such as "30m".
type EscalationConfig struct {
	Window        string `yaml:"window" koanf:"window"`
	SweepInterval string `yaml:"sweep_interval" koanf:"sweep_interval"`
}

// IndexConfig selects the text index used for the first matching stage.
type IndexConfig struct {
	Backend        string `yaml:"backend" koanf:"backend"`
	Embedder       string `yaml:"embedder" koanf:"embedder"`
	EmbeddingModel string `yaml:"embedding_model" koanf:"embedding_model"`
	Dimensions     int    `yaml:"dimensions" koanf:"dimensions"`
	// OpenAIBaseURL points the openai embedder at a compatible server
	// such as Ollama's /v1 endpoint.
	OpenAIBaseURL  string `yaml:"openai_base_url,omitempty" koanf:"openai_base_url"`
}

// NotifyConfig selects notification channels. Empty values disable them.
type NotifyConfig struct {
	SupervisorWebhook string      `yaml:"supervisor_webhook,omitempty" koanf:"supervisor_webhook"`
	CallerWebhook     string      `yaml:"caller_webhook,omitempty" koanf:"caller_webhook"`
	Slack             SlackConfig `yaml:"slack" koanf:"slack"`
}

// SlackConfig configures supervisor alerts in Slack.
type SlackConfig struct {
	Token   string `yaml:"token,omitempty" koanf:"token"`
	Channel string `yaml:"channel,omitempty" koanf:"channel"`
	BaseURL string `yaml:"base_url,omitempty" koanf:"base_url"`
}

// Enabled reports whether both a token and a channel are set.
func (s SlackConfig) Enabled() bool { return s.Token != "" && s.Channel != "" }

// SeedConfig controls the starter knowledge base.
type SeedConfig struct {
	OnStart  bool     `yaml:"on_start" koanf:"on_start"`
	Patterns []string `yaml:"patterns" koanf:"patterns"`
}

// BotsConfig enables the supervisor chat commands. Each platform is only
// mounted when its secret is set.
type BotsConfig struct {
	SlackSigningSecret string `yaml:"slack_signing_secret,omitempty" koanf:"slack_signing_secret"`
	// TeamsSecret is the base64 security token of a Teams outgoing webhook.
	TeamsSecret        string `yaml:"teams_secret,omitempty" koanf:"teams_secret"`
}
