package config

import (
	"github.com/ziadkadry99/handoff/internal/escalation"
	"github.com/ziadkadry99/handoff/internal/matcher"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = ".handoff.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "handoff.db"},
		Server:   ServerConfig{Port: 8080},
		Matcher: MatcherConfig{
			Threshold:  matcher.DefaultThreshold,
			Categories: matcher.DefaultCategories(),
		},
		Escalation: EscalationConfig{
			Window:        escalation.DefaultWindow.String(),
			SweepInterval: escalation.DefaultSweepInterval.String(),
		},
		Index: IndexConfig{
			Backend:        BackendFTS,
			Embedder:       EmbedderLexical,
			EmbeddingModel: "text-embedding-3-small",
			Dimensions:     256,
		},
		Seed: SeedConfig{OnStart: true},
	}
}
