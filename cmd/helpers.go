package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ziadkadry99/handoff/internal/audit"
	"github.com/ziadkadry99/handoff/internal/config"
	"github.com/ziadkadry99/handoff/internal/dashboard"
	"github.com/ziadkadry99/handoff/internal/db"
	"github.com/ziadkadry99/handoff/internal/embeddings"
	"github.com/ziadkadry99/handoff/internal/escalation"
	"github.com/ziadkadry99/handoff/internal/knowledge"
	"github.com/ziadkadry99/handoff/internal/matcher"
	"github.com/ziadkadry99/handoff/internal/notifications"
	"github.com/ziadkadry99/handoff/internal/sessions"
	"github.com/ziadkadry99/handoff/internal/vectordb"
)

// createEmbedderFromConfig creates the embedder used by the vector index.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.Index.Embedder {
	case config.EmbedderOpenAI:
		apiKey := os.Getenv(config.OpenAIKeyEnvVar)
		if apiKey == "" && cfg.Index.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("%s environment variable is required for OpenAI embeddings", config.OpenAIKeyEnvVar)
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.Index.EmbeddingModel), embeddings.OpenAIOptions{
			BaseURL:    cfg.Index.OpenAIBaseURL,
			Dimensions: cfg.Index.Dimensions,
		}), nil
	default:
		return embeddings.NewLexicalEmbedder(cfg.Index.Dimensions), nil
	}
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `handoff init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// app holds every wired service. Commands build one with openApp and
// release it with Close.
type app struct {
	cfg           *config.Config
	db            *db.DB
	knowledge     *knowledge.Store
	audit         *audit.Store
	sessions      *sessions.Store
	notifications *notifications.Store
	hub           *dashboard.Hub
	slack         *notifications.SlackClient
	coordinator   *escalation.Coordinator
	indexRefresh  time.Duration
}

// openApp opens the database and wires the knowledge store, matcher,
// ledger, notifiers and coordinator from cfg. When seed is true and the
// config asks for it, the starter knowledge base is loaded.
func openApp(ctx context.Context, cfg *config.Config, seed bool) (*app, error) {
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a, err := wireApp(ctx, cfg, database, seed)
	if err != nil {
		database.Close()
		return nil, err
	}
	return a, nil
}

func wireApp(ctx context.Context, cfg *config.Config, database *db.DB, seed bool) (*app, error) {
	var index knowledge.Index
	if cfg.Index.Backend == config.BackendVector {
		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
		vi, err := vectordb.NewKnowledgeIndex(embedder)
		if err != nil {
			return nil, fmt.Errorf("creating vector index: %w", err)
		}
		index = vi
	}

	kb := knowledge.NewStore(database, index)
	if index != nil {
		n, err := kb.Reindex(ctx)
		if err != nil {
			return nil, fmt.Errorf("building vector index: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Indexed %d knowledge entries\n", n)
		}
	}

	if seed && cfg.Seed.OnStart {
		if err := seedKnowledge(ctx, kb, cfg.Seed.Patterns); err != nil {
			return nil, err
		}
	}

	window, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	interval, err := cfg.SweepInterval()
	if err != nil {
		return nil, err
	}

	auditStore := audit.NewStore(database)
	sessionStore := sessions.NewStore(database)
	notifStore := notifications.NewStore(database)

	notifCfg := notifications.Config{
		SupervisorWebhook: cfg.Notify.SupervisorWebhook,
		CallerWebhook:     cfg.Notify.CallerWebhook,
	}
	if cfg.Notify.Slack.Enabled() {
		notifCfg.Slack = &notifications.SlackClient{
			Token:   cfg.Notify.Slack.Token,
			Channel: cfg.Notify.Slack.Channel,
			BaseURL: cfg.Notify.Slack.BaseURL,
		}
	}
	dispatcher := notifications.NewDispatcher(notifStore, notifCfg)
	hub := dashboard.NewHub()

	m := matcher.New(kb, matcher.Config{
		Threshold:  cfg.Matcher.Threshold,
		Categories: cfg.Matcher.Categories,
	})
	coord := escalation.NewCoordinator(
		escalation.NewLedger(database, window),
		m,
		kb,
		notifications.Fanout{dispatcher, hub},
		escalation.Options{
			SweepInterval: interval,
			Linker:        sessionStore,
			Auditor:       auditStore,
		},
	)

	var indexRefresh time.Duration
	if index != nil {
		indexRefresh = interval
	}

	return &app{
		cfg:           cfg,
		db:            database,
		knowledge:     kb,
		audit:         auditStore,
		sessions:      sessionStore,
		notifications: notifStore,
		hub:           hub,
		slack:         notifCfg.Slack,
		coordinator:   coord,
		indexRefresh:  indexRefresh,
	}, nil
}

// seedKnowledge loads the built-in starter entries plus any seed files.
// Existing entries are never overwritten.
func seedKnowledge(ctx context.Context, kb *knowledge.Store, patterns []string) error {
	entries := knowledge.DefaultSeed()
	if len(patterns) > 0 {
		extra, err := knowledge.LoadSeedFiles(os.DirFS("."), patterns)
		if err != nil {
			return fmt.Errorf("loading seed files: %w", err)
		}
		entries = append(entries, extra...)
	}
	if _, err := kb.Seed(ctx, entries); err != nil {
		return fmt.Errorf("seeding knowledge base: %w", err)
	}
	return nil
}

// refreshIndex keeps an in-memory vector index current with writes from
// other processes until ctx is done. The FTS index reads the database
// directly and returns at once.
func (a *app) refreshIndex(ctx context.Context) {
	if a.indexRefresh <= 0 {
		return
	}
	a.knowledge.RefreshIndex(ctx, a.indexRefresh)
}

func (a *app) Close() error {
	a.hub.Close()
	return a.db.Close()
}
