package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard asks for the main settings interactively and saves the result
// to path once the user confirms.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to handoff! Let's configure your deployment.")
	fmt.Println()

	cfg := DefaultConfig()

	dbPrompt := promptui.Prompt{
		Label:   "SQLite database path",
		Default: cfg.Database.Path,
	}
	dbPath, err := dbPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("database path: %w", err)
	}
	cfg.Database.Path = dbPath

	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return errors.New("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	backendPrompt := promptui.Select{
		Label: "Text index for question matching",
		Items: []string{
			"fts    - SQLite full-text search, no external services",
			"vector - embedding similarity (chromem-go)",
		},
	}
	idx, _, err := backendPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("index backend: %w", err)
	}
	cfg.Index.Backend = []string{BackendFTS, BackendVector}[idx]

	if cfg.Index.Backend == BackendVector {
		embedderPrompt := promptui.Select{
			Label: "Embedder",
			Items: []string{
				"lexical - hashed word vectors, offline",
				"openai  - OpenAI or a compatible server",
			},
		}
		idx, _, err := embedderPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
		cfg.Index.Embedder = []string{EmbedderLexical, EmbedderOpenAI}[idx]

		if cfg.Index.Embedder == EmbedderOpenAI {
			urlPrompt := promptui.Prompt{
				Label:   "OpenAI-compatible base URL (blank for api.openai.com)",
				Default: "",
			}
			if cfg.Index.OpenAIBaseURL, err = urlPrompt.Run(); err != nil {
				return nil, fmt.Errorf("base url: %w", err)
			}
			if os.Getenv(OpenAIKeyEnvVar) == "" && cfg.Index.OpenAIBaseURL == "" {
				fmt.Printf("\nNote: Set %s in your environment before starting the server.\n\n", OpenAIKeyEnvVar)
			}
		}
	}

	hookPrompt := promptui.Prompt{
		Label:   "Supervisor webhook URL (blank to log alerts only)",
		Default: "",
	}
	if cfg.Notify.SupervisorWebhook, err = hookPrompt.Run(); err != nil {
		return nil, fmt.Errorf("supervisor webhook: %w", err)
	}

	slackPrompt := promptui.Prompt{
		Label:   "Slack channel for supervisor alerts (blank to skip)",
		Default: "",
	}
	channel, err := slackPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("slack channel: %w", err)
	}
	if channel != "" {
		cfg.Notify.Slack.Channel = channel
		fmt.Printf("\nNote: Set %sNOTIFY__SLACK__TOKEN to a bot token with chat:write.\n\n", EnvPrefix)
	}

	confirm := promptui.Prompt{
		Label:     fmt.Sprintf("Write %s", path),
		IsConfirm: true,
	}
	if _, err := confirm.Run(); err != nil {
		return nil, fmt.Errorf("aborted")
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}
