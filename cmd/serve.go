package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/handoff/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for voice agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing knowledge base
search and supervisor escalation tools to the voice agent. Requests escalated
here show up on the dashboard of a handoff server sharing the same database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, err := openApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		a.coordinator.Start(ctx)
		defer a.coordinator.Stop()
		go a.refreshIndex(ctx)

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		count, err := a.knowledge.Count(ctx)
		if err != nil {
			return fmt.Errorf("counting knowledge entries: %w", err)
		}
		fmt.Fprintf(os.Stderr, "handoff MCP server started on stdio (db=%s, entries=%d)\n", cfg.Database.Path, count)

		srv := mcpserver.NewServer(a.coordinator)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
