package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Look a question up in the knowledge base",
	Long:  `Runs the same two-stage lookup the voice agent uses and prints the answer, or the best rejected score when nothing matched.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		a, err := openApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		question := strings.Join(args, " ")
		res, err := a.coordinator.Search(ctx, question)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if !res.Found {
			fmt.Printf("No answer found (best score %.2f). The agent would escalate this question.\n", res.Score)
			return nil
		}

		fmt.Printf("Answer: %s\n", res.Answer)
		fmt.Printf("  Category:   %s\n", res.Category)
		fmt.Printf("  Matched by: %s\n", res.Stage)
		fmt.Printf("  Confidence: %.2f\n", res.Confidence)
		if verbose {
			fmt.Printf("  Entry:      %s\n", res.EntryID)
			fmt.Printf("  Score:      %.2f\n", res.Score)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
