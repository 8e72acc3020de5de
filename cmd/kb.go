package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/handoff/internal/knowledge"
	"github.com/ziadkadry99/handoff/internal/progress"
)

var (
	kbCategory   string
	kbAll        bool
	kbLimit      int
	kbTags       []string
	kbConfidence float64
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the knowledge base",
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := knowledge.ListFilter{Category: kbCategory, Limit: kbLimit}
		if !kbAll {
			active := true
			filter.Active = &active
		}
		return withApp(func(ctx context.Context, a *app) error {
			entries, err := a.knowledge.List(ctx, filter)
			if err != nil {
				return err
			}
			for _, e := range entries {
				state := ""
				if !e.IsActive {
					state = " (inactive)"
				}
				fmt.Printf("%s [%s]%s\n", e.ID, e.Category, state)
				fmt.Printf("  Q: %s\n", e.Question)
				fmt.Printf("  A: %s\n", e.Answer)
				if verbose {
					fmt.Printf("  source=%s confidence=%.2f uses=%d\n", e.Source, e.Confidence, e.UsageCount)
				}
			}
			fmt.Printf("%d entries\n", len(entries))
			return nil
		})
	},
}

var kbAddCmd = &cobra.Command{
	Use:   "add [question] [answer]",
	Short: "Add or update a knowledge entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			e, err := a.knowledge.Upsert(ctx, knowledge.Entry{
				Question:   args[0],
				Answer:     args[1],
				Category:   kbCategory,
				Tags:       kbTags,
				Source:     knowledge.SourceAdmin,
				Confidence: kbConfidence,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Saved knowledge entry %s [%s]\n", e.ID, e.Category)
			return nil
		})
	},
}

var kbDeactivateCmd = &cobra.Command{
	Use:   "deactivate [entry-id]",
	Short: "Stop using a knowledge entry for answers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.knowledge.Deactivate(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deactivated %s\n", args[0])
			return nil
		})
	},
}

var kbImportCmd = &cobra.Command{
	Use:   "import [pattern...]",
	Short: "Import entries from YAML files",
	Long: `Imports every YAML file matching the given glob patterns (e.g. "kb/**/*.yml").
Entries are upserted by id, so re-importing a file whose entries carry ids updates them in place.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := knowledge.LoadSeedFiles(os.DirFS("."), args)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("No entries found in %s\n", strings.Join(args, ", "))
			return nil
		}
		return withApp(func(ctx context.Context, a *app) error {
			n, err := a.knowledge.Import(ctx, entries, progress.NewReporter("Importing"))
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d entries\n", n)
			return nil
		})
	},
}

var kbSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the starter knowledge base into an empty store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			before, err := a.knowledge.Count(ctx)
			if err != nil {
				return err
			}
			if before > 0 {
				fmt.Printf("Knowledge base already has %d entries, nothing to seed\n", before)
				return nil
			}
			if err := seedKnowledge(ctx, a.knowledge, a.cfg.Seed.Patterns); err != nil {
				return err
			}
			after, err := a.knowledge.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d entries\n", after)
			return nil
		})
	},
}

func init() {
	kbListCmd.Flags().StringVar(&kbCategory, "category", "", "filter by category")
	kbListCmd.Flags().BoolVar(&kbAll, "all", false, "include inactive entries")
	kbListCmd.Flags().IntVar(&kbLimit, "limit", 0, "maximum number of entries")

	kbAddCmd.Flags().StringVar(&kbCategory, "category", "", "entry category (default general)")
	kbAddCmd.Flags().StringSliceVar(&kbTags, "tag", nil, "tag, may be repeated")
	kbAddCmd.Flags().Float64Var(&kbConfidence, "confidence", 0, "confidence between 0 and 1 (default 0.8)")

	kbCmd.AddCommand(kbListCmd, kbAddCmd, kbDeactivateCmd, kbImportCmd, kbSeedCmd)
	rootCmd.AddCommand(kbCmd)
}
