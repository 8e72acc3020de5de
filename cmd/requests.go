package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/handoff/internal/escalation"
)

var (
	historyStatus string
	historyCaller string
	historyLimit  int
	historyOffset int
	resolverID    string
)

var requestsCmd = &cobra.Command{
	Use:     "requests",
	Aliases: []string{"req"},
	Short:   "Inspect and resolve help requests",
}

var requestsPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List open help requests, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			reqs, err := a.coordinator.ListPending(ctx)
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				fmt.Println("No pending help requests.")
				return nil
			}
			for _, r := range reqs {
				printRequest(r)
			}
			return nil
		})
	},
}

var requestsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List help requests of any status",
	RunE: func(cmd *cobra.Command, args []string) error {
		status := escalation.Status(historyStatus)
		if status != "" && !status.Valid() {
			return fmt.Errorf("unknown status %q", historyStatus)
		}
		return withApp(func(ctx context.Context, a *app) error {
			page, err := a.coordinator.ListHistory(ctx, escalation.HistoryFilter{
				Status:   status,
				CallerID: historyCaller,
				Limit:    historyLimit,
				Offset:   historyOffset,
			})
			if err != nil {
				return err
			}
			for _, r := range page.Requests {
				printRequest(r)
			}
			fmt.Printf("Showing %d of %d requests\n", len(page.Requests), page.Total)
			return nil
		})
	},
}

var requestsResolveCmd = &cobra.Command{
	Use:   "resolve [request-id] [answer]",
	Short: "Answer a help request and teach the knowledge base",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			res, err := a.coordinator.Resolve(ctx, args[0], strings.Join(args[1:], " "), resolverID)
			if err != nil {
				return err
			}
			printResolution(res)
			return nil
		})
	},
}

var requestsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Time out help requests past their deadline",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			swept, err := a.coordinator.RunTimeoutSweep(ctx, time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("Timed out %d help requests\n", len(swept))
			for _, r := range swept {
				printRequest(r)
			}
			return nil
		})
	},
}

// withApp loads the config, wires the services and runs fn with them.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := openApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printRequest(r escalation.HelpRequest) {
	caller := r.CallerID
	if r.CallerName != "" {
		caller = fmt.Sprintf("%s (%s)", r.CallerName, r.CallerID)
	}
	fmt.Printf("[%s] %s\n", r.Status, r.Question)
	fmt.Printf("  ID:      %s\n", r.ID)
	fmt.Printf("  Caller:  %s\n", caller)
	fmt.Printf("  Created: %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if r.Status.Open() {
		fmt.Printf("  Timeout: %s\n", r.TimeoutAt.Local().Format("2006-01-02 15:04:05"))
	}
	if r.ClaimedBy != "" {
		fmt.Printf("  Claimed: %s\n", r.ClaimedBy)
	}
	if r.HumanResponse != "" {
		fmt.Printf("  Answer:  %s\n", r.HumanResponse)
	}
	fmt.Println()
}

func printResolution(res *escalation.ResolveResult) {
	fmt.Printf("Resolved %s\n", res.Request.ID)
	switch {
	case res.LearnErr != nil:
		fmt.Printf("  Warning: answer was not added to the knowledge base: %v\n", res.LearnErr)
	case res.Learned != nil:
		fmt.Printf("  Learned as knowledge entry %s\n", res.Learned.ID)
	}
}

func init() {
	requestsHistoryCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status (pending, in_progress, resolved, timeout)")
	requestsHistoryCmd.Flags().StringVar(&historyCaller, "caller", "", "filter by caller id")
	requestsHistoryCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum number of requests")
	requestsHistoryCmd.Flags().IntVar(&historyOffset, "offset", 0, "number of requests to skip")
	requestsResolveCmd.Flags().StringVar(&resolverID, "resolver", "", "supervisor id recorded on the request")

	requestsCmd.AddCommand(requestsPendingCmd, requestsHistoryCmd, requestsResolveCmd, requestsSweepCmd)
	rootCmd.AddCommand(requestsCmd)
}
