package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/handoff/internal/escalation"
)

var (
	escalateCaller     string
	escalateCallerName string
	escalateSession    string
	escalateContext    string
)

var escalateCmd = &cobra.Command{
	Use:   "escalate [question]",
	Short: "Open a help request for a supervisor",
	Long:  `Creates a help request as the voice agent would after a failed lookup and notifies the configured supervisor channels.`,
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

		req, err := a.coordinator.HandleUnknown(ctx, escalation.CreateInput{
			Question:   strings.Join(args, " "),
			CallerID:   escalateCaller,
			CallerName: escalateCallerName,
			SessionID:  escalateSession,
			Context:    escalateContext,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Created help request %s\n", req.ID)
		fmt.Printf("  Status:  %s\n", req.Status)
		fmt.Printf("  Timeout: %s\n", req.TimeoutAt.Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	escalateCmd.Flags().StringVar(&escalateCaller, "caller", "", "caller id, usually a phone number (required)")
	escalateCmd.Flags().StringVar(&escalateCallerName, "name", "", "caller name")
	escalateCmd.Flags().StringVar(&escalateSession, "session", "", "call session id (required)")
	escalateCmd.Flags().StringVar(&escalateContext, "context", "", "conversation context for the supervisor")
	escalateCmd.MarkFlagRequired("caller")
	escalateCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(escalateCmd)
}
