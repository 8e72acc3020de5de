package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/handoff/internal/escalation"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Answer pending help requests interactively",
	Long: `Opens a terminal console for supervisors without the web dashboard. Pick a
pending request, type the answer, and it is sent to the caller and learned
by the knowledge base.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			if resolverID == "" {
				p := promptui.Prompt{Label: "Your supervisor id", Default: "supervisor"}
				id, err := p.Run()
				if err != nil {
					return consoleExit(err)
				}
				resolverID = id
			}
			for {
				done, err := consoleRound(ctx, a)
				if err != nil || done {
					return consoleExit(err)
				}
			}
		})
	},
}

const (
	consoleRefresh = "[refresh]"
	consoleQuit    = "[quit]"
)

// consoleRound shows the pending queue once and handles one selection.
func consoleRound(ctx context.Context, a *app) (bool, error) {
	reqs, err := a.coordinator.ListPending(ctx)
	if err != nil {
		return false, err
	}

	items := make([]string, 0, len(reqs)+2)
	for _, r := range reqs {
		items = append(items, consoleLabel(r))
	}
	items = append(items, consoleRefresh, consoleQuit)

	sel := promptui.Select{
		Label: fmt.Sprintf("%d pending help requests", len(reqs)),
		Items: items,
		Size:  10,
	}
	idx, choice, err := sel.Run()
	if err != nil {
		return false, err
	}
	switch choice {
	case consoleQuit:
		return true, nil
	case consoleRefresh:
		return false, nil
	}

	req := reqs[idx]
	if req.Status == escalation.StatusPending {
		if _, err := a.coordinator.Claim(ctx, req.ID, resolverID); err != nil {
			fmt.Printf("Could not claim %s: %v\n\n", req.ID, err)
			return false, nil
		}
	}
	if req.Metadata.Context != "" {
		fmt.Printf("Context: %s\n", req.Metadata.Context)
	}

	answer := promptui.Prompt{
		Label: "Answer (blank to skip)",
	}
	text, err := answer.Run()
	if err != nil {
		return false, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		fmt.Println("Skipped.")
		return false, nil
	}

	res, err := a.coordinator.Resolve(ctx, req.ID, text, resolverID)
	if err != nil {
		fmt.Printf("Could not resolve %s: %v\n\n", req.ID, err)
		return false, nil
	}
	printResolution(res)
	fmt.Println()
	return false, nil
}

func consoleLabel(r escalation.HelpRequest) string {
	who := r.CallerID
	if r.CallerName != "" {
		who = r.CallerName
	}
	label := fmt.Sprintf("%s  (%s, %s)", r.Question, who, r.CreatedAt.Local().Format("15:04"))
	if r.ClaimedBy != "" {
		label += " claimed by " + r.ClaimedBy
	}
	return label
}

// consoleExit treats Ctrl-C and Ctrl-D as a normal exit.
func consoleExit(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return nil
	}
	return err
}

func init() {
	consoleCmd.Flags().StringVar(&resolverID, "resolver", "", "supervisor id recorded on resolved requests")
	rootCmd.AddCommand(consoleCmd)
}
