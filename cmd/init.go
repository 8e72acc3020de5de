package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/handoff/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize handoff configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure handoff and writes a .handoff.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
